package rtserver

import (
	"sync"
)

// Registry maps live connections to the user they authenticated as and
// room channels to the connections listening on them. It is ephemeral,
// process-wide state: populated as connections arrive, emptied on
// disconnect, rebuilt from scratch on restart as clients re-run setup.
type Registry struct {
	mu    sync.RWMutex
	users map[*Client]int
	rooms map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[*Client]int),
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Bind associates a connection with a user id. Rebinding with the same
// id is a no-op; a different id replaces the old one, last writer wins.
func (r *Registry) Bind(c *Client, userId int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[c] = userId
}

// ResolveUserId returns the user id bound to the connection, if any.
func (r *Registry) ResolveUserId(c *Client) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userId, ok := r.users[c]
	return userId, ok
}

// Subscribe adds the connection as a listener on each room channel.
// Rooms the connection already listens on are left untouched.
func (r *Registry) Subscribe(c *Client, roomIds []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, roomId := range roomIds {
		subs, ok := r.rooms[roomId]
		if !ok {
			subs = make(map[*Client]struct{})
			r.rooms[roomId] = subs
		}
		subs[c] = struct{}{}
	}
}

// Unbind drops the connection's user binding and every room
// subscription, releasing the channel entry once no listeners remain.
func (r *Registry) Unbind(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, c)
	for roomId, subs := range r.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.rooms, roomId)
		}
	}
}

// Broadcast queues the event to every subscriber of the room channel
// except skip, which is the originating connection. Clients with full
// send buffers drop the event rather than block the caller.
func (r *Registry) Broadcast(roomId string, ev *ServerEvent, skip *Client) int {
	r.mu.RLock()
	subs := make([]*Client, 0, len(r.rooms[roomId]))
	for c := range r.rooms[roomId] {
		if c == skip {
			continue
		}
		subs = append(subs, c)
	}
	r.mu.RUnlock()

	var sent int
	for _, c := range subs {
		if c.queueEvent(ev) {
			sent++
		}
	}

	return sent
}

// Subscribers reports how many connections listen on the room channel.
func (r *Registry) Subscribers(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[roomId])
}
