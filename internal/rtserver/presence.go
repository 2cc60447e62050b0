package rtserver

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/locshare/server/internal/database"
)

// handleSetup binds the connection to the user from the setup payload,
// flips the user online, subscribes the connection to every room in the
// user's created+joined set and announces the user to each of them.
func (s *LocationServer) handleSetup(c *Client, ev *ClientEvent) {
	if ev.UserId == 0 {
		return
	}

	// bind before touching storage so the disconnect path can still
	// resolve the user if the setup write fails
	s.registry.Bind(c, ev.UserId)

	user, err := s.db.MarkUserOnline(ev.UserId)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Printf("mark user %d online: %v", ev.UserId, err)
		}
		return
	}

	rooms := dedupeRooms(user.RoomsCreated, user.RoomsJoined)

	s.registry.Subscribe(c, roomChannels(rooms))

	for _, room := range rooms {
		s.registry.Broadcast(room.ExternalId, UserOnline(ev.UserId), c)
	}
	s.stats.Incr(StatPresenceChanges)
}

// handleLocation persists a location ping and fans it out to every room
// the user belongs to. The connection need not have run setup: the
// event carries its own user id and room resolution never consults the
// registry, so an unbound connection's ping is processed all the same.
func (s *LocationServer) handleLocation(c *Client, ev *ClientEvent) {
	if ev.UserId == 0 || ev.Latitude == nil || ev.Longitude == nil {
		return
	}

	lat, lon := *ev.Latitude, *ev.Longitude
	now := Now()

	user, err := s.db.UpdateUserLocation(ev.UserId, lat, lon, now)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Printf("update location for user %d: %v", ev.UserId, err)
		}
		return
	}

	rooms := dedupeRooms(user.RoomsCreated, user.RoomsJoined)

	// each room is an isolated unit of work: a slow or failing write
	// for one room must not delay or suppress the others
	var wg sync.WaitGroup
	for _, room := range rooms {
		wg.Add(1)
		go func(room database.RoomRef) {
			defer wg.Done()

			if err := s.db.UpsertLocation(ev.UserId, room.Id, lat, lon, now); err != nil {
				s.log.Printf("upsert location for user %d in room %q: %v", ev.UserId, room.ExternalId, err)
			}

			s.registry.Broadcast(room.ExternalId, ReceiveLocation(ev.UserId, lat, lon, now), c)
		}(room)
	}
	wg.Wait()

	s.stats.Incr(StatLocationUpdates)
}

// handleDisconnect resolves the departing user via the registry, which
// is the only way to know who left, then flips them offline and
// announces it. Never-authenticated connections leave silently.
func (s *LocationServer) handleDisconnect(c *Client) {
	defer s.registry.Unbind(c)

	userId, ok := s.registry.ResolveUserId(c)
	if !ok {
		return
	}

	now := Now()
	user, err := s.db.MarkUserOffline(userId, now)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Printf("mark user %d offline: %v", userId, err)
		}
		return
	}

	for _, room := range dedupeRooms(user.RoomsCreated, user.RoomsJoined) {
		s.registry.Broadcast(room.ExternalId, UserOffline(userId, now), c)
	}
	s.stats.Incr(StatPresenceChanges)
}

// dedupeRooms collapses the union of a user's created and joined room
// sets into one list, first occurrence wins. Creators always overlap
// since they hold a membership row in their own rooms.
func dedupeRooms(created, joined []database.RoomRef) []database.RoomRef {
	seen := make(map[string]struct{}, len(created)+len(joined))
	rooms := make([]database.RoomRef, 0, len(created)+len(joined))

	for _, ref := range append(append([]database.RoomRef{}, created...), joined...) {
		if _, ok := seen[ref.ExternalId]; ok {
			continue
		}
		seen[ref.ExternalId] = struct{}{}
		rooms = append(rooms, ref)
	}

	return rooms
}

func roomChannels(rooms []database.RoomRef) []string {
	ids := make([]string, len(rooms))
	for i, ref := range rooms {
		ids[i] = ref.ExternalId
	}
	return ids
}
