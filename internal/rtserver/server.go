package rtserver

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/locshare/server/internal/database"
	"github.com/locshare/server/internal/stats"
)

const (
	StatActiveConnections = "ActiveConnections"
	StatLocationUpdates   = "LocationUpdates"
	StatPresenceChanges   = "PresenceChanges"
)

// LocationServer owns the realtime side of the system: the connection
// registry and the presence/location event handlers that fan updates
// out to room channels.
type LocationServer struct {
	log         *log.Logger
	db          database.Repository
	stats       stats.StatsProvider
	registry    *Registry
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewLocationServer(logger *log.Logger, db database.Repository, sp stats.StatsProvider) *LocationServer {
	sp.RegisterMetric(StatActiveConnections)
	sp.RegisterMetric(StatLocationUpdates)
	sp.RegisterMetric(StatPresenceChanges)

	return &LocationServer{
		log:      logger,
		db:       db,
		stats:    sp,
		registry: NewRegistry(),
		clients:  make(map[*Client]struct{}),
	}
}

func (s *LocationServer) RegisterClient(c *Client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	s.clients[c] = struct{}{}
	s.stats.Incr(StatActiveConnections)
}

func (s *LocationServer) removeClient(c *Client) {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		s.stats.Decr(StatActiveConnections)
	}
}

// Shutdown stops every connected client and waits for the client set
// to drain or the context to expire.
func (s *LocationServer) Shutdown(ctx context.Context) error {
	s.clientsLock.Lock()
	for c := range s.clients {
		c.stopClient()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	s.clientsLock.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.clientsLock.Lock()
		n := len(s.clients)
		s.clientsLock.Unlock()
		if n == 0 {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
