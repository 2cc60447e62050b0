package rtserver

import (
	"context"
	"testing"
	"time"

	"github.com/locshare/server/internal/database"
	"github.com/locshare/server/internal/stats"
	"github.com/locshare/server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNewLocationServer(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", StatActiveConnections).Once()
	su.On("RegisterMetric", StatLocationUpdates).Once()
	su.On("RegisterMetric", StatPresenceChanges).Once()

	logger := testutil.TestLogger(t)
	s := NewLocationServer(logger, db, su)
	assert.NotNil(t, s, "expected LocationServer to be non-nil")
	assert.Equal(t, logger, s.log, "expected logger to be set")
	assert.Equal(t, db, s.db, "expected database repository to be set")
	assert.NotNil(t, s.registry, "expected registry to be initialized")
	assert.NotNil(t, s.clients, "expected clients map to be initialized")
}

func TestRegisterClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", StatActiveConnections).Once()
	su.On("Decr", StatActiveConnections).Once()

	s := newTestLocationServer(t, &database.MockRepository{}, su)
	c := newTestClient(t)

	s.RegisterClient(c)
	assert.Contains(t, s.clients, c, "expected client in the client set")

	s.removeClient(c)
	assert.NotContains(t, s.clients, c, "expected client removed from the client set")

	// removing an unknown client must not decrement twice
	s.removeClient(c)
}

func TestLocationServerShutdown(t *testing.T) {
	t.Run("no connected clients", func(t *testing.T) {
		s := newTestLocationServer(t, &database.MockRepository{}, newMockStats())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, s.Shutdown(ctx))
	})

	t.Run("waits for the client set to drain", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", mock.Anything).Return()
		su.On("Decr", mock.Anything).Return()

		s := newTestLocationServer(t, &database.MockRepository{}, su)
		c := newTestClient(t)
		s.clients[c] = struct{}{}

		go func() {
			time.Sleep(50 * time.Millisecond)
			s.removeClient(c)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, s.Shutdown(ctx))
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		s := newTestLocationServer(t, &database.MockRepository{}, newMockStats())
		s.clients[newTestClient(t)] = struct{}{}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
	})
}
