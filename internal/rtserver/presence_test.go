package rtserver

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/locshare/server/internal/database"
	"github.com/locshare/server/internal/stats"
	"github.com/locshare/server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestLocationServer(t *testing.T, db database.Repository, sp stats.StatsProvider) *LocationServer {
	t.Helper()
	return &LocationServer{
		log:      testutil.TestLogger(t),
		db:       db,
		stats:    sp,
		registry: NewRegistry(),
		clients:  make(map[*Client]struct{}),
	}
}

func newMockStats() *stats.MockStatsUpdater {
	ms := &stats.MockStatsUpdater{}
	ms.On("Incr", mock.Anything).Return()
	ms.On("Decr", mock.Anything).Return()
	return ms
}

func floatPtr(f float64) *float64 { return &f }

func Test_handleSetup(t *testing.T) {
	t.Run("missing user id is dropped silently", func(t *testing.T) {
		db := &database.MockRepository{}
		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)

		s.handleSetup(c, &ClientEvent{Event: EventSetup})

		_, bound := s.registry.ResolveUserId(c)
		assert.False(t, bound, "expected no registry mutation for malformed setup")
		db.AssertNotCalled(t, "MarkUserOnline", mock.Anything)
	})

	t.Run("unknown user aborts without broadcast", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("MarkUserOnline", 9).Return(database.User{}, sql.ErrNoRows)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		peer := newTestClient(t)
		s.registry.Subscribe(peer, []string{"room1"})

		s.handleSetup(c, &ClientEvent{Event: EventSetup, UserId: 9})

		assert.Empty(t, peer.send, "expected no broadcast for unknown user")
		// the binding survives so a later disconnect can still resolve
		userId, bound := s.registry.ResolveUserId(c)
		assert.True(t, bound)
		assert.Equal(t, 9, userId)
	})

	t.Run("subscribes deduplicated rooms and announces online", func(t *testing.T) {
		user := database.User{
			Id:       7,
			Username: "amira",
			RoomsCreated: []database.RoomRef{
				{Id: 1, ExternalId: "roomA"},
			},
			RoomsJoined: []database.RoomRef{
				{Id: 1, ExternalId: "roomA"}, // creators hold a membership row too
				{Id: 2, ExternalId: "roomB"},
			},
		}

		db := &database.MockRepository{}
		db.On("MarkUserOnline", 7).Return(user, nil)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		peerA := newTestClient(t)
		peerB := newTestClient(t)
		s.registry.Subscribe(peerA, []string{"roomA"})
		s.registry.Subscribe(peerB, []string{"roomB"})

		s.handleSetup(c, &ClientEvent{Event: EventSetup, UserId: 7})

		assert.Equal(t, 2, s.registry.Subscribers("roomA"), "expected connection subscribed to roomA")
		assert.Equal(t, 2, s.registry.Subscribers("roomB"), "expected connection subscribed to roomB")

		assert.Len(t, peerA.send, 1, "expected exactly one online event in roomA despite set overlap")
		assert.Len(t, peerB.send, 1, "expected exactly one online event in roomB")
		assert.Empty(t, c.send, "expected sender to never receive its own broadcast")

		ev := <-peerA.send
		assert.Equal(t, EventStatusChange, ev.Event)
		assert.Equal(t, 7, ev.UserId)
		assert.Equal(t, StatusOnline, ev.Status)
	})
}

func Test_handleLocation(t *testing.T) {
	t.Run("missing fields are dropped silently", func(t *testing.T) {
		db := &database.MockRepository{}
		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)

		tcases := []*ClientEvent{
			{Event: EventSendLocation, Latitude: floatPtr(10), Longitude: floatPtr(20)},
			{Event: EventSendLocation, UserId: 7, Longitude: floatPtr(20)},
			{Event: EventSendLocation, UserId: 7, Latitude: floatPtr(10)},
		}

		for _, ev := range tcases {
			s.handleLocation(c, ev)
		}

		db.AssertNotCalled(t, "UpdateUserLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("zero coordinates are a valid fix", func(t *testing.T) {
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
		}

		db := &database.MockRepository{}
		db.On("UpdateUserLocation", 7, 0.0, 0.0, mock.Anything).Return(user, nil)
		db.On("UpsertLocation", 7, 1, 0.0, 0.0, mock.Anything).Return(nil)

		s := newTestLocationServer(t, db, newMockStats())
		s.handleLocation(newTestClient(t), &ClientEvent{
			Event:     EventSendLocation,
			UserId:    7,
			Latitude:  floatPtr(0),
			Longitude: floatPtr(0),
		})

		db.AssertExpectations(t)
	})

	t.Run("upserts and broadcasts once per distinct room", func(t *testing.T) {
		// user created R1 and was separately invited into R2
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
			RoomsJoined: []database.RoomRef{
				{Id: 1, ExternalId: "roomA"},
				{Id: 2, ExternalId: "roomB"},
			},
		}

		db := &database.MockRepository{}
		db.On("UpdateUserLocation", 7, 10.0, 20.0, mock.Anything).Return(user, nil)
		db.On("UpsertLocation", 7, 1, 10.0, 20.0, mock.Anything).Return(nil).Once()
		db.On("UpsertLocation", 7, 2, 10.0, 20.0, mock.Anything).Return(nil).Once()

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		peerA := newTestClient(t)
		peerB := newTestClient(t)
		s.registry.Subscribe(c, []string{"roomA", "roomB"})
		s.registry.Subscribe(peerA, []string{"roomA"})
		s.registry.Subscribe(peerB, []string{"roomB"})

		s.handleLocation(c, &ClientEvent{
			Event:     EventSendLocation,
			UserId:    7,
			Latitude:  floatPtr(10.0),
			Longitude: floatPtr(20.0),
		})

		db.AssertExpectations(t)

		assert.Len(t, peerA.send, 1, "expected exactly one location event in roomA")
		assert.Len(t, peerB.send, 1, "expected exactly one location event in roomB")
		assert.Empty(t, c.send, "expected sender not to receive its own location echo")

		ev := <-peerA.send
		assert.Equal(t, EventReceiveLocation, ev.Event)
		assert.Equal(t, 7, ev.UserId)
		assert.Equal(t, 10.0, *ev.Latitude)
		assert.Equal(t, 20.0, *ev.Longitude)
		assert.NotNil(t, ev.UpdatedAt)
	})

	t.Run("one room's write failure does not stop the others", func(t *testing.T) {
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
			RoomsJoined:  []database.RoomRef{{Id: 2, ExternalId: "roomB"}},
		}

		db := &database.MockRepository{}
		db.On("UpdateUserLocation", 7, 10.0, 20.0, mock.Anything).Return(user, nil)
		db.On("UpsertLocation", 7, 1, 10.0, 20.0, mock.Anything).Return(errors.New("write failed"))
		db.On("UpsertLocation", 7, 2, 10.0, 20.0, mock.Anything).Return(nil)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		peerA := newTestClient(t)
		peerB := newTestClient(t)
		s.registry.Subscribe(peerA, []string{"roomA"})
		s.registry.Subscribe(peerB, []string{"roomB"})

		s.handleLocation(c, &ClientEvent{
			Event:     EventSendLocation,
			UserId:    7,
			Latitude:  floatPtr(10.0),
			Longitude: floatPtr(20.0),
		})

		db.AssertExpectations(t)
		assert.Len(t, peerA.send, 1, "expected broadcast despite failed persist in roomA")
		assert.Len(t, peerB.send, 1, "expected roomB unaffected by roomA's failure")
	})

	t.Run("repeated updates address the same record key", func(t *testing.T) {
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
		}

		db := &database.MockRepository{}
		db.On("UpdateUserLocation", 7, 10.0, 20.0, mock.Anything).Return(user, nil)
		db.On("UpsertLocation", 7, 1, 10.0, 20.0, mock.Anything).Return(nil).Twice()

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)

		ev := &ClientEvent{Event: EventSendLocation, UserId: 7, Latitude: floatPtr(10.0), Longitude: floatPtr(20.0)}
		s.handleLocation(c, ev)
		s.handleLocation(c, ev)

		db.AssertExpectations(t)
	})

	t.Run("accepted before setup ever ran", func(t *testing.T) {
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
		}

		db := &database.MockRepository{}
		db.On("UpdateUserLocation", 7, 10.0, 20.0, mock.Anything).Return(user, nil)
		db.On("UpsertLocation", 7, 1, 10.0, 20.0, mock.Anything).Return(nil)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t) // never bound

		s.handleLocation(c, &ClientEvent{
			Event:     EventSendLocation,
			UserId:    7,
			Latitude:  floatPtr(10.0),
			Longitude: floatPtr(20.0),
		})

		db.AssertExpectations(t)
		_, bound := s.registry.ResolveUserId(c)
		assert.False(t, bound, "expected location handling to leave the binding untouched")
	})
}

func Test_handleDisconnect(t *testing.T) {
	t.Run("never-authenticated connection leaves silently", func(t *testing.T) {
		db := &database.MockRepository{}
		s := newTestLocationServer(t, db, newMockStats())

		s.handleDisconnect(newTestClient(t))

		db.AssertNotCalled(t, "MarkUserOffline", mock.Anything, mock.Anything)
	})

	t.Run("announces offline with last seen and unbinds", func(t *testing.T) {
		user := database.User{
			Id:           7,
			RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
			RoomsJoined:  []database.RoomRef{{Id: 2, ExternalId: "roomB"}},
		}

		db := &database.MockRepository{}
		db.On("MarkUserOffline", 7, mock.Anything).Return(user, nil)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		peerA := newTestClient(t)
		peerB := newTestClient(t)
		s.registry.Bind(c, 7)
		s.registry.Subscribe(c, []string{"roomA", "roomB"})
		s.registry.Subscribe(peerA, []string{"roomA"})
		s.registry.Subscribe(peerB, []string{"roomB"})

		s.handleDisconnect(c)

		db.AssertExpectations(t)

		for _, peer := range []*Client{peerA, peerB} {
			assert.Len(t, peer.send, 1)
			ev := <-peer.send
			assert.Equal(t, EventStatusChange, ev.Event)
			assert.Equal(t, 7, ev.UserId)
			assert.Equal(t, StatusOffline, ev.Status)
			assert.NotNil(t, ev.LastSeen, "expected offline event to carry last seen")
		}

		_, bound := s.registry.ResolveUserId(c)
		assert.False(t, bound, "expected binding removed on disconnect")
	})

	t.Run("missing user record aborts after unbinding", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("MarkUserOffline", 7, mock.Anything).Return(database.User{}, sql.ErrNoRows)

		s := newTestLocationServer(t, db, newMockStats())
		c := newTestClient(t)
		s.registry.Bind(c, 7)

		s.handleDisconnect(c)

		_, bound := s.registry.ResolveUserId(c)
		assert.False(t, bound)
	})
}

func TestPresenceSymmetry(t *testing.T) {
	// user 7 is a member of rooms A and B; peers in both rooms see the
	// online announcement on setup and the offline one on disconnect
	user := database.User{
		Id:           7,
		RoomsCreated: []database.RoomRef{{Id: 1, ExternalId: "roomA"}},
		RoomsJoined:  []database.RoomRef{{Id: 2, ExternalId: "roomB"}},
	}

	db := &database.MockRepository{}
	db.On("MarkUserOnline", 7).Return(user, nil)
	db.On("MarkUserOffline", 7, mock.Anything).Return(user, nil)

	s := newTestLocationServer(t, db, newMockStats())
	c := newTestClient(t)
	peerA := newTestClient(t)
	peerB := newTestClient(t)
	s.registry.Subscribe(peerA, []string{"roomA"})
	s.registry.Subscribe(peerB, []string{"roomB"})

	s.handleSetup(c, &ClientEvent{Event: EventSetup, UserId: 7})
	s.handleDisconnect(c)

	for _, peer := range []*Client{peerA, peerB} {
		assert.Len(t, peer.send, 2, "expected online followed by offline")

		online := <-peer.send
		assert.Equal(t, StatusOnline, online.Status)
		assert.Nil(t, online.LastSeen)

		offline := <-peer.send
		assert.Equal(t, StatusOffline, offline.Status)
		assert.NotNil(t, offline.LastSeen)
	}
}

func Test_dedupeRooms(t *testing.T) {
	tcases := []struct {
		name     string
		created  []database.RoomRef
		joined   []database.RoomRef
		expected []string
	}{
		{
			name:     "no overlap",
			created:  []database.RoomRef{{Id: 1, ExternalId: "a"}},
			joined:   []database.RoomRef{{Id: 2, ExternalId: "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "creator membership overlap collapses",
			created:  []database.RoomRef{{Id: 1, ExternalId: "a"}},
			joined:   []database.RoomRef{{Id: 1, ExternalId: "a"}, {Id: 2, ExternalId: "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "empty sets",
			expected: []string{},
		},
		{
			name:     "duplicates within one set",
			joined:   []database.RoomRef{{Id: 2, ExternalId: "b"}, {Id: 2, ExternalId: "b"}},
			expected: []string{"b"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := dedupeRooms(tc.created, tc.joined)
			assert.Equal(t, tc.expected, roomChannels(rooms))
		})
	}
}
