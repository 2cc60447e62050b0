package rtserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_queueEvent(t *testing.T) {
	t.Run("queued for the write pump", func(t *testing.T) {
		c := newTestClient(t)
		ev := UserOnline(7)

		assert.True(t, c.queueEvent(ev))
		assert.Equal(t, ev, <-c.send)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		c := newTestClient(t)
		for i := 0; i < cap(c.send); i++ {
			assert.True(t, c.queueEvent(UserOnline(i)))
		}

		assert.False(t, c.queueEvent(UserOnline(99)))
		assert.Len(t, c.send, cap(c.send))
	})
}

func Test_stopClient(t *testing.T) {
	c := newTestClient(t)

	c.stopClient()
	select {
	case <-c.stop:
	default:
		t.Fatal("expected stop channel closed")
	}

	// a second stop must not panic on the closed channel
	c.stopClient()
}
