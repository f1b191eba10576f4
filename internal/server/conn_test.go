package server

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_SlowClientIsClosed(t *testing.T) {
	c := newConn(nil, zerolog.Nop())

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, c.Send([]byte(`{"action":"data"}`)))
	}

	assert.ErrorIs(t, c.Send([]byte(`{"action":"clearbuzzers"}`)), errConnSlow)
	assert.ErrorIs(t, c.Send([]byte(`{"action":"reveal"}`)), errConnClosed)

	c.mu.Lock()
	assert.True(t, c.closing)
	c.mu.Unlock()

	// Frames queued before the overflow still drain, then the queue ends.
	n := 0
	for range c.send {
		n++
	}
	assert.Equal(t, sendBuffer, n)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c := newConn(nil, zerolog.Nop())

	require.NoError(t, c.Send([]byte(`{"action":"data"}`)))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Send([]byte(`{"action":"data"}`)), errConnClosed)

	msg, ok := <-c.send
	require.True(t, ok)
	assert.JSONEq(t, `{"action":"data"}`, string(msg))

	_, ok = <-c.send
	assert.False(t, ok)
}
