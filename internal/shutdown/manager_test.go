package shutdown

import (
	"context"
	"testing"
	"time"

	"angioscan/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownReleasesInReverseOrder(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())

	var order []string
	m.Register("loader", Func(func() { order = append(order, "loader") }))
	m.Register("session", Func(func() { order = append(order, "session") }))

	select {
	case <-m.Done():
		t.Fatal("done before shutdown")
	default:
	}

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"session", "loader"}, order)
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)

	select {
	case <-m.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestShutdownDoesNotWaitForeverOnStuckComponent(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	m.SetTimeout(20 * time.Millisecond)

	block := make(chan struct{})
	defer close(block)

	released := false
	m.Register("released", Func(func() { released = true }))
	m.Register("stuck", Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()

	assert.True(t, released)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, logger.NewNop())

	cancel()
	require.ErrorIs(t, m.Context().Err(), context.Canceled)

	select {
	case <-m.Done():
		t.Fatal("parent cancellation must not run the shutdown sequence")
	default:
	}
}

func TestListenStopsAfterShutdown(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop())
	m.Listen()
	m.Shutdown()

	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}
