package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, queueSize int) *Dispatcher {
	t.Helper()
	d := New(slog.Default(), queueSize)
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func TestSubmitRunsTasks(t *testing.T) {
	d := newTestDispatcher(t, 0)

	var ran atomic.Int64
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit("count", func() { ran.Add(1) }))
	}
	require.NoError(t, d.Submit("signal", func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	assert.Equal(t, int64(10), ran.Load())
}

func TestTasksRunInSubmissionOrder(t *testing.T) {
	d := newTestDispatcher(t, 0)

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, d.Submit("ordered", func() { order = append(order, i) }))
	}
	require.NoError(t, d.Submit("signal", func() { close(done) }))

	<-done
	// order is only touched on the dispatcher goroutine, so reading it
	// after the signal task is safe
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDoWaitsForResult(t *testing.T) {
	d := newTestDispatcher(t, 0)

	value := 0
	err := d.Do(context.Background(), "read", func() { value = 42 })
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	d := newTestDispatcher(t, 0)

	block := make(chan struct{})
	require.NoError(t, d.Submit("block", func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Do(ctx, "stuck", func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestTaskPanicDoesNotKillLoop(t *testing.T) {
	d := newTestDispatcher(t, 0)

	require.NoError(t, d.Submit("boom", func() { panic("broken task") }))

	survived := false
	require.NoError(t, d.Do(context.Background(), "after", func() { survived = true }))
	assert.True(t, survived)
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	d := New(slog.Default(), 64)
	d.Start(context.Background())

	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Submit("drain", func() { ran.Add(1) }))
	}
	d.Stop()

	assert.Equal(t, int64(20), ran.Load())
}

func TestSubmitAfterStopFails(t *testing.T) {
	d := New(slog.Default(), 0)
	d.Start(context.Background())
	d.Stop()

	err := d.Submit("late", func() {})
	assert.ErrorIs(t, err, ErrStopped)

	err = d.Do(context.Background(), "late", func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestTrySubmitDropsWhenFull(t *testing.T) {
	d := New(slog.Default(), 1)
	// not started, so nothing consumes the queue
	assert.True(t, d.TrySubmit("first", func() {}))
	assert.False(t, d.TrySubmit("second", func() {}))
	assert.Equal(t, 1, d.QueueDepth())
}

func TestDuplicateStartIgnored(t *testing.T) {
	d := newTestDispatcher(t, 0)
	d.Start(context.Background())

	ok := false
	require.NoError(t, d.Do(context.Background(), "check", func() { ok = true }))
	assert.True(t, ok)
}
