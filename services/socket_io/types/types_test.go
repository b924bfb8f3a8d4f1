package socketio_types

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEnterExitCancels(t *testing.T) {
	sess := &Session{Identity: "a"}
	ctx := sess.Enter("ROOM1", "Ada", 3)
	assert.Equal(t, "ROOM1", sess.Room())
	assert.Equal(t, "Ada", sess.Name())
	assert.Equal(t, int64(3), sess.JoinVersion())

	next := sess.Enter("ROOM2", "Ada", 1)
	assert.Error(t, ctx.Err(), "entering another room cancels the previous one")
	assert.NoError(t, next.Err())

	assert.Equal(t, "ROOM2", sess.Exit())
	assert.Error(t, next.Err())
	assert.Equal(t, "", sess.Room())
	assert.Equal(t, "", sess.Exit())
}

func TestSessionDrivesOnce(t *testing.T) {
	sess := &Session{Identity: "a"}
	assert.False(t, sess.Drive("ROOM1", func(ctx context.Context) {}), "no room yet")

	sess.Enter("ROOM1", "Ada", 1)
	var running int32
	stopped := make(chan struct{})
	loop := func(ctx context.Context) {
		atomic.AddInt32(&running, 1)
		<-ctx.Done()
		close(stopped)
	}
	require.True(t, sess.Drive("ROOM1", loop))
	assert.False(t, sess.Drive("ROOM1", loop))
	assert.False(t, sess.Drive("OTHER", loop))

	sess.Exit()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("loop survived exit")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&running))
}

func TestSessionDrivesAgainAfterLoopEnds(t *testing.T) {
	sess := &Session{Identity: "a"}
	sess.Enter("ROOM1", "Ada", 1)

	done := make(chan struct{})
	require.True(t, sess.Drive("ROOM1", func(ctx context.Context) { close(done) }))
	<-done
	assert.Eventually(t, func() bool {
		return sess.Drive("ROOM1", func(ctx context.Context) {})
	}, time.Second, 5*time.Millisecond)
}

func TestConnectionsMap(t *testing.T) {
	s := NewSocketServer()
	first := &Session{Identity: "a"}
	second := &Session{Identity: "a"}
	other := &Session{Identity: "b"}

	assert.Nil(t, s.AddConnection(first))
	assert.Same(t, first, s.AddConnection(second))
	s.AddConnection(other)

	// removing a replaced session keeps the new one
	s.RemoveConnection(first)
	got, ok := s.GetConnection("a")
	require.True(t, ok)
	assert.Same(t, second, got)

	second.Enter("ROOM1", "Ada", 1)
	assert.Equal(t, []*Session{second}, s.InRoom("ROOM1"))

	s.RemoveConnection(second)
	_, ok = s.GetConnection("a")
	assert.False(t, ok)
}

func TestStaleLoopKeepsNewLoopDriving(t *testing.T) {
	sess := &Session{Identity: "a"}
	var live int32

	sess.Enter("ROOM1", "Ada", 1)
	release := make(chan struct{})
	oldDone := make(chan struct{})
	require.True(t, sess.Drive("ROOM1", func(ctx context.Context) {
		atomic.AddInt32(&live, 1)
		<-ctx.Done()
		<-release
		atomic.AddInt32(&live, -1)
		close(oldDone)
	}))

	// leave and come back while the old loop is still unwinding
	sess.Exit()
	sess.Enter("ROOM1", "Ada", 4)
	require.True(t, sess.Drive("ROOM1", func(ctx context.Context) {
		atomic.AddInt32(&live, 1)
		<-ctx.Done()
		atomic.AddInt32(&live, -1)
	}))

	close(release)
	<-oldDone
	time.Sleep(20 * time.Millisecond)

	assert.False(t, sess.Drive("ROOM1", func(ctx context.Context) {
		atomic.AddInt32(&live, 1)
		<-ctx.Done()
		atomic.AddInt32(&live, -1)
	}), "the rejoined loop is still running")
	assert.Equal(t, int32(1), atomic.LoadInt32(&live))

	sess.Exit()
}
