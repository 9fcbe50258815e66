package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestTaskTrackerCreateAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))

	status, err := tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", status.ID)
	assert.Equal(t, entity.TaskStatePending, status.State)
	assert.Zero(t, status.Progress)
	assert.False(t, status.UpdatedAt.IsZero())
}

func TestTaskTrackerGetUnknownTask(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)

	_, err := tracker.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrTaskNotFound)
}

func TestTaskTrackerStateTransitions(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))
	require.NoError(t, tracker.SetState(ctx, "run-1", entity.TaskStateRunning, "processing"))

	status, err := tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStateRunning, status.State)
	assert.Equal(t, "processing", status.Message)

	require.NoError(t, tracker.SetState(ctx, "run-1", entity.TaskStateCompleted, "done"))
	status, err = tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStateCompleted, status.State)
	assert.Equal(t, 100, status.Progress)
}

func TestTaskTrackerTerminalStateNotOverwritten(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))
	require.NoError(t, tracker.SetState(ctx, "run-1", entity.TaskStateFailed, "boom"))

	// A late running update must not revive a failed task.
	require.NoError(t, tracker.SetState(ctx, "run-1", entity.TaskStateRunning, "late"))
	require.NoError(t, tracker.SetProgress(ctx, "run-1", 50))

	status, err := tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStateFailed, status.State)
	assert.Equal(t, "boom", status.Message)
}

func TestTaskTrackerProgressClamped(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))
	require.NoError(t, tracker.SetState(ctx, "run-1", entity.TaskStateRunning, ""))

	require.NoError(t, tracker.SetProgress(ctx, "run-1", 140))
	status, err := tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)

	require.NoError(t, tracker.SetProgress(ctx, "run-1", -5))
	status, err = tracker.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Zero(t, status.Progress)
}

func TestTaskTrackerProgressUnknownTask(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)

	err := tracker.SetProgress(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, port.ErrTaskNotFound)
}

func TestTaskTrackerCancelFlag(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))

	cancelled, err := tracker.CancelRequested(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, tracker.RequestCancel(ctx, "run-1"))

	cancelled, err = tracker.CancelRequested(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestTaskTrackerCancelUnknownTask(t *testing.T) {
	client, _ := newTestClient(t)
	tracker := NewTaskTracker(client)

	err := tracker.RequestCancel(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrTaskNotFound)
}

func TestTaskTrackerEntriesExpire(t *testing.T) {
	client, mr := newTestClient(t)
	tracker := NewTaskTracker(client)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "run-1"))

	mr.FastForward(taskTTL + 1)

	_, err := tracker.Get(ctx, "run-1")
	assert.ErrorIs(t, err, port.ErrTaskNotFound)
}
