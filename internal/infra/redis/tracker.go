package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	goredis "github.com/redis/go-redis/v9"
)

const taskTTL = 24 * time.Hour

// TaskTracker keeps per-run task state in Redis so the API and the worker
// pool can share progress and cancellation across processes.
type TaskTracker struct {
	client *goredis.Client
}

func NewTaskTracker(client *goredis.Client) *TaskTracker {
	return &TaskTracker{client: client}
}

func taskKey(id string) string   { return "task:" + id }
func cancelKey(id string) string { return "task:" + id + ":cancel" }

func (t *TaskTracker) Create(ctx context.Context, id string) error {
	return t.write(ctx, id, entity.TaskStatePending, 0, "")
}

func (t *TaskTracker) SetState(ctx context.Context, id string, state entity.TaskState, message string) error {
	current, err := t.Get(ctx, id)
	if err == nil && current.State.Terminal() {
		return nil
	}

	progress := 0
	if err == nil {
		progress = current.Progress
	}
	if state == entity.TaskStateCompleted {
		progress = 100
	}
	return t.write(ctx, id, state, progress, message)
}

func (t *TaskTracker) SetProgress(ctx context.Context, id string, progress int) error {
	current, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.State.Terminal() {
		return nil
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return t.write(ctx, id, current.State, progress, current.Message)
}

func (t *TaskTracker) Get(ctx context.Context, id string) (entity.TaskStatus, error) {
	fields, err := t.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return entity.TaskStatus{}, fmt.Errorf("get task %s: %w", id, err)
	}
	if len(fields) == 0 {
		return entity.TaskStatus{}, port.ErrTaskNotFound
	}

	progress, _ := strconv.Atoi(fields["progress"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return entity.TaskStatus{
		ID:        id,
		State:     entity.TaskState(fields["state"]),
		Progress:  progress,
		Message:   fields["message"],
		UpdatedAt: updatedAt,
	}, nil
}

func (t *TaskTracker) RequestCancel(ctx context.Context, id string) error {
	if _, err := t.Get(ctx, id); err != nil {
		return err
	}
	if err := t.client.Set(ctx, cancelKey(id), "1", taskTTL).Err(); err != nil {
		return fmt.Errorf("request cancel %s: %w", id, err)
	}
	return nil
}

func (t *TaskTracker) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := t.client.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check cancel %s: %w", id, err)
	}
	return n > 0, nil
}

func (t *TaskTracker) write(ctx context.Context, id string, state entity.TaskState, progress int, message string) error {
	key := taskKey(id)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"state":      string(state),
		"progress":   strconv.Itoa(progress),
		"message":    message,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write task %s: %w", id, err)
	}
	return nil
}
