package port

import (
	"context"
	"errors"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskTracker records per-run progress and carries the cancellation flag
// between the API and the worker. Terminal states are never overwritten.
type TaskTracker interface {
	Create(ctx context.Context, id string) error
	SetState(ctx context.Context, id string, state entity.TaskState, message string) error
	SetProgress(ctx context.Context, id string, progress int) error
	Get(ctx context.Context, id string) (entity.TaskStatus, error)
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
}
