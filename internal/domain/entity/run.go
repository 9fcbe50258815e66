package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusCancelled  RunStatus = "CANCELLED"
)

// ExtractionRun is one slide extraction job. It owns its slides exclusively
// for the duration of the run; only metadata and artifact keys survive in
// the repository once the artifacts are uploaded.
type ExtractionRun struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	ArchiveKey    string
	DocumentKey   string
	Status        RunStatus
	Settings      ExtractionSettings
	SlideCount    int
	FileSize      int64
	VideoDuration float64
	Heuristic     bool
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewExtractionRun(userID, videoKey string, fileSize int64, settings ExtractionSettings, maxAttempts int) *ExtractionRun {
	now := time.Now().UTC()
	return &ExtractionRun{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Settings:    settings,
		Status:      RunStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *ExtractionRun) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.Attempt++
	r.UpdatedAt = time.Now().UTC()
}

func (r *ExtractionRun) MarkCompleted(archiveKey, documentKey string, slideCount int, duration float64, heuristic bool) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.ArchiveKey = archiveKey
	r.DocumentKey = documentKey
	r.SlideCount = slideCount
	r.VideoDuration = duration
	r.Heuristic = heuristic
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *ExtractionRun) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}

func (r *ExtractionRun) MarkCancelled() {
	r.Status = RunStatusCancelled
	r.UpdatedAt = time.Now().UTC()
}

func (r *ExtractionRun) CanRetry() bool {
	return r.Attempt < r.MaxAttempts
}
