package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	video_key      TEXT NOT NULL,
	archive_key    TEXT NOT NULL DEFAULT '',
	document_key   TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	settings       JSONB NOT NULL DEFAULT '{}',
	slide_count    INT NOT NULL DEFAULT 0,
	file_size      BIGINT NOT NULL DEFAULT 0,
	video_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
	heuristic      BOOLEAN NOT NULL DEFAULT FALSE,
	attempt        INT NOT NULL DEFAULT 0,
	max_attempts   INT NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_user ON extraction_runs (user_id);
`

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// EnsureSchema applies the table DDL. Idempotent; called at startup.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *entity.ExtractionRun) error {
	settings, err := json.Marshal(run.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO extraction_runs (
			id, user_id, video_key, archive_key, document_key, status,
			settings, slide_count, file_size, video_duration, heuristic,
			attempt, max_attempts, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err = r.pool.Exec(ctx, query,
		run.ID, run.UserID, run.VideoKey, run.ArchiveKey, run.DocumentKey,
		string(run.Status), settings, run.SlideCount, run.FileSize,
		run.VideoDuration, run.Heuristic, run.Attempt, run.MaxAttempts,
		run.ErrorMessage, run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.ExtractionRun) error {
	query := `
		UPDATE extraction_runs SET
			status=$2, archive_key=$3, document_key=$4, slide_count=$5,
			video_duration=$6, heuristic=$7, attempt=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.ArchiveKey, run.DocumentKey,
		run.SlideCount, run.VideoDuration, run.Heuristic, run.Attempt,
		run.ErrorMessage, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRun, error) {
	query := `
		SELECT id, user_id, video_key, archive_key, document_key, status,
			settings, slide_count, file_size, video_duration, heuristic,
			attempt, max_attempts, error_message, created_at, updated_at, completed_at
		FROM extraction_runs WHERE id=$1`

	run := &entity.ExtractionRun{}
	var status string
	var settings []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.UserID, &run.VideoKey, &run.ArchiveKey, &run.DocumentKey,
		&status, &settings, &run.SlideCount, &run.FileSize, &run.VideoDuration,
		&run.Heuristic, &run.Attempt, &run.MaxAttempts, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find run by id: %w", err)
	}
	run.Status = entity.RunStatus(status)
	if err := json.Unmarshal(settings, &run.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return run, nil
}
