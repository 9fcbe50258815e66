package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	"github.com/mentingo/mentingo-slide-service/internal/encode"
	"github.com/mentingo/mentingo-slide-service/internal/infra/metrics"
	"github.com/mentingo/mentingo-slide-service/internal/slides"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ExtractSlidesUseCase struct {
	repo      port.RunRepository
	storage   port.MediaStorage
	opener    port.FrameSourceOpener
	tracker   port.TaskTracker
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger

	tempDir          string
	maxRetry         int
	readyTimeout     time.Duration
	fallbackDuration float64
}

type ExtractSlidesConfig struct {
	TempDir          string
	MaxRetries       int
	ReadyTimeout     time.Duration
	FallbackDuration float64
}

func NewExtractSlidesUseCase(
	repo port.RunRepository,
	storage port.MediaStorage,
	opener port.FrameSourceOpener,
	tracker port.TaskTracker,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExtractSlidesConfig,
) *ExtractSlidesUseCase {
	return &ExtractSlidesUseCase{
		repo:             repo,
		storage:          storage,
		opener:           opener,
		tracker:          tracker,
		publisher:        publisher,
		dlq:              dlq,
		notifier:         notifier,
		logger:           logger,
		tempDir:          cfg.TempDir,
		maxRetry:         cfg.MaxRetries,
		readyTimeout:     cfg.ReadyTimeout,
		fallbackDuration: cfg.FallbackDuration,
	}
}

func (uc *ExtractSlidesUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractSlidesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.SlideExtractionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("run.id", msg.RunID.String()),
		attribute.String("run.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("run_id", msg.RunID.String()), zap.String("video_key", msg.VideoKey))

	run, err := uc.repo.FindByID(ctx, msg.RunID)
	if err != nil {
		run = entity.NewExtractionRun(msg.UserID, msg.VideoKey, msg.FileSize, msg.Settings.Normalized(), uc.maxRetry)
		run.ID = msg.RunID
		if err := uc.repo.Create(ctx, run); err != nil {
			log.Error("failed to create run record", zap.Error(err))
			return fmt.Errorf("create run: %w", err)
		}
	}

	if cancelled, _ := uc.tracker.CancelRequested(ctx, run.ID.String()); cancelled {
		uc.finishCancelled(ctx, run, log)
		return nil
	}

	if err := run.Settings.Validate(); err != nil {
		log.Warn("invalid extraction settings, sending to DLQ", zap.Error(err))
		_ = uc.handlePermanentFailure(ctx, run, msg, rawMsg, "invalid settings: "+err.Error())
		return nil
	}

	if !run.CanRetry() {
		log.Warn("run exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, run, msg, rawMsg, "max retries exceeded")
		return nil
	}

	run.MarkProcessing()
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to PROCESSING", zap.Error(err))
		return fmt.Errorf("update run: %w", err)
	}
	_ = uc.tracker.SetState(ctx, run.ID.String(), entity.TaskStateRunning, "")

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, run, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.RunsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.RunProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ExtractSlidesUseCase) runPipeline(
	ctx context.Context,
	run *entity.ExtractionRun,
	msg entity.SlideExtractionMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, run.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from object storage
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.RunProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Detect slides
	detectStart := time.Now()
	ctxDet, spanDet := tracer.Start(ctx, "detect_slides")
	result, cancelled, err := uc.detect(ctxDet, run, videoPath, log)
	spanDet.End()
	if cancelled {
		uc.finishCancelled(ctx, run, log)
		return nil
	}
	if err != nil {
		log.Error("slide detection failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "detect_slides: "+err.Error(), log)
	}
	metrics.RunProcessingDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())
	metrics.SlidesDetectedTotal.Add(float64(len(result.Slides)))
	if result.Heuristic {
		metrics.FallbackRunsTotal.Inc()
	}

	// Encode both output forms
	encStart := time.Now()
	_, spanEnc := tracer.Start(ctx, "encode_artifacts")
	baseName := artifactBaseName(msg.VideoKey)
	archive, err := encode.Archive(ctx, result.Slides, baseName, run.Settings)
	if err != nil {
		spanEnc.End()
		log.Error("archive encoding failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "encode_archive: "+err.Error(), log)
	}
	document, pages, err := encode.Document(result.Slides)
	if err != nil {
		spanEnc.End()
		log.Error("document encoding failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "encode_document: "+err.Error(), log)
	}
	spanEnc.End()
	metrics.RunProcessingDuration.WithLabelValues("encode").Observe(time.Since(encStart).Seconds())

	// Upload artifacts
	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_artifacts")
	archiveKey := fmt.Sprintf("%s/%s_slides_%s.zip", run.UserID, baseName, run.ID.String())
	documentKey := fmt.Sprintf("%s/%s_slides_%s.pdf", run.UserID, baseName, run.ID.String())
	if err := uc.storage.UploadArtifact(ctxUp, archiveKey, "application/zip", bytes.NewReader(archive), int64(len(archive))); err != nil {
		spanUp.End()
		log.Error("archive upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "upload_archive: "+err.Error(), log)
	}
	if err := uc.storage.UploadArtifact(ctxUp, documentKey, "application/pdf", bytes.NewReader(document), int64(len(document))); err != nil {
		spanUp.End()
		log.Error("document upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, run, msg, rawMsg, "upload_document: "+err.Error(), log)
	}
	spanUp.End()
	metrics.RunProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	run.MarkCompleted(archiveKey, documentKey, len(result.Slides), result.Duration, result.Heuristic)
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to COMPLETED", zap.Error(err))
		return fmt.Errorf("update run completed: %w", err)
	}
	_ = uc.tracker.SetState(ctx, run.ID.String(), entity.TaskStateCompleted, "")

	uc.publishStatus(ctx, run, log)

	log.Info("run completed",
		zap.Int("slide_count", len(result.Slides)),
		zap.Int("document_pages", pages),
		zap.Float64("duration_secs", result.Duration),
		zap.Bool("heuristic", result.Heuristic),
		zap.String("archive_key", archiveKey),
	)

	return nil
}

// detect opens the downloaded video and runs the sampling/detection loop.
// Cancellation is polled between samples via the tracker; a cancelled run
// discards any partial slide list.
func (uc *ExtractSlidesUseCase) detect(ctx context.Context, run *entity.ExtractionRun, videoPath string, log *zap.Logger) (*slides.Result, bool, error) {
	source, err := uc.opener.Open(ctx, videoPath)
	if err != nil {
		return nil, false, fmt.Errorf("open frame source: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	expected := 1
	if d := source.Duration(); d > 0 && run.Settings.MinInterval > 0 {
		expected = int(d/run.Settings.MinInterval) + 1
	}

	cancelSeen := false
	opts := slides.Options{
		ReadyTimeout:      uc.readyTimeout,
		EstimatedDuration: uc.fallbackDuration,
		OnProgress: func(sampled int) {
			if requested, _ := uc.tracker.CancelRequested(ctx, run.ID.String()); requested {
				cancelSeen = true
				cancel()
				return
			}
			progress := sampled * 95 / expected
			if progress > 95 {
				progress = 95
			}
			_ = uc.tracker.SetProgress(ctx, run.ID.String(), progress)
		},
	}

	result, err := slides.Extract(ctx, source, run.ID.String(), run.Settings, opts)
	if cancelSeen && errors.Is(err, context.Canceled) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if result.Heuristic {
		log.Warn("source produced no frames, used placeholder fallback",
			zap.Int("placeholder_slides", len(result.Slides)))
	}
	return result, false, nil
}

func (uc *ExtractSlidesUseCase) finishCancelled(ctx context.Context, run *entity.ExtractionRun, log *zap.Logger) {
	run.MarkCancelled()
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run to CANCELLED", zap.Error(err))
	}
	_ = uc.tracker.SetState(ctx, run.ID.String(), entity.TaskStateCancelled, "cancelled by caller")
	uc.publishStatus(ctx, run, log)
	metrics.RunsProcessedTotal.WithLabelValues("cancelled").Inc()
	log.Info("run cancelled, partial results discarded")
}

func (uc *ExtractSlidesUseCase) handleRetryableFailure(
	ctx context.Context,
	run *entity.ExtractionRun,
	msg entity.SlideExtractionMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	run.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, run)

	if !run.CanRetry() {
		return uc.handlePermanentFailure(ctx, run, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(run.Attempt)).Inc()
	uc.publishStatus(ctx, run, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", run.Attempt, run.MaxAttempts, errMsg)
}

func (uc *ExtractSlidesUseCase) handlePermanentFailure(
	ctx context.Context,
	run *entity.ExtractionRun,
	msg entity.SlideExtractionMessage,
	rawMsg []byte,
	errMsg string,
) error {
	run.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, run)
	_ = uc.tracker.SetState(ctx, run.ID.String(), entity.TaskStateFailed, errMsg)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, run, uc.logger)

	metrics.RunsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, run.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ExtractSlidesUseCase) publishStatus(ctx context.Context, run *entity.ExtractionRun, log *zap.Logger) {
	statusMsg := entity.ExtractionStatusMessage{
		RunID:        run.ID,
		UserID:       run.UserID,
		Status:       run.Status,
		VideoKey:     run.VideoKey,
		ArchiveKey:   run.ArchiveKey,
		DocumentKey:  run.DocumentKey,
		SlideCount:   run.SlideCount,
		Duration:     run.VideoDuration,
		Heuristic:    run.Heuristic,
		ErrorMessage: run.ErrorMessage,
		Attempt:      run.Attempt,
		MaxAttempts:  run.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

func artifactBaseName(videoKey string) string {
	base := filepath.Base(videoKey)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		base = "video"
	}
	return base
}
