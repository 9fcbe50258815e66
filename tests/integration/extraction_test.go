package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/infra/email"
	"github.com/mentingo/mentingo-slide-service/internal/infra/ffmpeg"
	miniostorage "github.com/mentingo/mentingo-slide-service/internal/infra/minio"
	"github.com/mentingo/mentingo-slide-service/internal/infra/postgres"
	"github.com/mentingo/mentingo-slide-service/internal/infra/rabbitmq"
	redisinfra "github.com/mentingo/mentingo-slide-service/internal/infra/redis"
	"github.com/mentingo/mentingo-slide-service/internal/usecase"
	"github.com/mentingo/mentingo-slide-service/pkg/logger"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func TestExtractSlidesEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("slides"),
		tcpostgres.WithUsername("slides_user"),
		tcpostgres.WithPassword("slides_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Redis stand-in for task tracking
	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	// Setup DB pool and schema
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	repo := postgres.NewRunRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       minioEndpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		UseSSL:         false,
		UploadBucket:   "uploads",
		ArtifactBucket: "slide-artifacts",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Upload test video to MinIO
	testVideoPath := filepath.Join("..", "testdata", "slides.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/slides.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=45:size=640x360:rate=1 -c:v libx264 -pix_fmt yuv420p tests/testdata/slides.mp4")
	}

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/slides.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "mentingo.slides")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "slides.extraction.dlq")

	// Setup use case
	log, _ := logger.New("debug")
	tracker := redisinfra.NewTaskTracker(redisClient)
	prober := ffmpeg.NewProber("ffmpeg", "ffprobe", log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewExtractSlidesUseCase(
		repo, storage, prober, tracker,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExtractSlidesConfig{
			TempDir:          t.TempDir(),
			MaxRetries:       3,
			ReadyTimeout:     10 * time.Second,
			FallbackDuration: 323,
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "slides.extraction",
		Exchange:    "mentingo.slides",
		DLQ:         "slides.extraction.dlq",
		StatusQueue: "slides.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	// Start consumer in background
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Publish extraction message
	runID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	extractionMsg := entity.SlideExtractionMessage{
		RunID:     runID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
		Settings: entity.ExtractionSettings{
			CorrelationThreshold: 0.999,
			MinInterval:          10,
			MaxSlides:            50,
		},
	}
	msgBody, err := json.Marshal(extractionMsg)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"mentingo.slides",
		"slides.extraction",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait for status message on slides.status queue
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("slides.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.ExtractionStatusMessage
	select {
	case delivery := <-statusMsgs:
		err = json.Unmarshal(delivery.Body, &statusMsg)
		require.NoError(t, err)
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	// Assert status
	assert.Equal(t, runID, statusMsg.RunID)
	assert.Equal(t, entity.RunStatusCompleted, statusMsg.Status)
	assert.Greater(t, statusMsg.SlideCount, 0)
	assert.NotEmpty(t, statusMsg.ArchiveKey)
	assert.NotEmpty(t, statusMsg.DocumentKey)

	// Verify archive exists in MinIO and contains the slides plus summary
	archiveObj, err := minioClient.GetObject(ctx, "slide-artifacts", statusMsg.ArchiveKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	var archiveBuf bytes.Buffer
	_, err = archiveBuf.ReadFrom(archiveObj)
	require.NoError(t, err)

	zipReader, err := zip.NewReader(bytes.NewReader(archiveBuf.Bytes()), int64(archiveBuf.Len()))
	require.NoError(t, err)

	imageCount := 0
	summarySeen := false
	for _, f := range zipReader.File {
		if strings.HasSuffix(f.Name, ".png") || strings.HasSuffix(f.Name, ".jpg") {
			imageCount++
		}
		if f.Name == "slides_summary.txt" {
			summarySeen = true
		}
	}
	assert.Equal(t, statusMsg.SlideCount, imageCount, "archive should hold one image per slide")
	assert.True(t, summarySeen, "archive should include the summary")

	// Verify PDF artifact
	docObj, err := minioClient.GetObject(ctx, "slide-artifacts", statusMsg.DocumentKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	var docBuf bytes.Buffer
	_, err = docBuf.ReadFrom(docObj)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(docBuf.Bytes(), []byte("%PDF-1.4")))

	// Verify run record in database
	var dbStatus string
	var dbSlideCount int
	err = pool.QueryRow(ctx,
		"SELECT status, slide_count FROM extraction_runs WHERE id=$1", runID,
	).Scan(&dbStatus, &dbSlideCount)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, imageCount, dbSlideCount)

	// Task tracker reports completion
	status, err := tracker.Get(ctx, runID.String())
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStateCompleted, status.State)
	assert.Equal(t, 100, status.Progress)

	consumerCancel()

	t.Logf("Test passed: %d slides extracted, archive at %s", imageCount, statusMsg.ArchiveKey)
}

func TestExtractSlidesMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Start PostgreSQL
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("slides"),
		tcpostgres.WithUsername("slides_user"),
		tcpostgres.WithPassword("slides_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO (no video upload needed for this test)
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       minioEndpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		UseSSL:         false,
		UploadBucket:   "uploads",
		ArtifactBucket: "slide-artifacts",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	repo := postgres.NewRunRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	log, _ := logger.New("debug")
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "mentingo.slides")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "slides.extraction.dlq")

	tracker := redisinfra.NewTaskTracker(redisClient)
	prober := ffmpeg.NewProber("ffmpeg", "ffprobe", log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewExtractSlidesUseCase(
		repo, storage, prober, tracker,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExtractSlidesConfig{
			TempDir:      t.TempDir(),
			MaxRetries:   3,
			ReadyTimeout: 10 * time.Second,
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "slides.extraction",
		Exchange:    "mentingo.slides",
		DLQ:         "slides.extraction.dlq",
		StatusQueue: "slides.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()
	time.Sleep(500 * time.Millisecond)

	// Publish malformed message
	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"mentingo.slides",
		"slides.extraction",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify message landed in DLQ
	time.Sleep(2 * time.Second)

	dlqCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("slides.extraction.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))

	consumerCancel()
	t.Log("Test passed: malformed message sent to DLQ")
}
