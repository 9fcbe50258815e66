package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mentingo/mentingo-slide-service/internal/api"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/infra/config"
	miniostorage "github.com/mentingo/mentingo-slide-service/internal/infra/minio"
	"github.com/mentingo/mentingo-slide-service/internal/infra/postgres"
	"github.com/mentingo/mentingo-slide-service/internal/infra/rabbitmq"
	redisinfra "github.com/mentingo/mentingo-slide-service/internal/infra/redis"
	"github.com/mentingo/mentingo-slide-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting mentingo-slide-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	repo := postgres.NewRunRepository(pool)
	fatalOnErr(repo.EnsureSchema(ctx), "ensure schema")

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	})
	fatalOnErr(err, "create minio storage")

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	fatalOnErr(redisClient.Ping(ctx).Err(), "connect to redis")

	tracker := redisinfra.NewTaskTracker(redisClient)
	cache := redisinfra.NewArtifactCache(
		redisClient,
		time.Duration(cfg.CacheTTLHours)*time.Hour,
		cfg.CacheMaxEntries,
	)

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	jobs := rabbitmq.NewJobPublisher(pub)

	server := api.NewServer(repo, tracker, jobs, storage, cache, log, api.ServerConfig{
		Defaults: entity.ExtractionSettings{
			CorrelationThreshold: cfg.CorrelationThreshold,
			MinInterval:          cfg.MinIntervalSeconds,
			MaxSlides:            cfg.MaxSlides,
		},
		MaxRetries: cfg.MaxRetries,
	})

	httpSrv := server.Start(ctx, cfg.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}

	log.Info("mentingo-slide-api stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
