// Package main runs the C6 vacuum sweep and the C5 outbox delivery loop
// as a standalone process, for deployments that split background sweep
// work from the HTTP API rather than running it embedded in cmd/server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/backend/config"
	"github.com/aura-webinar/backend/internal/backend"
	"github.com/aura-webinar/backend/internal/intake"
	"github.com/aura-webinar/backend/internal/outbox"
	"github.com/aura-webinar/backend/internal/realtime"
	"github.com/aura-webinar/backend/internal/recordings"
	"github.com/aura-webinar/backend/internal/session"
	"github.com/aura-webinar/backend/internal/vacuum"
	"github.com/aura-webinar/backend/internal/worker"
	"github.com/aura-webinar/backend/pkg/database"
	"github.com/aura-webinar/backend/pkg/queue"
	"github.com/aura-webinar/backend/pkg/redis"
	"github.com/aura-webinar/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.RecordingsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	// This process holds no WebSocket clients of its own; BrokerSink
	// still reaches them because Hub.BroadcastToRoomAndPublish always
	// publishes to Redis, which the cmd/server instances relay to their
	// local clients via their own subscription.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	sessionHandler := session.NewHandler(logger)
	timeouts := backend.Timeouts{
		DefaultTimeout:      cfg.Transaction.DefaultTimeout,
		StreamUploadTimeout: cfg.Transaction.StreamUploadTimeout,
		WatchdogCheckPeriod: cfg.Transaction.WatchdogCheckPeriod,
	}
	engine := backend.NewEngine(timeouts, sessionHandler, logger)

	sessionRepo := session.NewRepository(pool)
	sessionSvc := session.NewService(sessionRepo, engine, session.Tunables{
		MaxRoomDuration:     cfg.Vacuum.MaxRoomDuration,
		OrphanedRoomTimeout: cfg.Vacuum.OrphanedRoomTimeout,
		CompliantAPIVersion: cfg.Janus.CompliantAPIVersion,
	}, logger)
	sessionHandler.Bind(sessionSvc)

	recRepo := recordings.NewRepository(pool)

	var archival *queue.Queue
	var archiver *worker.RecordingArchiver
	if s3Client != nil {
		archival = queue.NewQueue(rdb.Client, logger)
		archiver = worker.NewRecordingArchiver(recRepo, s3Client, archival, logger)
	}

	sweeper := vacuum.NewSweeper(sessionSvc, recRepo, engine, archival, vacuum.Config{
		SweepInterval:       cfg.Vacuum.SweepInterval,
		OrphanedRoomTimeout: cfg.Vacuum.OrphanedRoomTimeout,
		CompliantAPIVersion: cfg.Janus.CompliantAPIVersion,
	}, logger)

	outboxRepo := outbox.NewRepository(pool)
	outboxWorker := outbox.NewWorker(outboxRepo, outbox.Sinks{
		Broker: outbox.BrokerSink{Hub: hub},
		Bus:    outbox.BusSink{Client: rdb.Client, Logger: logger},
	}, outbox.Config{
		MessagesPerTry:      cfg.Outbox.MessagesPerTry,
		PollInterval:        cfg.Outbox.PollInterval,
		BaseRetryInterval:   cfg.Outbox.BaseRetryInterval,
		MaxDeliveryInterval: cfg.Outbox.MaxDeliveryInterval,
	}, logger)

	groupIntents := intake.NewConsumer(rdb.Client, sessionSvc, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(runCtx)
	go outboxWorker.Run(runCtx)
	go groupIntents.Run(runCtx)
	logger.Info("vacuum sweeper, outbox worker and video group intent consumer started")
	if archiver != nil {
		go archiver.Run(runCtx)
		logger.Info("recording archiver started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("vacuum process stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
