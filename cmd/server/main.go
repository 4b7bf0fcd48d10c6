// Package main runs the HTTP signaling API: the C1-C7 components wired
// together behind the gin router. On SIGINT/SIGTERM it shuts the HTTP
// server down with a bounded deadline, then cancels the background workers;
// the outbox is not flushed before exit.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/backend/config"
	"github.com/aura-webinar/backend/internal/auth"
	"github.com/aura-webinar/backend/internal/backend"
	"github.com/aura-webinar/backend/internal/httpapi"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// The backend.Engine needs a bound EventHandler before it can dial
	// anything, but the handler needs a Service, and the Service needs
	// the Engine: session.NewHandler/Bind breaks the cycle (see
	// session.Handler's doc comment).
	sessionHandler := session.NewHandler(logger)
	timeouts := backend.Timeouts{
		DefaultTimeout:      cfg.Transaction.DefaultTimeout,
		StreamUploadTimeout: cfg.Transaction.StreamUploadTimeout,
		WatchdogCheckPeriod: cfg.Transaction.WatchdogCheckPeriod,
	}
	engine := backend.NewEngine(timeouts, sessionHandler, logger)

	sessionRepo := session.NewRepository(pool)
	sessionTunables := session.Tunables{
		MaxRoomDuration:     cfg.Vacuum.MaxRoomDuration,
		OrphanedRoomTimeout: cfg.Vacuum.OrphanedRoomTimeout,
		CompliantAPIVersion: cfg.Janus.CompliantAPIVersion,
	}
	sessionSvc := session.NewService(sessionRepo, engine, sessionTunables, logger)
	sessionHandler.Bind(sessionSvc)

	hub.SetAgentReadyHandler(func(roomID, agentID uuid.UUID) {
		if err := sessionSvc.ConfirmAgentReady(context.Background(), roomID, agentID); err != nil {
			logger.Warn("confirm agent ready failed", zap.Error(err), zap.String("room_id", roomID.String()), zap.String("agent_id", agentID.String()))
		}
	})

	recRepo := recordings.NewRepository(pool)
	recHandler := recordings.NewHandler(recRepo, s3Client, logger)

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

	router := httpapi.NewRouter(httpapi.Deps{
		Session:     sessionSvc,
		Recordings:  recHandler,
		Sweeper:     sweeper,
		JWT:         jwtService,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	jwtValidate := func(token string) (agentID uuid.UUID, label string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.UUID{}, "", err
		}
		return claims.AgentID, claims.Audience, nil
	}
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go sweeper.Run(bgCtx)
	go outboxWorker.Run(bgCtx)
	if archiver != nil {
		go archiver.Run(bgCtx)
		logger.Info("recording archiver started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	bgCancel()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
