// Package main runs the background job worker (meeting registration fan-out,
// notification emails) as a standalone process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/emaillogs"
	"github.com/liveclass-lms/backend/internal/enrollments"
	"github.com/liveclass-lms/backend/internal/meetings"
	"github.com/liveclass-lms/backend/internal/worker"
	"github.com/liveclass-lms/backend/internal/zoom"
	"github.com/liveclass-lms/backend/pkg/database"
	"github.com/liveclass-lms/backend/pkg/email"
	"github.com/liveclass-lms/backend/pkg/queue"
	"github.com/liveclass-lms/backend/pkg/redis"
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

	zoomClient := zoom.NewClient(cfg.Zoom, logger)
	meetingRepo := meetings.NewRepository(pool)
	tokenManager := zoom.NewTokenManager(zoomClient, meetingRepo, rdb.Client, logger)
	enrollRepo := enrollments.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailer := email.NewMailer(cfg.Email, logger)

	processor := worker.NewProcessor(cfg, meetingRepo, enrollRepo, emailLogsRepo, tokenManager, zoomClient, jobQueue, mailer, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
