// Package main runs the LiveClass HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/auth"
	"github.com/liveclass-lms/backend/internal/broadcasts"
	"github.com/liveclass-lms/backend/internal/emaillogs"
	"github.com/liveclass-lms/backend/internal/enrollments"
	"github.com/liveclass-lms/backend/internal/meetings"
	"github.com/liveclass-lms/backend/internal/middleware"
	"github.com/liveclass-lms/backend/internal/worker"
	"github.com/liveclass-lms/backend/internal/zoom"
	"github.com/liveclass-lms/backend/pkg/database"
	"github.com/liveclass-lms/backend/pkg/email"
	"github.com/liveclass-lms/backend/pkg/queue"
	"github.com/liveclass-lms/backend/pkg/redis"
	"github.com/liveclass-lms/backend/pkg/response"
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

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailer := email.NewMailer(cfg.Email, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Zoom client and per-user token management
	zoomClient := zoom.NewClient(cfg.Zoom, logger)
	meetingRepo := meetings.NewRepository(pool)
	tokenManager := zoom.NewTokenManager(zoomClient, meetingRepo, rdb.Client, logger)

	// Enrollments
	enrollRepo := enrollments.NewRepository(pool)
	enrollHandler := enrollments.NewHandler(enrollRepo, cfg.Zoom.MaxParticipants, logger)

	// Meetings
	meetingHandler := meetings.NewHandler(cfg, meetingRepo, zoomClient, tokenManager, jobQueue, enrollRepo, logger)

	// YouTube broadcasts
	broadcastRepo := broadcasts.NewRepository(pool)
	youtubeClient := broadcasts.NewYouTube(cfg.Google, cfg.Server.ExternalURL)
	broadcastHandler := broadcasts.NewHandler(cfg, broadcastRepo, meetingRepo, zoomClient, tokenManager, youtubeClient, logger)

	// Email logs
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, logger)

	// Background worker (registrant registration, notification emails)
	processor := worker.NewProcessor(cfg, meetingRepo, enrollRepo, emailLogsRepo, tokenManager, zoomClient, jobQueue, mailer, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Zoom account linking and session probe
		api.GET("/zoom/api", meetingHandler.OAuthCallback)
		api.GET("/zoom/is_logged", meetingHandler.IsLogged)

		// Scheduled meetings (instructors)
		api.POST("/zoom/new_scheduled_meeting", middleware.RequireRole("instructor"), meetingHandler.CreateScheduledMeeting)
		api.POST("/zoom/update_scheduled_meeting", middleware.RequireRole("instructor"), meetingHandler.UpdateScheduledMeeting)
		api.GET("/zoom/start_meeting", middleware.RequireRole("instructor"), meetingHandler.StartMeeting)

		// Student join resolution
		api.GET("/zoom/get_student_join_url", meetingHandler.GetStudentJoinURL)

		// Google account linking and YouTube permission probes
		api.GET("/zoom/auth_google", middleware.RequireRole("instructor"), broadcastHandler.AuthGoogle)
		api.GET("/zoom/callback_google_auth", middleware.RequireRole("instructor"), broadcastHandler.CallbackGoogleAuth)
		api.GET("/zoom/google_is_logged", broadcastHandler.GoogleIsLogged)
		api.GET("/zoom/youtube_validate", broadcastHandler.YouTubeValidate)

		// Live broadcasts (instructors)
		api.POST("/zoom/create_livebroadcast", middleware.RequireRole("instructor"), broadcastHandler.CreateLiveBroadcast)
		api.POST("/zoom/livebroadcast_update", middleware.RequireRole("instructor"), broadcastHandler.UpdateLiveBroadcast)

		// Enrollments
		api.POST("/courses/:id/enroll", enrollHandler.Enroll)
		api.POST("/courses/:id/unenroll", enrollHandler.Unenroll)
		api.GET("/courses/:id/enrollments/count", enrollHandler.Count)

		// Notification delivery log (instructors)
		api.GET("/meetings/:id/emails", middleware.RequireRole("instructor"), emailLogsHandler.ListByMeeting)
	}

	// Vendor event webhook (no JWT; bearer secret validated in handler)
	router.POST("/zoom/events", meetingHandler.Webhook)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process worker; cmd/worker runs the same processor standalone when
	// registration bursts need their own process.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)
	logger.Info("job worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
