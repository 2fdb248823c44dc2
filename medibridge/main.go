package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/routes"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/ratelimit"
	"medibridge/medibridge/services/realtime"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/storage"
	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		cancel()
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	var audio storage.AudioStore
	if cfg.StorageEnabled() {
		minioClient, err := storage.NewMinIOClient(ctx, cfg)
		if err != nil {
			cancel()
			logging.ErrorLogger.Error("minio connection error", zap.Error(err))
			os.Exit(1)
		}
		audio = minioClient
	} else {
		logging.AppLogger.Warn("MINIO_ENDPOINT not set, audio uploads disabled")
	}
	cancel()

	userDAO := dao.NewUserDAO(db.DB)
	sessionDAO := dao.NewConsultationDAO(db.DB)
	messageDAO := dao.NewMessageDAO(db.DB)

	ai := translation.NewServices(cfg)
	hub := realtime.NewHub()
	pool := pipeline.NewWorkerPool(cfg.PipelineWorkers, cfg.PipelineQueue)
	limiter := ratelimit.PerMinute(cfg.RateLimitPerMinute)
	p := pipeline.New(cfg, sessionDAO, messageDAO, hub, ai.Translator, pool, limiter)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go limiter.Run(rootCtx, time.Minute)

	router := routes.NewRouter(cfg, routes.Handlers{
		Auth:          controllers.NewAuthController(userDAO, cfg),
		Chat:          controllers.NewChatController(p, sessionDAO, messageDAO, audio, ai.Transcriber),
		Consultations: controllers.NewConsultationController(sessionDAO, messageDAO, hub, ai.Summarizer, pool),
		AI:            controllers.NewAIController(ai.Translator, cfg.TranslationTimeout),
		Health:        controllers.NewHealthController(db),
		Realtime:      realtime.NewHandler(cfg, hub, sessionDAO, p),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// websocket handlers derive from this and close when it is cancelled
		BaseContext: func(net.Listener) context.Context { return rootCtx },
	}
	go func() {
		logging.AppLogger.Info("server listening",
			zap.String("addr", cfg.HTTPAddr), zap.String("ai_provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
			stop()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-rootCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	stop()

	// queued translations still settle; what misses the deadline is left for `medibridge settle`
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("pipeline drain incomplete", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
