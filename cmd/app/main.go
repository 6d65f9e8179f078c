package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portrait-ai/internal/config"
	"portrait-ai/internal/infra/adapters/identity"
	"portrait-ai/internal/infra/adapters/mail"
	"portrait-ai/internal/infra/adapters/storage"
	"portrait-ai/internal/infra/adapters/trainer"
	"portrait-ai/internal/infra/api"
	pg "portrait-ai/internal/infra/db/postgres"
	"portrait-ai/internal/infra/logging"
	"portrait-ai/internal/infra/metrics"
	red "portrait-ai/internal/infra/redis"
	"portrait-ai/internal/infra/sched"
	"portrait-ai/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Adapters ----
	trainerClient, err := trainer.NewReplicateClient(cfg.Trainer.Token, cfg.Trainer.BaseURL)
	if err != nil {
		log.Fatalf("trainer: %v", err)
	}
	store, err := storage.NewS3Storage(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	mailer := mail.NewSMTPMailer(&cfg.SMTP)
	directory := identity.NewPgDirectory(pool)

	// ---- Repositories ----
	jobRepo := pg.NewTrainingJobRepo(pool)
	creditRepo := pg.NewCreditRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	creditUC := usecase.NewCreditUseCase(creditRepo, logger)
	trainUC := usecase.NewTrainingUseCase(jobRepo, creditUC, trainerClient, store, usecase.TrainingOptions{
		Owner:          cfg.Trainer.Owner,
		TrainerVersion: cfg.Trainer.TrainerVersion,
		Hardware:       cfg.Trainer.Hardware,
		Steps:          cfg.Trainer.Steps,
		Resolution:     cfg.Trainer.Resolution,
		TriggerWord:    cfg.Trainer.TriggerWord,
		UploadPrefix:   cfg.Storage.UploadPrefix,
		CallbackBase:   cfg.Server.PublicBaseURL,
	}, logger)
	notifUC := usecase.NewNotificationUseCase(directory, mailer, cfg.SMTP.Sender, logger)
	recUC := usecase.NewReconcileUseCase(jobRepo, tm, notifUC, store, cfg.Storage.UploadPrefix, logger)

	// ---- Pending sweep ----
	sweeper := sched.NewTimeoutWorker(cfg.Sweep.Interval, cfg.Sweep.PendingTimeout, jobRepo, recUC, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("timeout worker stopped")
		}
	}()

	// ---- HTTP server ----
	auth := api.NewAuthManager(cfg.Server.SessionSecret)
	srv := api.NewServer(trainUC, recUC, trainerClient, store, auth, rateLimiter,
		cfg.Server.SubmitRateLimit, cfg.Server.SubmitRateWin, cfg.Storage.UploadPrefix, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
