package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shelfgate/internal/servicetoken"
	"shelfgate/internal/util"
	"shelfgate/pkg/covers"
	"shelfgate/pkg/storage"
	"shelfgate/services/ingest/internal/app"
	"shelfgate/services/ingest/internal/config"
	"shelfgate/services/ingest/internal/queue"
	"shelfgate/services/ingest/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	var coverSource covers.Source
	if cfg.CoverAPIBaseURL != "" {
		coverSource = covers.NewResolverWithBaseURL(cfg.CoverAPIBaseURL)
	}

	pipeline, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Objects:     objects,
		Covers:      coverSource,
	})
	if err != nil {
		log.Fatalf("failed to init pipeline: %v", err)
	}

	consumer, err := queue.New(queue.Config{URL: cfg.AMQPURL, Queue: cfg.QueueName})
	if err != nil {
		log.Fatalf("failed to init consumer: %v", err)
	}

	var replayVerifier *servicetoken.Verifier
	if cfg.ReplayPublicKeyPath != "" {
		replayVerifier, err = servicetoken.NewVerifier(servicetoken.VerifierOptions{
			PublicKeyPath:  cfg.ReplayPublicKeyPath,
			Audience:       "ingest",
			AllowedIssuers: cfg.ReplayAllowedIssuers,
		})
		if err != nil {
			log.Fatalf("failed to init replay verifier: %v", err)
		}
	} else {
		slog.Warn("replay endpoint is unauthenticated; set replayPublicKeyPath in production")
	}

	httpServer, err := server.New(server.Config{App: pipeline, ReplayVerifier: replayVerifier})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumer.Run(ctx, func(ctx context.Context, body []byte) error {
		var n app.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		pipeline.HandleNotification(ctx, n)
		return nil
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("ingest listening", "addr", addr, "queue", cfg.QueueName)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
