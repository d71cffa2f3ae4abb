package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carwash/internal/booking"
	"carwash/internal/httpapi"
	"carwash/internal/notify"
	"carwash/pkg/config"
	"carwash/pkg/db"
	"carwash/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)

	if cfg.Session.Secret == "" {
		logger.Fatal("SESSION_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	var publisher booking.Publisher
	if cfg.AMQPURL != "" {
		publisher = notify.NewPublisher(cfg.AMQPURL)
	} else {
		logger.Warn("AMQP_URL not set; booking status events will not be published")
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:       cfg,
		DB:        conn,
		Log:       logger,
		Publisher: publisher,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
