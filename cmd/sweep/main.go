// Command sweep completes bookings whose scheduled slot has passed. It runs once and exits;
// an external scheduler (cron, Kubernetes CronJob) invokes it every few minutes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"carwash/internal/booking"
	"carwash/internal/lock"
	"carwash/internal/notify"
	"carwash/pkg/config"
	"carwash/pkg/db"
	"carwash/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer pool.Close()

	sw := &booking.Sweeper{
		Store:     booking.NewRepository(pool),
		Log:       logger,
		Grace:     cfg.Sweep.Grace,
		BatchSize: cfg.Sweep.BatchSize,
		LockTTL:   cfg.Sweep.LockTTL,
	}
	if cfg.AMQPURL != "" {
		sw.Publisher = notify.NewPublisher(cfg.AMQPURL)
	}
	if cfg.Redis.Addr != "" {
		client, err := lock.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; sweeping without lock")
		} else {
			defer client.Close()
			sw.Locker = lock.NewRedis(client)
		}
	}

	rep, err := sw.Run(ctx, time.Now())
	if err != nil {
		logger.WithError(err).Error("sweep failed")
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"scanned":   rep.Scanned,
		"completed": rep.Completed,
		"skipped":   rep.Skipped,
		"failed":    rep.Failed,
		"throttled": rep.Throttled,
	}).Info("sweep finished")
	if rep.Failed > 0 {
		os.Exit(1)
	}
}
