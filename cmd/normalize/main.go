// Command normalize rewrites legacy carwash status tokens to the canonical open/closed
// values and aligns is_active with them. Unrecognised values are reported and left alone.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"carwash/internal/carwash"
	"carwash/pkg/config"
	"carwash/pkg/db"
	"carwash/pkg/logging"
)

func main() {
	actor := flag.String("actor", "system:normalize", "actor recorded in the audit log")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer pool.Close()

	rep, err := carwash.NewRepository(pool).Normalize(ctx, *actor, logger)
	if err != nil {
		logger.WithError(err).Error("normalize failed")
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"scanned":   rep.Scanned,
		"opened":    rep.Opened,
		"closed":    rep.Closed,
		"unchanged": rep.Unchanged,
		"unknown":   rep.Unknown,
		"failed":    rep.Failed,
	}).Info("normalize finished")
	if rep.Failed > 0 {
		os.Exit(1)
	}
}
