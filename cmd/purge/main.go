package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"referral-rewards-api/internal/config"
	"referral-rewards-api/internal/infra/logger"
	"referral-rewards-api/internal/jobs/purge"
	pgrepo "referral-rewards-api/internal/repo/postgres"
)

// One-shot purge run for cron or manual invocation. The api binary also
// runs the purge on its own schedule.
func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	job := purge.New(pgrepo.NewPurchaseRepo(pool), cfg.Purge.Retention, log)
	if err := job.Run(ctx); err != nil {
		log.Fatal("run purge", zap.Error(err))
	}
}
