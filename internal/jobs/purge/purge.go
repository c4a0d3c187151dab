package purge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job removes refunded and voided purchases once they age past the
// retention window. Such purchases never settle, so keeping them around
// only grows the table.
type Job struct {
	purchases terminalPurchaseCleaner
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type terminalPurchaseCleaner interface {
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func New(purchases terminalPurchaseCleaner, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		purchases: purchases,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.purchases == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.purchases.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge terminal purchases: %w", err)
	}
	if rows > 0 {
		j.logger.Info("purge terminal purchases completed", zap.Int64("deleted", rows))
	}

	return nil
}

// RunPeriodically re-runs the purge on the given interval until the
// context is cancelled. Failures are logged, not fatal.
func (j *Job) RunPeriodically(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("purge run failed", zap.Error(err))
			}
		}
	}
}
