package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	intakeMinuteWindow = time.Minute
	intakeBurstWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter applies fixed-window limits to purchase intake per user. Either
// limit can be disabled by setting it to zero.
type Limiter struct {
	store     WindowStore
	perMinute int
	perBurst  int
}

func NewLimiter(store WindowStore, perMinute, perBurst int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if perBurst < 0 {
		perBurst = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		perBurst:  perBurst,
	}
}

// AllowIntake reports whether the user may create another purchase now,
// and when not, after how many seconds a retry may succeed.
func (l *Limiter) AllowIntake(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, minuteKey(userID), intakeMinuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.perBurst > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, burstKey(userID), intakeBurstWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perBurst) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

func minuteKey(userID int64) string {
	return "rate:purchases:min:" + strconv.FormatInt(userID, 10)
}

func burstKey(userID int64) string {
	return "rate:purchases:10s:" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
