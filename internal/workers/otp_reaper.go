package workers

import (
	"context"
	"log/slog"
	"time"

	"wapulse/internal/metrics"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OTPReaper periodically removes expired one-time codes and pending
// registrations. Reads never rely on it; expiry is always checked explicitly.
type OTPReaper struct {
	store    expiredDeleter
	interval time.Duration
	now      func() time.Time
}

func NewOTPReaper(store expiredDeleter, interval time.Duration) *OTPReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &OTPReaper{store: store, interval: interval, now: time.Now}
}

func (r *OTPReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *OTPReaper) sweep(ctx context.Context) int64 {
	n, err := r.store.DeleteExpired(ctx, r.now())
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("[otp][reaper] delete expired", "err", err)
		}
		return 0
	}
	if n > 0 {
		metrics.ReapedRecords.Add(float64(n))
		slog.Debug("[otp][reaper] removed expired", "count", n)
	}
	return n
}
