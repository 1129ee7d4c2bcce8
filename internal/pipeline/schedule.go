package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// nextRunAfter returns the next wall-clock occurrence of hour:minute
// strictly after now.
func nextRunAfter(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Schedule triggers a run daily at hour:minute until ctx ends. A trigger
// landing while a run is already in flight is skipped, not queued.
func (r *Runner) Schedule(ctx context.Context, hour, minute int) {
	for {
		next := nextRunAfter(time.Now(), hour, minute)
		r.log.Info("next scheduled run", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := r.Trigger(ctx, "schedule"); err != nil {
			r.log.Warn("scheduled run skipped", zap.Error(err))
		}
	}
}
