package elostore

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/faceit-elo-bot/telemetry"
)

// StartDailyResetJob resets the history once per day at hour:00 in the
// store's timezone. The timer is re-armed after every firing and the job
// keeps running whether or not the chat session is connected; only context
// cancellation stops it.
func StartDailyResetJob(ctx context.Context, store *Store, hour int) {
	slog.Info("daily reset job starting", slog.Int("hour", hour), slog.String("tz", store.loc.String()))
	for {
		delay := untilNextReset(store.now(), hour)
		timer := time.NewTimer(delay)
		slog.Debug("daily reset armed", slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("daily reset job stopped")
			return
		case <-timer.C:
		}
		if err := store.ResetForNewDay(); err != nil {
			slog.Error("daily reset failed", slog.Any("err", err))
		} else {
			telemetry.ResetsRun.Inc()
			slog.Info("daily elo stats reset")
		}
	}
}

// untilNextReset returns the delay from now to the next occurrence of
// hour:00 local time; if that time already passed today, it targets
// tomorrow.
func untilNextReset(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
