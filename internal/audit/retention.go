package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stafflane/access/internal/obs"
)

// Retention prunes aged audit entries on a schedule. Entries are otherwise
// append-only; this is the only path that removes them.
type Retention struct {
	store  Store
	maxAge time.Duration
	cron   *cron.Cron
}

// NewRetention builds a pruner keeping entries younger than maxAge.
func NewRetention(store Store, maxAge time.Duration) *Retention {
	return &Retention{
		store:  store,
		maxAge: maxAge,
		cron:   cron.New(),
	}
}

// Start schedules the nightly prune. A non-positive maxAge disables it.
func (r *Retention) Start() error {
	if r.maxAge <= 0 {
		return nil
	}
	if _, err := r.cron.AddFunc("@daily", r.prune); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Retention) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.maxAge)
	removed, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		obs.LogEvent(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit retention prune failed",
			"error": err.Error(),
		})
		return
	}
	obs.LogEvent(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     "audit retention prune complete",
		"removed": removed,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
}
