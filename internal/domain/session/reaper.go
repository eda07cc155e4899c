package session

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper periodically discards sessions that have had no listeners for
// longer than the grace period. Steps of a reaped session are lost;
// abandoned recordings have no authoring value.
type Reaper struct {
	cron   *cron.Cron
	store  Store
	grace  time.Duration
	onReap func(reaped, active int)
}

// NewReaper creates a reaper sweeping every minute.
func NewReaper(store Store, grace time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reaper{
		cron:  cron.New(),
		store: store,
		grace: grace,
	}
	r.cron.AddFunc("@every 1m", func() {
		n := r.store.Reap(r.grace)
		if n > 0 {
			logger.Info("reaped idle sessions", zap.Int("count", n))
		}
		if r.onReap != nil {
			r.onReap(n, r.store.Count())
		}
	})
	return r
}

// WithCallback registers a hook invoked after every sweep with the
// number of sessions reaped and the number still active. Must be set
// before Start.
func (r *Reaper) WithCallback(fn func(reaped, active int)) *Reaper {
	r.onReap = fn
	return r
}

// Start begins the sweep schedule.
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop halts the schedule, waiting for an in-flight sweep.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
