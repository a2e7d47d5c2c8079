package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler periodically refreshes the store's caches. The core itself never
// starts timers; the host constructs a Scheduler, owns its lifetime, and stops
// it through context cancellation.
type Scheduler struct {
	store    *Store
	interval time.Duration
}

// NewScheduler creates a scheduler driving the store at the given interval.
// Intervals below one second are raised to one second.
func NewScheduler(store *Store, interval time.Duration) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	return &Scheduler{store: store, interval: interval}
}

// Run refreshes immediately, then on every tick until the context is
// cancelled. Refresh failures are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.store.RefreshPeerGroups(ctx); err != nil {
		log.Warn().Err(err).Msg("Scheduled peer-group refresh failed")
	}
	if err := s.store.RetrainAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Scheduled model retrain interrupted")
	}
}
