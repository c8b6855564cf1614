package sweeper

import (
	"context"
	"time"

	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 60 * time.Second

// Sweeper periodically deletes expired secrets.
type Sweeper struct {
	store    secrets.Store
	interval time.Duration
	now      func() time.Time
}

func New(store secrets.Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("Expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("Expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs a single purge and returns the number of deleted secrets.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	deleted, err := s.store.PurgeExpired(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			metrics.SweeperErrorsTotal.Inc()
			log.Err(err).Msg("Failed to delete expired secrets")
		}
		return 0
	}

	if deleted > 0 {
		metrics.SecretsPurgedTotal.Add(float64(deleted))
		log.Info().Int64("deleted_secrets", deleted).Msg("Deleted expired secrets")
	}
	return deleted
}
