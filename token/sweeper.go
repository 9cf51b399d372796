package token

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically deletes token rows that expired longer than the
// retention period ago. Validation never consults it; its only job is to
// keep the token table from growing without bound.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	retention time.Duration
	log       zerolog.Logger
}

func NewSweeper(store *Store, interval, retention time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, retention: retention, log: logger}
}

// Run loops until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Msgf("Starting token sweep loop with interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.store.clock.Now().Add(-s.retention)
	n, err := s.store.repo.DeleteTokensExpiredBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("Could not sweep expired tokens")
		return
	}
	if n > 0 {
		s.log.Debug().Int64("deleted", n).Msg("Swept expired tokens")
	}
}
