package artifact

import (
	"context"
	"time"

	"github.com/book-expert/logger"
)

// Sweeper periodically reclaims expired artifacts so storage stays bounded
// even for entries that are never re-accessed.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store *Store, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on every interval tick until ctx ends. It always returns nil
// so a cancelled shutdown reads as clean.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed := s.store.Sweep()
			if removed > 0 {
				s.log.Info("Reclaimed %d expired artifacts", removed)
			}
		}
	}
}
