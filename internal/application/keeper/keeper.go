// Package keeper settles patronage on a timer so foreclosures are recorded
// even when nobody interacts with the steward.
package keeper

import (
	"context"
	"time"

	engine "steward-backend/internal/steward"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Collector is the part of the steward service the keeper drives.
type Collector interface {
	Collect(ctx context.Context, caller common.Address) (*engine.Outcome, error)
}

type Keeper struct {
	Collector Collector
	Interval  time.Duration
	// Identity is logged as the caller of each collection.
	Identity common.Address
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (k *Keeper) Run(ctx context.Context) {
	if k.Interval <= 0 || k.Collector == nil {
		return
	}
	ticker := time.NewTicker(k.Interval)
	defer ticker.Stop()
	log.Info().Dur("interval", k.Interval).Msg("keeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("keeper stopped")
			return
		case <-ticker.C:
			k.tick(ctx)
		}
	}
}

func (k *Keeper) tick(ctx context.Context) {
	out, err := k.Collector.Collect(ctx, k.Identity)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("keeper collect failed")
		}
		return
	}
	if out.HasEvent(engine.EventTypeForeclosure) {
		log.Warn().Msg("keeper recorded foreclosure")
	}
}
