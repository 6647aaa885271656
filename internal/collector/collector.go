// Package collector builds the availability map of a job by querying a
// provider for every spacecraft and day offset of the lookahead window.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/provider"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// Result holds the availability map and the keys whose source was absent.
type Result struct {
	Availability tally.Availability[tally.Key, string]
	Skipped      []tally.Key
	Duration     time.Duration
}

// Collector queries a provider over spacecraft x day offsets.
type Collector struct {
	provider provider.Provider
	workers  int
	logger   *logger.Logger
}

// New creates a Collector. workers below 1 are treated as 1.
func New(p provider.Provider, workers int, log *logger.Logger) *Collector {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Collector{provider: p, workers: workers, logger: log}
}

// Keys returns the keys of the window in spacecraft-major order.
func Keys(spacecraft []string, lookaheadDays int) []tally.Key {
	keys := make([]tally.Key, 0, len(spacecraft)*max(lookaheadDays, 0))
	for _, sc := range spacecraft {
		for day := 0; day < lookaheadDays; day++ {
			keys = append(keys, tally.Key{Spacecraft: sc, Day: day})
		}
	}
	return keys
}

// Collect builds the availability map. Absent sources are logged and skipped;
// any provider error aborts the collection.
func (c *Collector) Collect(ctx context.Context, spacecraft []string, lookaheadDays int) (*Result, error) {
	start := time.Now()
	keys := Keys(spacecraft, lookaheadDays)

	c.logger.Infow("Collecting availability",
		"source", c.provider.Name(),
		"spacecraft", len(spacecraft),
		"lookahead_days", lookaheadDays,
		"keys", len(keys),
		"workers", c.workers,
	)

	var mu sync.Mutex
	avail := make(tally.Availability[tally.Key, string], len(keys))
	var skipped []tally.Key

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			set, ok, err := c.provider.Availability(gctx, key)
			if err != nil {
				return fmt.Errorf("availability for %s: %w", key, err)
			}

			log := c.logger.WithKey(key.Spacecraft, key.Day)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				log.Warnw("Availability source not found, skipping")
				skipped = append(skipped, key)
				return nil
			}
			if set == nil {
				set = tally.NewSet[string]()
			}
			avail[key] = set
			log.Debugw("Availability collected", "orders", len(set))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(skipped, func(i, j int) bool {
		if skipped[i].Spacecraft != skipped[j].Spacecraft {
			return skipped[i].Spacecraft < skipped[j].Spacecraft
		}
		return skipped[i].Day < skipped[j].Day
	})

	result := &Result{
		Availability: avail,
		Skipped:      skipped,
		Duration:     time.Since(start),
	}

	c.logger.Infow("Availability collected",
		"keys", len(avail),
		"skipped", len(skipped),
		"duration", result.Duration,
	)
	return result, nil
}
