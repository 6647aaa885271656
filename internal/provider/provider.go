// Package provider produces the availability set of one spacecraft on one day.
package provider

import (
	"context"

	"github.com/dbsmedya/accesstally/internal/tally"
)

// Provider returns the orders visible under a key. ok is false when the
// source for the key is absent; callers skip such keys instead of failing.
type Provider interface {
	Availability(ctx context.Context, key tally.Key) (set tally.Set[string], ok bool, err error)
	Name() string
}

// Static serves availability sets from memory. Keys not in the map are absent.
type Static struct {
	Sets tally.Availability[tally.Key, string]
}

// Availability implements Provider.
func (s *Static) Availability(ctx context.Context, key tally.Key) (tally.Set[string], bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	set, ok := s.Sets[key]
	return set, ok, nil
}

// Name implements Provider.
func (s *Static) Name() string {
	return "static"
}
