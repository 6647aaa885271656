package provider

import (
	"context"
	"fmt"

	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/selection"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// LayerProvider selects orders under rev layers stored as GeoJSON files.
type LayerProvider struct {
	store      *layer.Store
	dir        string
	pattern    string
	layerNames map[string]string
	orders     []*layer.Order
	buckets    selection.Buckets
}

// NewLayerProvider creates a provider reading revs from dir/pattern.
// layerNames maps a spacecraft ID to the name substituted for {spacecraft}.
func NewLayerProvider(store *layer.Store, dir, pattern string, layerNames map[string]string, orders *layer.OrderLayer, buckets selection.Buckets) (*LayerProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("layer store is nil")
	}
	if orders == nil {
		return nil, fmt.Errorf("order layer is nil")
	}
	return &LayerProvider{
		store:      store,
		dir:        dir,
		pattern:    pattern,
		layerNames: layerNames,
		orders:     orders.Orders(),
		buckets:    buckets,
	}, nil
}

// Availability implements Provider.
func (p *LayerProvider) Availability(ctx context.Context, key tally.Key) (tally.Set[string], bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	name := key.Spacecraft
	if n, ok := p.layerNames[key.Spacecraft]; ok && n != "" {
		name = n
	}

	rev, ok, err := p.store.FindRev(p.dir, p.pattern, name, key.Day)
	if err != nil {
		return nil, false, fmt.Errorf("rev %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return selection.Visible(p.orders, rev, p.buckets), true, nil
}

// Name implements Provider.
func (p *LayerProvider) Name() string {
	return "layers"
}
