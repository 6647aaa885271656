// Package export writes access counts into the output layer and the catalog.
package export

import (
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/dbsmedya/accesstally/internal/layer"
)

// Annotation is the output layer together with the per-order counts written
// into it.
type Annotation struct {
	Collection *geojson.FeatureCollection
	// Counts has an entry for every order in the layer, zero when the order
	// was never visible.
	Counts map[string]int
	// Unmatched lists ids present in the count table but not in the layer.
	Unmatched []string
}

// Annotate joins counts onto the orders layer by order id and sets field on
// every feature. Orders missing from counts get 0. Source features are not
// modified.
func Annotate(orders *layer.OrderLayer, counts map[string]int, field string) *Annotation {
	fc := geojson.NewFeatureCollection()
	full := make(map[string]int, orders.Len())

	for _, o := range orders.Orders() {
		n := counts[o.ID]
		full[o.ID] = n

		f := geojson.NewFeature(o.Geometry)
		if o.Feature != nil {
			f.ID = o.Feature.ID
			f.Properties = o.Feature.Properties.Clone()
			if f.Properties == nil {
				f.Properties = geojson.Properties{}
			}
		}
		f.Properties[layer.OrderIDProperty] = o.ID
		f.Properties[field] = n
		fc.Append(f)
	}

	var unmatched []string
	for id := range counts {
		if _, ok := full[id]; !ok {
			unmatched = append(unmatched, id)
		}
	}
	sort.Strings(unmatched)

	return &Annotation{Collection: fc, Counts: full, Unmatched: unmatched}
}
