// Package selection narrows an order layer to the orders a rev can collect.
//
// The procedure mirrors the select-by-location / select-by-attribute sequence
// of the access workflow:
//
//  1. select orders whose geometry intersects any segment of the rev
//  2. remove orders whose max ONA is below the lowest threshold
//  3. for each threshold bucket, select by location again against only the
//     segments whose ONA does not exceed the bucket threshold
//
// Every step takes explicit inputs and returns a new selection.
package selection

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// Buckets is an ascending list of off-nadir angle thresholds in degrees.
type Buckets struct {
	thresholds []float64
}

// NewBuckets validates and copies the thresholds.
func NewBuckets(thresholds []float64) (Buckets, error) {
	if len(thresholds) == 0 {
		return Buckets{}, fmt.Errorf("at least one ONA threshold is required")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return Buckets{}, fmt.Errorf("ONA thresholds must be strictly ascending: %v", thresholds)
		}
	}
	return Buckets{thresholds: append([]float64(nil), thresholds...)}, nil
}

// Thresholds returns a copy of the thresholds.
func (b Buckets) Thresholds() []float64 {
	return append([]float64(nil), b.thresholds...)
}

// Floor returns the largest threshold not above maxONA. ok is false when
// maxONA is below the lowest threshold and the order cannot be collected.
func (b Buckets) Floor(maxONA float64) (threshold float64, ok bool) {
	i := sort.SearchFloat64s(b.thresholds, maxONA)
	if i < len(b.thresholds) && b.thresholds[i] == maxONA {
		return maxONA, true
	}
	if i == 0 {
		return 0, false
	}
	return b.thresholds[i-1], true
}

// Result is the outcome of selecting orders under one rev.
type Result struct {
	Visible        tally.Set[string]
	Candidates     int
	BelowThreshold int
	PerBucket      map[float64]int
}

// Select runs the three step selection of orders under rev.
func Select(orders []*layer.Order, rev *layer.RevLayer, buckets Buckets) Result {
	res := Result{
		Visible:   tally.NewSet[string](),
		PerBucket: make(map[float64]int, len(buckets.thresholds)),
	}
	if rev == nil || len(rev.Segments) == 0 {
		return res
	}

	// Step 1: intersect with the whole rev
	candidates := make([]*layer.Order, 0, len(orders))
	for _, o := range orders {
		if intersectsAny(o, rev.Segments) {
			candidates = append(candidates, o)
		}
	}
	res.Candidates = len(candidates)

	// Step 2: drop orders that no bucket admits, grouping the rest
	byBucket := make(map[float64][]*layer.Order, len(buckets.thresholds))
	for _, o := range candidates {
		floor, ok := buckets.Floor(o.MaxONA)
		if !ok {
			res.BelowThreshold++
			continue
		}
		byBucket[floor] = append(byBucket[floor], o)
	}

	// Step 3: per bucket, intersect with the segments steep enough for it
	for _, threshold := range buckets.thresholds {
		group := byBucket[threshold]
		if len(group) == 0 {
			continue
		}
		segments := rev.SegmentsWithin(threshold)
		for _, o := range group {
			if intersectsAny(o, segments) {
				res.Visible.Add(o.ID)
				res.PerBucket[threshold]++
			}
		}
	}
	return res
}

// Visible returns only the set of visible order IDs.
func Visible(orders []*layer.Order, rev *layer.RevLayer, buckets Buckets) tally.Set[string] {
	return Select(orders, rev, buckets).Visible
}

func intersectsAny(o *layer.Order, segments []layer.Segment) bool {
	shape, err := o.Shape()
	if err != nil {
		return false
	}
	for _, s := range segments {
		seg, err := s.Shape()
		if err != nil {
			continue
		}
		if shape.Intersects(seg) {
			return true
		}
	}
	return false
}
