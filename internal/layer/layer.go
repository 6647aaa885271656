// Package layer loads order and rev feature layers from GeoJSON files and
// prepares their geometries for the spatial predicate used to select orders
// under a rev.
package layer

import (
	"errors"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrLayerNotFound is returned when a layer requested by name does not exist.
var ErrLayerNotFound = errors.New("layer not found")

// Attribute names read from feature properties.
const (
	OrderIDProperty    = "order_id"
	MaxONAProperty     = "max_ona"
	SegmentONAProperty = "ona"
)

// Order is one collection request.
type Order struct {
	ID       string       `validate:"required"`
	MaxONA   float64      `validate:"gte=0,lte=90"`
	Geometry orb.Geometry `validate:"required"`

	// Feature is the source feature; output layers are built from it.
	Feature *geojson.Feature `validate:"-"`

	shape *Shape
}

// Shape returns the prepared geometry. Orders not loaded by a Store are
// converted on each call.
func (o *Order) Shape() (*Shape, error) {
	if o.shape != nil {
		return o.shape, nil
	}
	return NewShape(o.Geometry)
}

// OrderLayer holds orders keyed by ID in the order they appear in the source layer.
type OrderLayer struct {
	Name   string
	orders *orderedmap.OrderedMap[string, *Order]
}

// NewOrderLayer creates an empty order layer.
func NewOrderLayer(name string) *OrderLayer {
	return &OrderLayer{
		Name:   name,
		orders: orderedmap.NewOrderedMap[string, *Order](),
	}
}

// Add inserts an order. It returns false if the ID is already present.
func (l *OrderLayer) Add(o *Order) bool {
	if _, exists := l.orders.Get(o.ID); exists {
		return false
	}
	l.orders.Set(o.ID, o)
	return true
}

// Get looks up an order by ID.
func (l *OrderLayer) Get(id string) (*Order, bool) {
	return l.orders.Get(id)
}

// Len returns the number of orders.
func (l *OrderLayer) Len() int {
	return l.orders.Len()
}

// Orders returns the orders in layer order.
func (l *OrderLayer) Orders() []*Order {
	out := make([]*Order, 0, l.orders.Len())
	for el := l.orders.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// IDs returns the order IDs in layer order.
func (l *OrderLayer) IDs() []string {
	out := make([]string, 0, l.orders.Len())
	for el := l.orders.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

// Segment is one angular band of a rev's viewing geometry.
type Segment struct {
	ONA      float64
	Geometry orb.Geometry

	shape *Shape
}

// Shape returns the prepared geometry, converting it when the segment was not
// loaded by a Store.
func (s Segment) Shape() (*Shape, error) {
	if s.shape != nil {
		return s.shape, nil
	}
	return NewShape(s.Geometry)
}

// RevLayer is the viewing geometry of one spacecraft on one day.
type RevLayer struct {
	Name       string
	Spacecraft string
	Day        int
	Segments   []Segment
}

// SegmentsWithin returns the segments whose ONA does not exceed maxONA.
func (r *RevLayer) SegmentsWithin(maxONA float64) []Segment {
	var out []Segment
	for _, s := range r.Segments {
		if s.ONA <= maxONA {
			out = append(out, s)
		}
	}
	return out
}
