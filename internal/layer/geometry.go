package layer

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// Shape is a geometry prepared for repeated intersection tests. Coordinates
// are treated as planar lon/lat.
type Shape struct {
	bound orb.Bound
	geom  geom.Geometry
}

// NewShape converts g through its GeoJSON form. Rings and bounds become
// polygons.
func NewShape(g orb.Geometry) (*Shape, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}
	switch v := g.(type) {
	case orb.Ring:
		g = orb.Polygon{v}
	case orb.Bound:
		g = v.ToPolygon()
	}

	raw, err := geojson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", g.GeoJSONType(), err)
	}
	parsed, err := geom.UnmarshalGeoJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", g.GeoJSONType(), err)
	}
	return &Shape{bound: g.Bound(), geom: parsed}, nil
}

// Intersects reports whether s and o share at least one point.
func (s *Shape) Intersects(o *Shape) bool {
	if s == nil || o == nil {
		return false
	}
	if !s.bound.Intersects(o.bound) {
		return false
	}
	return geom.Intersects(s.geom, o.geom)
}

// Intersects reports whether two geometries share at least one point. A
// geometry that cannot be converted intersects nothing.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil || !a.Bound().Intersects(b.Bound()) {
		return false
	}
	sa, err := NewShape(a)
	if err != nil {
		return false
	}
	sb, err := NewShape(b)
	if err != nil {
		return false
	}
	return sa.Intersects(sb)
}

// Representative returns a single point standing for g: the point itself or
// the area/length weighted centroid.
func Representative(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	c, _ := planar.CentroidArea(g)
	return c
}
