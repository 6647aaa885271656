package layer

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY},
		{minX + size, minY},
		{minX + size, minY + size},
		{minX, minY + size},
		{minX, minY},
	}}
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		name     string
		a, b     orb.Geometry
		expected bool
	}{
		{"point inside polygon", orb.Point{1, 1}, square(0, 0, 2), true},
		{"point outside polygon", orb.Point{3, 3}, square(0, 0, 2), false},
		{"point on polygon edge", orb.Point{2, 1}, square(0, 0, 2), true},
		{"point on polygon vertex", orb.Point{0, 0}, square(0, 0, 2), true},
		{"identical points", orb.Point{5, 5}, orb.Point{5, 5}, true},
		{"distinct points", orb.Point{5, 5}, orb.Point{5, 6}, false},
		{"overlapping polygons", square(0, 0, 2), square(1, 1, 2), true},
		{"disjoint polygons", square(0, 0, 1), square(5, 5, 1), false},
		{"polygon containing polygon", square(0, 0, 10), square(2, 2, 1), true},
		{"polygon inside polygon", square(2, 2, 1), square(0, 0, 10), true},
		{"touching polygons", square(0, 0, 1), square(1, 0, 1), true},
		{
			name:     "crossing polygons with no vertex inside",
			a:        orb.Polygon{orb.Ring{{0, 1}, {3, 1}, {3, 2}, {0, 2}, {0, 1}}},
			b:        orb.Polygon{orb.Ring{{1, 0}, {2, 0}, {2, 3}, {1, 3}, {1, 0}}},
			expected: true,
		},
		{
			name:     "bounds overlap but shapes do not",
			a:        orb.Polygon{orb.Ring{{0, 0}, {4, 0}, {0, 4}, {0, 0}}},
			b:        orb.Polygon{orb.Ring{{3, 3}, {4, 3}, {4, 4}, {3, 4}, {3, 3}}},
			expected: false,
		},
		{"line crossing polygon", orb.LineString{{-1, 1}, {3, 1}}, square(0, 0, 2), true},
		{"line beside polygon", orb.LineString{{-1, 3}, {3, 3}}, square(0, 0, 2), false},
		{"multipolygon second part", orb.Point{11, 11}, orb.MultiPolygon{square(0, 0, 1), square(10, 10, 2)}, true},
		{"multipoint one inside", orb.MultiPoint{{9, 9}, {1, 1}}, square(0, 0, 2), true},
		{"polygon hole", orb.Point{5, 5}, orb.Polygon{square(0, 0, 10)[0], square(4, 4, 2)[0]}, false},
		{"polygon inside hole", square(4.5, 4.5, 1), orb.Polygon{square(0, 0, 10)[0], square(4, 4, 2)[0]}, false},
		{"bound overlapping polygon", orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{3, 3}}, square(0, 0, 2), true},
		{"nil geometry", nil, square(0, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Intersects(tt.a, tt.b))
			assert.Equal(t, tt.expected, Intersects(tt.b, tt.a), "predicate must be symmetric")
		})
	}
}

func TestRepresentative(t *testing.T) {
	assert.Equal(t, orb.Point{3, 4}, Representative(orb.Point{3, 4}))

	c := Representative(square(0, 0, 2))
	assert.InDelta(t, 1.0, c[0], 1e-9)
	assert.InDelta(t, 1.0, c[1], 1e-9)
}

func TestNewShape(t *testing.T) {
	_, err := NewShape(nil)
	assert.Error(t, err)

	ring, err := NewShape(square(0, 0, 2)[0])
	require.NoError(t, err)
	bound, err := NewShape(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{3, 3}})
	require.NoError(t, err)
	far, err := NewShape(orb.LineString{{10, 10}, {12, 12}})
	require.NoError(t, err)

	assert.True(t, ring.Intersects(bound))
	assert.True(t, bound.Intersects(ring))
	assert.False(t, ring.Intersects(far))
	assert.False(t, ring.Intersects(nil))
}

func TestShape_Collection(t *testing.T) {
	coll, err := NewShape(orb.Collection{orb.Point{50, 50}, square(0, 0, 1)})
	require.NoError(t, err)
	inside, err := NewShape(orb.Point{0.5, 0.5})
	require.NoError(t, err)
	assert.True(t, coll.Intersects(inside))
}
