package layer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/afero"

	"github.com/dbsmedya/accesstally/internal/types"
)

// Store reads GeoJSON layers from a filesystem.
type Store struct {
	fs       afero.Fs
	validate *validator.Validate
}

// NewStore creates a Store over fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{
		fs:       fs,
		validate: validator.New(),
	}
}

// Fs returns the filesystem the store reads from.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, path)
		}
		return nil, fmt.Errorf("failed to read layer %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layer %s: %w", path, err)
	}
	return fc, nil
}

// LoadOrders reads the orders layer at path. A missing layer is fatal and
// reported as ErrLayerNotFound.
func (s *Store) LoadOrders(path string) (*OrderLayer, error) {
	fc, err := s.readCollection(path)
	if err != nil {
		return nil, err
	}

	layer := NewOrderLayer(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for i, f := range fc.Features {
		order, err := s.orderFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, i, err)
		}
		if !layer.Add(order) {
			return nil, fmt.Errorf("%s feature %d: duplicate order id %q", path, i, order.ID)
		}
	}
	return layer, nil
}

func (s *Store) orderFromFeature(f *geojson.Feature) (*Order, error) {
	rawID, ok := f.Properties[OrderIDProperty]
	if !ok {
		rawID = f.ID
	}
	id, _ := types.ToOrderID(rawID)

	maxONA, ok := types.ToFloat64(f.Properties[MaxONAProperty])
	if !ok {
		return nil, fmt.Errorf("order %q: missing or non-numeric %s", id, MaxONAProperty)
	}

	order := &Order{
		ID:       id,
		MaxONA:   maxONA,
		Geometry: f.Geometry,
		Feature:  f,
	}
	if err := s.validate.Struct(order); err != nil {
		return nil, fmt.Errorf("invalid order %q: %w", id, err)
	}
	shape, err := NewShape(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("invalid order %q: %w", id, err)
	}
	order.shape = shape
	return order, nil
}

// LoadRev reads a rev layer at path.
func (s *Store) LoadRev(path, spacecraft string, day int) (*RevLayer, error) {
	fc, err := s.readCollection(path)
	if err != nil {
		return nil, err
	}

	rev := &RevLayer{
		Name:       filepath.Base(path),
		Spacecraft: spacecraft,
		Day:        day,
		Segments:   make([]Segment, 0, len(fc.Features)),
	}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("%s feature %d: missing geometry", path, i)
		}
		ona, ok := types.ToFloat64(f.Properties[SegmentONAProperty])
		if !ok {
			return nil, fmt.Errorf("%s feature %d: missing or non-numeric %s", path, i, SegmentONAProperty)
		}
		shape, err := NewShape(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, i, err)
		}
		rev.Segments = append(rev.Segments, Segment{ONA: ona, Geometry: f.Geometry, shape: shape})
	}
	return rev, nil
}

// ResolvePattern substitutes {spacecraft} and {day} in a rev pattern.
func ResolvePattern(pattern, spacecraft string, day int) string {
	r := strings.NewReplacer("{spacecraft}", spacecraft, "{day}", strconv.Itoa(day))
	return r.Replace(pattern)
}

// FindRev locates the rev layer of a spacecraft and day under dir. The pattern
// may contain glob metacharacters; the first match in lexical order wins.
// When nothing matches it returns (nil, false, nil): the caller decides how to
// treat a missing rev.
func (s *Store) FindRev(dir, pattern, spacecraft string, day int) (*RevLayer, bool, error) {
	resolved := filepath.Join(dir, ResolvePattern(pattern, spacecraft, day))

	matches, err := afero.Glob(s.fs, resolved)
	if err != nil {
		return nil, false, fmt.Errorf("bad rev pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, false, nil
	}
	sort.Strings(matches)

	rev, err := s.LoadRev(matches[0], spacecraft, day)
	if err != nil {
		return nil, false, err
	}
	return rev, true, nil
}
