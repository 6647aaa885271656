package provider

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/dbsmedya/accesstally/internal/layer"
	"github.com/dbsmedya/accesstally/internal/selection"
	"github.com/dbsmedya/accesstally/internal/tally"
)

// earthEquatorialKm is the WGS84 equatorial radius.
const earthEquatorialKm = 6378.137

// TLE holds the two element lines of a spacecraft.
type TLE struct {
	Line1 string
	Line2 string
}

// OrbitProvider derives availability by propagating spacecraft TLEs with SGP4.
// An order is visible on a day when, at some sample, its target is above the
// spacecraft's horizon and the off-nadir angle does not exceed the order's
// bucket floor.
type OrbitProvider struct {
	tracks  map[string]*track
	orders  []*layer.Order
	buckets selection.Buckets
	start   time.Time
	step    time.Duration
}

type track struct {
	sat satellite.Satellite
}

type target struct {
	id    string
	floor float64
	// obs is the target's latitude and longitude in radians
	obs satellite.LatLong
}

// fix is a propagated spacecraft position in ECI kilometres at a Julian day.
type fix struct {
	eci  satellite.Vector3
	jday float64
}

func sub(a, b satellite.Vector3) satellite.Vector3 {
	return satellite.Vector3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func dot(a, b satellite.Vector3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func norm(a satellite.Vector3) float64   { return math.Sqrt(dot(a, a)) }

// NewOrbitProvider parses the TLEs of every spacecraft. Spacecraft without a
// TLE are reported absent by Availability. Days are offsets from start, which
// is truncated to UTC midnight.
func NewOrbitProvider(tles map[string]TLE, orders *layer.OrderLayer, buckets selection.Buckets, start time.Time, step time.Duration) (*OrbitProvider, error) {
	if orders == nil {
		return nil, fmt.Errorf("order layer is nil")
	}
	if step <= 0 {
		return nil, fmt.Errorf("orbit step must be positive, got %s", step)
	}

	tracks := make(map[string]*track, len(tles))
	for id, tle := range tles {
		if tle.Line1 == "" || tle.Line2 == "" {
			continue
		}
		tr, err := newTrack(tle)
		if err != nil {
			return nil, fmt.Errorf("spacecraft %s: %w", id, err)
		}
		tracks[id] = tr
	}

	start = start.UTC()
	return &OrbitProvider{
		tracks:  tracks,
		orders:  orders.Orders(),
		buckets: buckets,
		start:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		step:    step,
	}, nil
}

// tleLineLength is the fixed width of a two-line element line.
const tleLineLength = 69

func checkTLE(tle TLE) error {
	l1 := strings.TrimRight(tle.Line1, " \r\n")
	l2 := strings.TrimRight(tle.Line2, " \r\n")
	if len(l1) != tleLineLength || len(l2) != tleLineLength {
		return fmt.Errorf("invalid TLE: lines must be %d characters", tleLineLength)
	}
	if !strings.HasPrefix(l1, "1 ") || !strings.HasPrefix(l2, "2 ") {
		return fmt.Errorf("invalid TLE: lines must start with 1 and 2")
	}
	if strings.TrimSpace(l1[2:7]) != strings.TrimSpace(l2[2:7]) {
		return fmt.Errorf("invalid TLE: catalog numbers %q and %q differ", l1[2:7], l2[2:7])
	}
	return nil
}

// Validate parses the TLE without keeping the result.
func (t TLE) Validate() error {
	_, err := newTrack(t)
	return err
}

func newTrack(tle TLE) (tr *track, err error) {
	if err := checkTLE(tle); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid TLE: %v", r)
		}
	}()
	return &track{sat: satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)}, nil
}

// position returns the spacecraft ECI position.
func (t *track) position(at time.Time) (fix, bool) {
	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, _ := satellite.Propagate(t.sat, year, int(month), day, hour, min, sec)
	r := norm(posECI)
	if math.IsNaN(r) || r < earthEquatorialKm {
		return fix{}, false
	}
	return fix{eci: posECI, jday: satellite.JDay(year, int(month), day, hour, min, sec)}, true
}

// Availability implements Provider.
func (p *OrbitProvider) Availability(ctx context.Context, key tally.Key) (tally.Set[string], bool, error) {
	tr, ok := p.tracks[key.Spacecraft]
	if !ok {
		return nil, false, nil
	}

	targets := p.targets()
	visible := tally.NewSet[string]()
	dayStart := p.start.AddDate(0, 0, key.Day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	for at := dayStart; at.Before(dayEnd); at = at.Add(p.step) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		sat, ok := tr.position(at)
		if !ok {
			continue
		}
		for _, tg := range targets {
			if visible.Contains(tg.id) {
				continue
			}
			if elevation, ona := lookAngles(sat, tg); elevation > 0 && ona <= tg.floor {
				visible.Add(tg.id)
			}
		}
		if len(visible) == len(targets) {
			break
		}
	}

	return visible, true, nil
}

// targets returns the orders that reach at least the lowest bucket.
func (p *OrbitProvider) targets() []target {
	out := make([]target, 0, len(p.orders))
	for _, o := range p.orders {
		floor, ok := p.buckets.Floor(o.MaxONA)
		if !ok {
			continue
		}
		pt := layer.Representative(o.Geometry)
		obs := satellite.LatLong{
			Latitude:  pt.Lat() * math.Pi / 180,
			Longitude: pt.Lon() * math.Pi / 180,
		}
		out = append(out, target{id: o.ID, floor: floor, obs: obs})
	}
	return out
}

// lookAngles returns the target's elevation seen from the ground and the
// spacecraft's off-nadir angle to the target, both in degrees.
func lookAngles(sat fix, tg target) (elevation, ona float64) {
	obs := satellite.LLAToECI(tg.obs, 0, sat.jday)
	toTarget := sub(obs, sat.eci)
	dist := norm(toTarget)
	if dist == 0 {
		return 90, 0
	}
	elevation = satellite.ECIToLookAngles(sat.eci, tg.obs, 0, sat.jday).El * 180 / math.Pi
	if math.IsNaN(elevation) {
		// asin overshoots by rounding at the exact zenith or nadir
		elevation = math.Copysign(90, dot(sub(sat.eci, obs), obs))
	}

	nadir := sub(satellite.Vector3{}, sat.eci)
	ona = math.Acos(clamp(dot(toTarget, nadir)/(dist*norm(nadir)))) * 180 / math.Pi
	return elevation, ona
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Name implements Provider.
func (p *OrbitProvider) Name() string {
	return "orbit"
}
