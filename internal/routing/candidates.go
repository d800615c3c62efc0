package routing

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
)

// Strategy names the generation step that produced a candidate.
type Strategy string

const (
	StrategyFastest  Strategy = "fastest"
	StrategyShortest Strategy = "shortest"
	StrategyDetour   Strategy = "detour"
)

// Candidate is a distinct route between the requested endpoints.
type Candidate struct {
	Geometry    geo.Path
	DistanceKm  float64
	DurationMin float64
	Summary     string
	Strategy    Strategy
}

// DetourOffset is a waypoint displacement from the origin-destination midpoint, in degrees.
type DetourOffset struct {
	DLat float64
	DLon float64
}

// DefaultDetourOffsets are tried in order until one yields an acceptable detour.
var DefaultDetourOffsets = []DetourOffset{
	{DLat: 0.15, DLon: 0.15},
	{DLat: -0.15, DLon: -0.15},
	{DLat: 0.15, DLon: -0.15},
}

// GeneratorConfig holds configuration for candidate generation.
type GeneratorConfig struct {
	// Directions answers the individual provider queries.
	Directions Provider

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// FastestAlternatives is the number of routes requested and kept from the
	// fastest query (default: 2).
	FastestAlternatives int

	// DistinctKm is the minimum distance difference for the shortest route to
	// count as a new candidate (default: 0.1).
	DistinctKm float64

	// MinCandidates triggers the detour step when fewer were collected (default: 2).
	MinCandidates int

	// DetourOffsets are tried in order (default: DefaultDetourOffsets).
	DetourOffsets []DetourOffset

	// MaxDetourRatio rejects detours at least this many times the first
	// candidate's distance (default: 2).
	MaxDetourRatio float64

	// MaxCandidates caps the result (default: 3).
	MaxCandidates int
}

// Generator produces up to MaxCandidates distinct routes by combining
// provider queries with different cost preferences and forced detours.
type Generator struct {
	directions    Provider
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	fastestAlts   int
	distinctKm    float64
	minCandidates int
	offsets       []DetourOffset
	maxRatio      float64
	maxCandidates int
}

// NewGenerator creates a candidate generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	g := &Generator{
		directions:    cfg.Directions,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		fastestAlts:   cfg.FastestAlternatives,
		distinctKm:    cfg.DistinctKm,
		minCandidates: cfg.MinCandidates,
		offsets:       cfg.DetourOffsets,
		maxRatio:      cfg.MaxDetourRatio,
		maxCandidates: cfg.MaxCandidates,
	}
	if g.fastestAlts <= 0 {
		g.fastestAlts = 2
	}
	if g.distinctKm <= 0 {
		g.distinctKm = 0.1
	}
	if g.minCandidates <= 0 {
		g.minCandidates = 2
	}
	if len(g.offsets) == 0 {
		g.offsets = DefaultDetourOffsets
	}
	if g.maxRatio <= 0 {
		g.maxRatio = 2
	}
	if g.maxCandidates <= 0 {
		g.maxCandidates = 3
	}
	return g
}

// Generate returns candidates in collection order. Provider failures inside
// a step are logged and the step contributes nothing. ErrNoRouteFound is
// returned when no step produced a route.
func (g *Generator) Generate(ctx context.Context, origin, dest geo.Point, profile Profile) ([]Candidate, error) {
	var out []Candidate

	// Fastest with alternatives.
	if routes := g.query(ctx, StrategyFastest, DirectionsRequest{
		Origin:          origin,
		Destination:     dest,
		Profile:         profile,
		Preference:      PreferenceFastest,
		MaxAlternatives: g.fastestAlts,
	}); len(routes) > 0 {
		if len(routes) > g.fastestAlts {
			routes = routes[:g.fastestAlts]
		}
		for _, r := range routes {
			out = append(out, candidateFrom(r, StrategyFastest))
		}
	}

	// Shortest, kept only when its distance differs from everything so far.
	if routes := g.query(ctx, StrategyShortest, DirectionsRequest{
		Origin:      origin,
		Destination: dest,
		Profile:     profile,
		Preference:  PreferenceShortest,
	}); len(routes) > 0 {
		if c := candidateFrom(routes[0], StrategyShortest); g.distinct(c, out) {
			out = append(out, c)
		} else {
			g.logger.Debug().
				Float64("distance_km", c.DistanceKm).
				Msg("shortest route duplicates an existing candidate")
		}
	}

	// Forced detour through an offset midpoint. Needs a reference distance,
	// so it only runs when at least one candidate exists.
	if len(out) > 0 && len(out) < g.minCandidates {
		if c, ok := g.detour(ctx, origin, dest, profile, out[0].DistanceKm); ok {
			out = append(out, c)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRouteFound
	}
	if len(out) > g.maxCandidates {
		out = out[:g.maxCandidates]
	}

	for _, c := range out {
		g.metrics.Candidate(string(c.Strategy))
	}
	return out, nil
}

func (g *Generator) detour(ctx context.Context, origin, dest geo.Point, profile Profile, baseKm float64) (Candidate, bool) {
	mid := geo.Midpoint(origin, dest)

	for _, off := range g.offsets {
		waypoint := mid.Offset(off.DLat, off.DLon)
		routes := g.query(ctx, StrategyDetour, DirectionsRequest{
			Origin:      origin,
			Destination: dest,
			Profile:     profile,
			Preference:  PreferenceFastest,
			Waypoints:   []geo.Point{waypoint},
		})
		if len(routes) == 0 {
			continue
		}

		c := candidateFrom(routes[0], StrategyDetour)
		if c.DistanceKm < baseKm*g.maxRatio {
			g.logger.Debug().
				Float64("offset_lat", off.DLat).
				Float64("offset_lon", off.DLon).
				Float64("distance_km", c.DistanceKm).
				Msg("accepted detour route")
			return c, true
		}

		g.logger.Debug().
			Float64("offset_lat", off.DLat).
			Float64("offset_lon", off.DLon).
			Float64("distance_km", c.DistanceKm).
			Float64("base_km", baseKm).
			Msg("detour route too long")
	}
	return Candidate{}, false
}

// query runs one provider call and absorbs its failure.
func (g *Generator) query(ctx context.Context, strategy Strategy, req DirectionsRequest) []Route {
	resp, err := g.directions.GetDirections(ctx, req)
	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("strategy", string(strategy)).
			Str("profile", string(req.Profile)).
			Msg("route strategy failed")
		return nil
	}

	routes := make([]Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		if !r.Geometry.Valid() {
			continue
		}
		routes = append(routes, r)
	}
	return routes
}

// distinct compares in whole metres so that distances rounded to the
// provider's precision sit exactly on the threshold.
func (g *Generator) distinct(c Candidate, existing []Candidate) bool {
	threshold := math.Round(g.distinctKm * 1000)
	for _, e := range existing {
		if math.Round(math.Abs(e.DistanceKm-c.DistanceKm)*1000) < threshold {
			return false
		}
	}
	return true
}

func candidateFrom(r Route, s Strategy) Candidate {
	return Candidate{
		Geometry:    r.Geometry,
		DistanceKm:  r.DistanceKm,
		DurationMin: r.DurationMin,
		Summary:     r.Summary,
		Strategy:    s,
	}
}
