// Package openrouteservice implements routing.Provider on the
// OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/pkg/polyline"
)

const (
	ProviderName   = "openrouteservice"
	DefaultBaseURL = "https://api.openrouteservice.org"
	DefaultTimeout = 10 * time.Second
)

// Alternative route tuning: alternatives may share at most 60% of the main
// route and cost at most 40% more.
const (
	shareFactor  = 0.6
	weightFactor = 1.4
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the resilient client built from Timeout and Registry.
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

type Client struct {
	cfg  ClientConfig
	http HTTPDoer
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	doer := cfg.HTTPClient
	if doer == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = cfg.Timeout
		rc.Registry = cfg.Registry
		doer = resilience.NewClient(rc)
	}
	return &Client{cfg: cfg, http: doer}
}

func (c *Client) Name() string {
	return ProviderName
}

func fail(code, msg string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: msg, Err: err}
}

// GetDirections asks ORS for routes from req.Origin through req.Waypoints to
// req.Destination. Alternatives are only requested without waypoints since
// the API rejects that combination.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if req.Origin.Validate() != nil {
		return nil, fail("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	}
	if req.Destination.Validate() != nil {
		return nil, fail("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	}
	profile := req.Profile
	if profile == "" {
		profile = routing.ProfileCar
	}

	httpReq, err := c.newRequest(ctx, profile, directionsBodyFor(req))
	if err != nil {
		return nil, err
	}

	c.cfg.Logger.Debug().
		Str("profile", string(profile)).
		Str("preference", string(req.Preference)).
		Int("waypoints", len(req.Waypoints)).
		Msg("ors directions request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fail("REQUEST_FAILED", "failed to reach routing provider",
			fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp.StatusCode, raw)
	}

	var result directionsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	routes, err := toRoutes(&result)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, fail("NO_ROUTE", "provider returned no routes", routing.ErrNoRouteFound)
	}

	return &routing.DirectionsResponse{Routes: routes, Provider: ProviderName, FetchedAt: time.Now()}, nil
}

func directionsBodyFor(req routing.DirectionsRequest) directionsBody {
	coords := make([]orb.Point, 0, len(req.Waypoints)+2)
	coords = append(coords, req.Origin.Orb())
	for _, wp := range req.Waypoints {
		coords = append(coords, wp.Orb())
	}
	coords = append(coords, req.Destination.Orb())

	body := directionsBody{
		Coordinates:  coords,
		Preference:   string(req.Preference),
		Instructions: true,
		Geometry:     true,
		Units:        "m",
		Language:     "en",
	}
	if req.MaxAlternatives > 1 && len(req.Waypoints) == 0 {
		body.Alternatives = &alternatives{
			TargetCount:  req.MaxAlternatives,
			ShareFactor:  shareFactor,
			WeightFactor: weightFactor,
		}
	}
	return body
}

func (c *Client) newRequest(ctx context.Context, profile routing.Profile, body directionsBody) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v2/directions/"+string(profile), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")
	return req, nil
}

// classify maps a non-200 reply onto the routing sentinel errors.
func classify(status int, raw []byte) error {
	var body apiError
	if json.Unmarshal(raw, &body) != nil {
		return fail(fmt.Sprintf("HTTP_%d", status),
			fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
	msg := body.Error.Message

	switch {
	case status == http.StatusTooManyRequests:
		return fail("RATE_LIMIT", "routing quota exhausted", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fail("FORBIDDEN", "routing provider rejected the API key", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound:
		return fail("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusBadRequest && unroutableCodes[body.Error.Code]:
		return fail("NO_ROUTE", msg, routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		return fail("BAD_REQUEST", msg, routing.ErrInvalidCoordinates)
	case status >= http.StatusInternalServerError:
		return fail(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return fail(fmt.Sprintf("HTTP_%d", status), msg, routing.ErrProviderUnavailable)
	}
}

func toRoutes(result *directionsResult) ([]routing.Route, error) {
	routes := make([]routing.Route, 0, len(result.Routes))
	for _, r := range result.Routes {
		line, err := polyline.Decode(r.Geometry)
		if err != nil {
			return nil, fail("BAD_GEOMETRY", "undecodable route geometry",
				fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err))
		}

		var steps []step
		for _, seg := range r.Segments {
			steps = append(steps, seg.Steps...)
		}

		route := routing.Route{
			Geometry:    geo.PathFromLineString(line),
			DistanceKm:  roundTo(r.Summary.Distance/1000, 100),
			DurationMin: roundTo(r.Summary.Duration/60, 10),
			Summary:     viaLongestRoad(steps),
		}
		if len(r.BBox) >= 4 {
			route.Bounds = orb.Bound{Min: orb.Point{r.BBox[0], r.BBox[1]}, Max: orb.Point{r.BBox[2], r.BBox[3]}}
		} else {
			route.Bounds = line.Bound()
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// viaLongestRoad names the longest named step, e.g. "via NH 48".
func viaLongestRoad(steps []step) string {
	best := step{}
	for _, s := range steps {
		if s.Name != "" && s.Name != "-" && s.Distance > best.Distance {
			best = s
		}
	}
	if best.Name == "" {
		return ""
	}
	return "via " + best.Name
}

func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
