package preference

import (
	"context"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"

	"github.com/breathway/breathway/internal/ranking"
)

// Feature names as they appear in coefficient files.
const (
	FeatureDistance     = "distance"
	FeatureDuration     = "duration"
	FeatureExposure     = "aqi"
	FeatureTrafficDelay = "traffic_delay"
	FeatureHour         = "hour"
	FeatureDayOfWeek    = "day_of_week"
	FeatureIsWeekend    = "is_weekend"
)

// Coefficients is the on-disk form of a multinomial logistic model.
type Coefficients struct {
	Version    string                                   `json:"version"`
	Intercepts map[ranking.Objective]float64            `json:"intercepts"`
	Weights    map[ranking.Objective]map[string]float64 `json:"weights"`
}

func (c *Coefficients) validate() error {
	for _, o := range ranking.Objectives {
		if _, ok := c.Weights[o]; !ok {
			return fmt.Errorf("missing weights for %q", o)
		}
	}
	for o, ws := range c.Weights {
		if !o.Valid() {
			return fmt.Errorf("unknown objective %q", o)
		}
		for name := range ws {
			if _, ok := featureValue(ranking.Features{}, name); !ok {
				return fmt.Errorf("unknown feature %q for %q", name, o)
			}
		}
	}
	return nil
}

// LinearModel scores each objective as a linear function of the features
// and turns the scores into a distribution with softmax.
type LinearModel struct {
	coef Coefficients

	// features holds each objective's feature names sorted, so scores sum
	// in the same order on every call.
	features map[ranking.Objective][]string
}

// NewLinearModel creates a model from coefficients.
func NewLinearModel(coef Coefficients) (*LinearModel, error) {
	if err := coef.validate(); err != nil {
		return nil, fmt.Errorf("invalid coefficients: %w", err)
	}
	features := make(map[ranking.Objective][]string, len(coef.Weights))
	for o, ws := range coef.Weights {
		features[o] = slices.Sorted(maps.Keys(ws))
	}
	return &LinearModel{coef: coef, features: features}, nil
}

// LoadLinearModel reads coefficients from a JSON file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coefficients: %w", err)
	}

	var coef Coefficients
	if err := json.Unmarshal(data, &coef); err != nil {
		return nil, fmt.Errorf("decoding coefficients: %w", err)
	}
	return NewLinearModel(coef)
}

// Version returns the coefficient set's version string.
func (m *LinearModel) Version() string {
	return m.coef.Version
}

// Predict implements ranking.PreferenceModel.
func (m *LinearModel) Predict(ctx context.Context, f ranking.Features) (*ranking.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(ranking.Objectives))
	for i, o := range ranking.Objectives {
		s := m.coef.Intercepts[o]
		for _, name := range m.features[o] {
			v, _ := featureValue(f, name)
			s += m.coef.Weights[o][name] * v
		}
		if math.IsInf(s, 0) || math.IsNaN(s) {
			return nil, fmt.Errorf("%w: score for %q is not finite", ranking.ErrModelUnavailable, o)
		}
		scores[i] = s
	}

	probs := softmax(scores)
	dist := make(map[ranking.Objective]float64, len(probs))
	best := 0
	for i, p := range probs {
		dist[ranking.Objectives[i]] = p
		if p > probs[best] {
			best = i
		}
	}

	return &ranking.Prediction{Objective: ranking.Objectives[best], Distribution: dist}, nil
}

// softmax is shifted by the maximum score to stay finite.
func softmax(scores []float64) []float64 {
	hi := math.Inf(-1)
	for _, s := range scores {
		hi = math.Max(hi, s)
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func featureValue(f ranking.Features, name string) (float64, bool) {
	switch name {
	case FeatureDistance:
		return f.DistanceKm, true
	case FeatureDuration:
		return f.DurationMin, true
	case FeatureExposure:
		return f.Exposure, true
	case FeatureTrafficDelay:
		return f.TrafficDelay, true
	case FeatureHour:
		return float64(f.Hour), true
	case FeatureDayOfWeek:
		return float64(f.DayOfWeek), true
	case FeatureIsWeekend:
		if f.IsWeekend {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
