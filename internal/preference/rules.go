// Package preference provides implementations of ranking.PreferenceModel.
package preference

import (
	"context"
	"slices"

	"github.com/breathway/breathway/internal/ranking"
)

// Thresholds used by RuleModel.
const (
	HighExposure      = 150.0
	HeavyDelayMinutes = 15.0
	DefaultConfidence = 0.8
)

// RushHours are the weekday hours in which travellers favour speed.
var RushHours = []int{7, 8, 9, 17, 18, 19}

// RuleModel is a deterministic classifier applying the same rules the
// trained models are fitted against: high exposure favours the cleanest
// route, weekday rush hour or heavy delay the fastest, anything else balanced.
type RuleModel struct {
	// Confidence is the probability assigned to the chosen objective; the
	// rest is split evenly (default: 0.8).
	Confidence float64
}

// NewRuleModel creates a rule model with the default confidence.
func NewRuleModel() *RuleModel {
	return &RuleModel{Confidence: DefaultConfidence}
}

// Classify returns the objective the rules pick for f.
func Classify(f ranking.Features) ranking.Objective {
	switch {
	case f.Exposure > HighExposure:
		return ranking.ObjectiveCleanest
	case !f.IsWeekend && slices.Contains(RushHours, f.Hour):
		return ranking.ObjectiveFastest
	case f.TrafficDelay > HeavyDelayMinutes:
		return ranking.ObjectiveFastest
	default:
		return ranking.ObjectiveBalanced
	}
}

// Predict implements ranking.PreferenceModel.
func (m *RuleModel) Predict(ctx context.Context, f ranking.Features) (*ranking.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conf := m.Confidence
	if conf <= 0 || conf > 1 {
		conf = DefaultConfidence
	}

	obj := Classify(f)
	rest := (1 - conf) / float64(len(ranking.Objectives)-1)
	dist := make(map[ranking.Objective]float64, len(ranking.Objectives))
	for _, o := range ranking.Objectives {
		dist[o] = rest
	}
	dist[obj] = conf

	return &ranking.Prediction{Objective: obj, Distribution: dist}, nil
}
