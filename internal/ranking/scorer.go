package ranking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/airquality"
)

// weights is one cost vector over duration, distance and normalized exposure.
type weights struct {
	duration float64
	distance float64
	exposure float64
}

var costWeights = map[Objective]weights{
	ObjectiveFastest:  {duration: 0.7, distance: 0.2, exposure: 0.1},
	ObjectiveCleanest: {duration: 0.1, distance: 0.2, exposure: 0.7},
	ObjectiveBalanced: {duration: 0.33, distance: 0.33, exposure: 0.34},
}

// exposureScale brings the 0..500 exposure range down to roughly the
// magnitude of durations and distances.
const exposureScale = 5.0

// Cost is the weighted cost of a route under label; lower is better.
// Unknown labels are costed as balanced.
func Cost(distanceKm, durationMin float64, exposure airquality.Index, label Objective) float64 {
	w, ok := costWeights[label]
	if !ok {
		w = costWeights[ObjectiveBalanced]
	}
	norm := float64(exposure) / exposureScale
	return w.duration*durationMin + w.distance*distanceKm + w.exposure*norm
}

// AssignLabels marks the quickest candidate fastest and the lowest-exposure
// candidate cleanest; everything else is balanced. Ties go to the earlier
// candidate, and a candidate winning both stays fastest.
func AssignLabels(cs []Candidate) {
	if len(cs) == 0 {
		return
	}

	fastest, cleanest := 0, 0
	for i := range cs {
		cs[i].Label = ObjectiveBalanced
		if cs[i].EffectiveDuration() < cs[fastest].EffectiveDuration() {
			fastest = i
		}
		if cs[i].Exposure < cs[cleanest].Exposure {
			cleanest = i
		}
	}

	cs[cleanest].Label = ObjectiveCleanest
	cs[fastest].Label = ObjectiveFastest
}

// lowestExposure returns the index of the first candidate with minimal exposure.
func lowestExposure(cs []Candidate) int {
	best := 0
	for i := range cs {
		if cs[i].Exposure < cs[best].Exposure {
			best = i
		}
	}
	return best
}

// ScorerConfig holds configuration for the scorer.
type ScorerConfig struct {
	// Model adjusts the recommendation when set.
	Model  PreferenceModel
	Logger zerolog.Logger
}

// Scorer labels, costs and recommends candidates.
type Scorer struct {
	model  PreferenceModel
	logger zerolog.Logger
}

// NewScorer creates a scorer.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{model: cfg.Model, logger: cfg.Logger}
}

// Score ranks cs in place and returns the result. The recommendation is the
// lowest-exposure candidate unless the preference model confidently agrees
// with some candidate's own label.
func (s *Scorer) Score(ctx context.Context, cs []Candidate, at time.Time) Result {
	if len(cs) == 0 {
		return Result{RecommendedIndex: -1, RecommendationSource: SourceExposure}
	}

	AssignLabels(cs)
	for i := range cs {
		c := &cs[i]
		c.Cost = Cost(c.DistanceKm, c.EffectiveDuration(), c.Exposure, c.Label)
	}

	result := Result{
		Candidates:           cs,
		RecommendedIndex:     lowestExposure(cs),
		RecommendationSource: SourceExposure,
	}

	if s.model == nil {
		return result
	}

	idx, ok := s.applyModel(ctx, cs, at)
	if ok {
		result.RecommendedIndex = idx
		result.RecommendationSource = SourceModel
	}
	return result
}

// applyModel attaches predictions and returns the candidate whose label
// matches its predicted objective with the highest confidence.
func (s *Scorer) applyModel(ctx context.Context, cs []Candidate, at time.Time) (int, bool) {
	preds := make([]*Prediction, len(cs))
	for i := range cs {
		p, err := s.model.Predict(ctx, FeaturesFor(&cs[i], at))
		if err != nil || p == nil {
			s.logger.Warn().
				Err(err).
				Int("candidate", i).
				Msg("preference model failed, keeping exposure recommendation")
			return 0, false
		}
		preds[i] = p
	}

	best, bestConf := -1, 0.0
	for i := range cs {
		cs[i].Preference = preds[i]
		if preds[i].Objective != cs[i].Label {
			continue
		}
		if conf := preds[i].Confidence(); conf > bestConf {
			best, bestConf = i, conf
		}
	}

	if best < 0 {
		s.logger.Debug().Msg("no candidate label matches its predicted objective")
		return 0, false
	}
	return best, true
}

// FeaturesFor builds the model input for a candidate at time at.
func FeaturesFor(c *Candidate, at time.Time) Features {
	dow := (int(at.Weekday()) + 6) % 7
	return Features{
		DistanceKm:   c.DistanceKm,
		DurationMin:  c.DurationMin,
		Exposure:     float64(c.Exposure),
		TrafficDelay: c.trafficDelay(),
		Hour:         at.Hour(),
		DayOfWeek:    dow,
		IsWeekend:    dow >= 5,
	}
}
