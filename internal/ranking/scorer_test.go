package ranking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/traffic"
)

func candidate(distance, duration float64, exposure airquality.Index) ranking.Candidate {
	return ranking.Candidate{
		Candidate: routing.Candidate{
			DistanceKm:  distance,
			DurationMin: duration,
		},
		AdjustedDurationMin: duration,
		Exposure:            exposure,
	}
}

func labels(cs []ranking.Candidate) []ranking.Objective {
	out := make([]ranking.Objective, len(cs))
	for i, c := range cs {
		out[i] = c.Label
	}
	return out
}

// modelFunc adapts a function to ranking.PreferenceModel.
type modelFunc func(ctx context.Context, f ranking.Features) (*ranking.Prediction, error)

func (m modelFunc) Predict(ctx context.Context, f ranking.Features) (*ranking.Prediction, error) {
	return m(ctx, f)
}

func prediction(obj ranking.Objective, conf float64) *ranking.Prediction {
	rest := (1 - conf) / 2
	dist := map[ranking.Objective]float64{}
	for _, o := range ranking.Objectives {
		dist[o] = rest
	}
	dist[obj] = conf
	return &ranking.Prediction{Objective: obj, Distribution: dist}
}

// A Wednesday morning.
var scoreTime = time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)

func TestScore_LabelsCostsAndRecommendation(t *testing.T) {
	cs := []ranking.Candidate{
		candidate(100, 120, 80),
		candidate(110, 100, 150),
		candidate(105, 115, 60),
	}

	res := ranking.NewScorer(ranking.ScorerConfig{Logger: zerolog.Nop()}).Score(context.Background(), cs, scoreTime)

	assert.Equal(t, []ranking.Objective{ranking.ObjectiveBalanced, ranking.ObjectiveFastest, ranking.ObjectiveCleanest}, labels(res.Candidates))
	assert.Equal(t, 2, res.RecommendedIndex)
	assert.Equal(t, ranking.SourceExposure, res.RecommendationSource)

	assert.InDelta(t, 78.04, res.Candidates[0].Cost, 1e-9)
	assert.InDelta(t, 95.0, res.Candidates[1].Cost, 1e-9)
	assert.InDelta(t, 40.9, res.Candidates[2].Cost, 1e-9)
}

func TestAssignLabels_SingleDominantStaysFastest(t *testing.T) {
	cs := []ranking.Candidate{
		candidate(100, 90, 60),
		candidate(100, 120, 80),
		candidate(100, 130, 70),
	}
	ranking.AssignLabels(cs)

	assert.Equal(t, []ranking.Objective{ranking.ObjectiveFastest, ranking.ObjectiveBalanced, ranking.ObjectiveBalanced}, labels(cs))
}

func TestAssignLabels_TiesGoToFirst(t *testing.T) {
	cs := []ranking.Candidate{
		candidate(100, 120, 90),
		candidate(100, 100, 70),
		candidate(100, 100, 70),
	}
	ranking.AssignLabels(cs)

	// Candidate 1 wins both and stays fastest; candidate 2 ties and loses.
	assert.Equal(t, []ranking.Objective{ranking.ObjectiveBalanced, ranking.ObjectiveFastest, ranking.ObjectiveBalanced}, labels(cs))
}

func TestAssignLabels_CleanestFollowsLowestExposure(t *testing.T) {
	cs := []ranking.Candidate{
		candidate(100, 100, 50),
		candidate(100, 100, 60),
		candidate(100, 100, 70),
	}
	ranking.AssignLabels(cs)
	assert.Equal(t, ranking.ObjectiveFastest, cs[0].Label)

	cs = []ranking.Candidate{
		candidate(100, 90, 70),
		candidate(100, 100, 60),
		candidate(100, 100, 50),
	}
	ranking.AssignLabels(cs)
	assert.Equal(t, ranking.ObjectiveCleanest, cs[2].Label)
}

func TestAssignLabels_UsesAdjustedDuration(t *testing.T) {
	slow := candidate(100, 100, 80)
	slow.Traffic = &traffic.Summary{Status: traffic.StatusHeavy, DelayMinutes: 30}
	slow.AdjustedDurationMin = 130

	cs := []ranking.Candidate{slow, candidate(110, 110, 90)}
	ranking.AssignLabels(cs)

	assert.Equal(t, ranking.ObjectiveFastest, cs[1].Label)
	assert.Equal(t, ranking.ObjectiveCleanest, cs[0].Label)
}

func TestAssignLabels_SingleCandidate(t *testing.T) {
	cs := []ranking.Candidate{candidate(100, 100, 80)}
	ranking.AssignLabels(cs)
	assert.Equal(t, ranking.ObjectiveFastest, cs[0].Label)
}

func TestCost(t *testing.T) {
	assert.InDelta(t, 0.7*60+0.2*50+0.1*20, ranking.Cost(50, 60, 100, ranking.ObjectiveFastest), 1e-9)
	assert.InDelta(t, 0.7*20+0.2*50+0.1*60, ranking.Cost(50, 60, 100, ranking.ObjectiveCleanest), 1e-9)
	assert.InDelta(t, 0.33*60+0.33*50+0.34*20, ranking.Cost(50, 60, 100, ranking.ObjectiveBalanced), 1e-9)
	assert.InDelta(t, ranking.Cost(50, 60, 100, ranking.ObjectiveBalanced), ranking.Cost(50, 60, 100, "unknown"), 1e-9)
}

func TestScore_Empty(t *testing.T) {
	res := ranking.NewScorer(ranking.ScorerConfig{}).Score(context.Background(), nil, scoreTime)
	assert.Empty(t, res.Candidates)
	assert.Nil(t, res.Recommended())
}

func TestScore_ModelPicksMatchingLabelWithHighestConfidence(t *testing.T) {
	model := modelFunc(func(_ context.Context, f ranking.Features) (*ranking.Prediction, error) {
		switch f.DistanceKm {
		case 100: // balanced candidate, model agrees
			return prediction(ranking.ObjectiveBalanced, 0.6), nil
		case 110: // fastest candidate, model agrees more strongly
			return prediction(ranking.ObjectiveFastest, 0.8), nil
		default: // cleanest candidate, model disagrees
			return prediction(ranking.ObjectiveFastest, 0.9), nil
		}
	})

	cs := []ranking.Candidate{
		candidate(100, 120, 80),
		candidate(110, 100, 150),
		candidate(105, 115, 60),
	}
	res := ranking.NewScorer(ranking.ScorerConfig{Model: model, Logger: zerolog.Nop()}).Score(context.Background(), cs, scoreTime)

	assert.Equal(t, 1, res.RecommendedIndex)
	assert.Equal(t, ranking.SourceModel, res.RecommendationSource)
	for _, c := range res.Candidates {
		require.NotNil(t, c.Preference)
	}
	assert.InDelta(t, 0.9, res.Candidates[2].Preference.Confidence(), 1e-9)
}

func TestScore_ModelTieKeepsFirst(t *testing.T) {
	model := modelFunc(func(_ context.Context, f ranking.Features) (*ranking.Prediction, error) {
		if f.DistanceKm == 105 {
			return prediction(ranking.ObjectiveCleanest, 0.7), nil
		}
		return prediction(ranking.ObjectiveBalanced, 0.7), nil
	})

	cs := []ranking.Candidate{
		candidate(100, 120, 80),
		candidate(110, 100, 150),
		candidate(105, 115, 60),
	}
	res := ranking.NewScorer(ranking.ScorerConfig{Model: model}).Score(context.Background(), cs, scoreTime)

	assert.Equal(t, 0, res.RecommendedIndex)
}

func TestScore_ModelWithoutMatchKeepsExposurePick(t *testing.T) {
	model := modelFunc(func(context.Context, ranking.Features) (*ranking.Prediction, error) {
		return prediction(ranking.ObjectiveBalanced, 0.99), nil
	})

	cs := []ranking.Candidate{
		candidate(110, 100, 150),
		candidate(105, 115, 60),
	}
	res := ranking.NewScorer(ranking.ScorerConfig{Model: model}).Score(context.Background(), cs, scoreTime)

	assert.Equal(t, 1, res.RecommendedIndex)
	assert.Equal(t, ranking.SourceExposure, res.RecommendationSource)
}

func TestScore_ModelFailureKeepsExposurePick(t *testing.T) {
	calls := 0
	model := modelFunc(func(context.Context, ranking.Features) (*ranking.Prediction, error) {
		calls++
		if calls == 2 {
			return nil, ranking.ErrModelUnavailable
		}
		return prediction(ranking.ObjectiveFastest, 0.9), nil
	})

	cs := []ranking.Candidate{
		candidate(110, 100, 150),
		candidate(105, 115, 60),
	}
	res := ranking.NewScorer(ranking.ScorerConfig{Model: model, Logger: zerolog.Nop()}).Score(context.Background(), cs, scoreTime)

	assert.Equal(t, 1, res.RecommendedIndex)
	assert.Equal(t, ranking.SourceExposure, res.RecommendationSource)
	assert.Nil(t, res.Candidates[0].Preference)
}

func TestFeaturesFor(t *testing.T) {
	c := candidate(42.5, 55, 130)
	c.Traffic = &traffic.Summary{Status: traffic.StatusModerate, DelayMinutes: 7.5}
	c.AdjustedDurationMin = 62.5

	f := ranking.FeaturesFor(&c, scoreTime)
	assert.InDelta(t, 42.5, f.DistanceKm, 1e-9)
	assert.InDelta(t, 55.0, f.DurationMin, 1e-9)
	assert.InDelta(t, 130.0, f.Exposure, 1e-9)
	assert.InDelta(t, 7.5, f.TrafficDelay, 1e-9)
	assert.Equal(t, 8, f.Hour)
	assert.Equal(t, 2, f.DayOfWeek)
	assert.False(t, f.IsWeekend)

	sunday := time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)
	f = ranking.FeaturesFor(&c, sunday)
	assert.Equal(t, 6, f.DayOfWeek)
	assert.True(t, f.IsWeekend)

	c.Traffic = &traffic.Summary{Status: traffic.StatusUnknown, DelayMinutes: 3}
	assert.Zero(t, ranking.FeaturesFor(&c, scoreTime).TrafficDelay)
}

func TestPrediction_Confidence(t *testing.T) {
	p := prediction(ranking.ObjectiveCleanest, 0.5)
	assert.InDelta(t, 0.5, p.Confidence(), 1e-9)

	var err error = ranking.ErrModelUnavailable
	assert.True(t, errors.Is(err, ranking.ErrModelUnavailable))
}
