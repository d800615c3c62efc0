package handler

import (
	"github.com/paulmach/orb/geojson"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/weather"
	"github.com/breathway/breathway/internal/worker"
)

func toPoint(p geo.Point) models.Point {
	return models.Point{Lat: p.Lat, Lon: p.Lon}
}

func fromPoint(p models.Point) geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

func toExposure(i airquality.Index) models.Exposure {
	band := airquality.BandFor(i)
	return models.Exposure{Index: int(i), Band: band.Name, Color: band.Color}
}

func toPlace(p *geocoding.Place) models.PlaceResponse {
	return models.PlaceResponse{
		Name:    p.Name,
		State:   p.State,
		Country: p.Country,
		Point:   toPoint(p.Point),
	}
}

func toAirQuality(r *airquality.Reading) *models.AirQuality {
	if r == nil {
		return nil
	}
	aq := &models.AirQuality{
		Exposure:   toExposure(r.Index),
		MeasuredAt: models.TimestampPtr(&r.MeasuredAt),
	}
	if r.Components != nil {
		aq.Pollutant = string(r.Components.Dominant())
	}
	return aq
}

func toWeather(o *weather.Observation) models.Weather {
	return models.Weather{
		Temperature:   o.Temperature,
		FeelsLike:     o.FeelsLike,
		Humidity:      int(o.Humidity),
		WindSpeed:     o.WindSpeed,
		WindDirection: int(o.WindDirection),
		WindCategory:  string(o.WindCategory()),
		Pressure:      int(o.Pressure),
		VisibilityKm:  o.VisibilityKm,
		Condition:     string(o.Condition),
		Description:   o.Description,
		ObservedAt:    models.Timestamp(o.ObservedAt),
	}
}

func toForecastDay(d weather.DailySummary) models.ForecastDay {
	day := models.ForecastDay{
		Date:      d.Date,
		DayName:   d.DayName,
		MinTemp:   d.MinTemp,
		MaxTemp:   d.MaxTemp,
		AvgTemp:   d.AvgTemp,
		WindSpeed: d.WindSpeed,
		Condition: string(d.Condition),
	}
	if d.Exposure > 0 {
		e := toExposure(d.Exposure)
		day.Exposure = &e
	}
	return day
}

func toCandidate(i int, c *ranking.Candidate) models.RouteCandidate {
	out := models.RouteCandidate{
		Index:               i,
		Label:               string(c.Label),
		Strategy:            string(c.Strategy),
		Summary:             c.Summary,
		DistanceKm:          c.DistanceKm,
		DurationMin:         c.DurationMin,
		AdjustedDurationMin: c.AdjustedDurationMin,
		Exposure:            toExposure(c.Exposure),
		Cost:                c.Cost,
		Geometry:            geojson.NewGeometry(c.Geometry.LineString()),
	}
	if c.Traffic != nil {
		out.Traffic = &models.Traffic{
			Status:          string(c.Traffic.Status),
			DelayMinutes:    c.Traffic.DelayMinutes,
			AverageSpeedKmh: c.Traffic.AverageSpeedKmh,
			SampleCount:     c.Traffic.SampleCount,
		}
	}
	if p := c.Preference; p != nil {
		probs := make(map[string]float64, len(p.Distribution))
		for o, v := range p.Distribution {
			probs[string(o)] = v
		}
		out.Preference = &models.Preference{
			Objective:     string(p.Objective),
			Confidence:    p.Confidence(),
			Probabilities: probs,
		}
	}
	return out
}

func toHistoryEntry(r *history.Record) models.HistoryEntry {
	return models.HistoryEntry{
		ID:                  r.ID,
		Origin:              models.ResolvedPlace{Name: r.Origin.Name, Point: toPoint(r.Origin.Point)},
		Destination:         models.ResolvedPlace{Name: r.Destination.Name, Point: toPoint(r.Destination.Point)},
		Profile:             r.Profile,
		DistanceKm:          r.DistanceKm,
		DurationMin:         r.DurationMin,
		AdjustedDurationMin: r.AdjustedDurationMin,
		Exposure:            toExposure(r.Exposure),
		Label:               r.Label,
		Source:              r.Source,
		CandidateCount:      r.CandidateCount,
		CreatedAt:           models.Timestamp(r.CreatedAt),
	}
}

func toRegions(s *worker.Snapshot) models.RegionsResponse {
	regions := make([]models.RegionExposure, len(s.Regions))
	for i, re := range s.Regions {
		regions[i] = models.RegionExposure{
			Name:       re.Region.Name,
			Capital:    re.Region.Capital,
			Point:      toPoint(re.Region.Point),
			Exposure:   models.Exposure{Index: int(re.Index), Band: re.Band.Name, Color: re.Band.Color},
			Pollutant:  string(re.Pollutant),
			MeasuredAt: models.TimestampPtr(&re.MeasuredAt),
		}
	}
	return models.RegionsResponse{
		Kind:        string(s.Kind),
		RefreshedAt: models.Timestamp(s.RefreshedAt),
		Failed:      s.Failed,
		Regions:     regions,
	}
}
