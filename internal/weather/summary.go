package weather

import (
	"math"
	"sort"
	"time"

	"github.com/breathway/breathway/internal/airquality"
)

// MaxForecastDays is the number of daily summaries returned.
const MaxForecastDays = 5

type dayBucket struct {
	temps      []float64
	wind       []float64
	conditions map[Condition]int
	order      []Condition
	exposure   []airquality.Index
}

// Summarize groups forecast steps and pollution readings by calendar day in
// loc and summarises each day. The day containing now is skipped, and at most
// MaxForecastDays summaries are returned in date order. Pollution readings on
// days without weather steps are ignored.
func Summarize(entries []ForecastEntry, readings []airquality.Reading, now time.Time, loc *time.Location) []DailySummary {
	if loc == nil {
		loc = time.Local
	}

	days := make(map[string]*dayBucket)
	for _, e := range entries {
		date := e.Time.In(loc).Format(time.DateOnly)
		b, ok := days[date]
		if !ok {
			b = &dayBucket{conditions: make(map[Condition]int)}
			days[date] = b
		}
		b.temps = append(b.temps, e.Temperature)
		b.wind = append(b.wind, e.WindSpeed)
		if b.conditions[e.Condition] == 0 {
			b.order = append(b.order, e.Condition)
		}
		b.conditions[e.Condition]++
	}

	for _, r := range readings {
		date := r.MeasuredAt.In(loc).Format(time.DateOnly)
		if b, ok := days[date]; ok {
			b.exposure = append(b.exposure, r.Index)
		}
	}

	today := now.In(loc).Format(time.DateOnly)
	out := make([]DailySummary, 0, len(days))
	for date, b := range days {
		if date == today || len(b.temps) == 0 {
			continue
		}

		day, _ := time.ParseInLocation(time.DateOnly, date, loc)
		out = append(out, DailySummary{
			Date:      date,
			DayName:   day.Weekday().String(),
			MinTemp:   round1(minOf(b.temps)),
			MaxTemp:   round1(maxOf(b.temps)),
			AvgTemp:   round1(mean(b.temps)),
			WindSpeed: round1(mean(b.wind)),
			Condition: b.dominant(),
			Exposure:  meanIndex(b.exposure),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > MaxForecastDays {
		out = out[:MaxForecastDays]
	}
	return out
}

func (b *dayBucket) dominant() Condition {
	best := ConditionUnknown
	n := 0
	for _, c := range b.order {
		if b.conditions[c] > n {
			best, n = c, b.conditions[c]
		}
	}
	return best
}

func meanIndex(xs []airquality.Index) airquality.Index {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return airquality.IndexFromFloat(sum / float64(len(xs)))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
