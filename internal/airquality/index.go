package airquality

// breakpoints maps concentration thresholds (μg/m³) to index values. Both
// slices are ascending and of equal length.
type breakpoints struct {
	conc  []float64
	index []float64
}

var (
	indexSteps = []float64{50, 100, 200, 300, 400, 500}

	pm25Breakpoints = breakpoints{conc: []float64{30, 60, 90, 120, 250, 500}, index: indexSteps}
	pm10Breakpoints = breakpoints{conc: []float64{50, 100, 250, 350, 430, 500}, index: indexSteps}
	no2Breakpoints  = breakpoints{conc: []float64{40, 80, 180, 280, 400, 500}, index: indexSteps}
)

// categoryIndex maps the provider's 1..5 category to a representative index.
var categoryIndex = map[int]Index{
	1: 35,
	2: 75,
	3: 150,
	4: 250,
	5: 350,
}

// defaultCategoryIndex is used for a category outside 1..5.
const defaultCategoryIndex Index = 25

// subIndex interpolates linearly within the breakpoint band containing conc.
// Concentrations below the first breakpoint scale from zero; above the last
// breakpoint the top of the scale is returned.
func (b breakpoints) subIndex(conc float64) float64 {
	if conc <= 0 {
		return 0
	}
	if conc <= b.conc[0] {
		return b.index[0] / b.conc[0] * conc
	}
	for i := 0; i < len(b.conc)-1; i++ {
		lo, hi := b.conc[i], b.conc[i+1]
		if conc > lo && conc <= hi {
			return (b.index[i+1]-b.index[i])/(hi-lo)*(conc-lo) + b.index[i]
		}
	}
	return b.index[len(b.index)-1]
}

// IndexFromComponents computes the exposure index as the highest of the
// PM2.5, PM10 and NO2 sub-indices on the Indian national AQI scale.
func IndexFromComponents(c Components) Index {
	worst := pm25Breakpoints.subIndex(c.PM25)
	if v := pm10Breakpoints.subIndex(c.PM10); v > worst {
		worst = v
	}
	if v := no2Breakpoints.subIndex(c.NO2); v > worst {
		worst = v
	}
	return IndexFromFloat(worst)
}

// IndexFromCategory maps a coarse 1..5 category to an index. Category 0
// means no data and yields 0.
func IndexFromCategory(category int) Index {
	if category == 0 {
		return 0
	}
	if v, ok := categoryIndex[category]; ok {
		return v
	}
	return defaultCategoryIndex
}

// ComputeIndex derives the index for a reading, preferring concentrations.
func ComputeIndex(category int, components *Components) Index {
	if components != nil {
		return IndexFromComponents(*components)
	}
	return IndexFromCategory(category)
}
