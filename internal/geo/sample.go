package geo

// SampledPoint is a path vertex selected for an external lookup together with
// the distance travelled along the path to reach it.
type SampledPoint struct {
	Point
	CumulativeKm float64
}

// Sample reduces a path to vertices spaced at least intervalKm apart, measured
// along the path. The first vertex is always returned at distance 0 and the
// last vertex is always returned once, at the total path length, even if it
// lies closer than intervalKm to the previous sample. Paths with fewer than
// two vertices yield nil. A non-positive interval returns every vertex.
func Sample(path Path, intervalKm float64) []SampledPoint {
	if !path.Valid() {
		return nil
	}

	last := len(path) - 1
	samples := []SampledPoint{{Point: path[0]}}

	var total, sinceSample float64
	for i := 1; i <= last; i++ {
		segment := DistanceKm(path[i-1], path[i])
		total += segment
		sinceSample += segment

		if i == last {
			break
		}
		if sinceSample >= intervalKm {
			samples = append(samples, SampledPoint{Point: path[i], CumulativeKm: total})
			sinceSample = 0
		}
	}

	return append(samples, SampledPoint{Point: path[last], CumulativeKm: total})
}

// Interior returns the samples strictly between the endpoints.
func Interior(samples []SampledPoint) []SampledPoint {
	if len(samples) <= 2 {
		return nil
	}
	return samples[1 : len(samples)-1]
}
