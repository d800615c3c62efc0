// Package worker refreshes regional exposure snapshots in the background.
package worker

import (
	"time"

	"github.com/breathway/breathway/internal/geo"
)

// Kind selects a region table.
type Kind string

const (
	KindStates Kind = "states"
	KindCities Kind = "cities"
)

// Valid reports whether k names a region table.
func (k Kind) Valid() bool {
	return k == KindStates || k == KindCities
}

// Region is a named location whose exposure is tracked.
type Region struct {
	Name string

	// Capital is set for states.
	Capital string

	Point geo.Point
}

// RefreshConfig holds configuration for the regional refresh job.
type RefreshConfig struct {
	// Kinds are the region tables to refresh (default: states and cities).
	Kinds []Kind

	// Interval between scheduled refreshes (default: 15 minutes).
	Interval time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Kinds:    []Kind{KindStates, KindCities},
		Interval: 15 * time.Minute,
	}
}

// Regions returns the region table for kind, or nil for an unknown kind.
func Regions(kind Kind) []Region {
	switch kind {
	case KindStates:
		return StateCapitals()
	case KindCities:
		return MajorCities()
	default:
		return nil
	}
}

// StateCapitals returns one reference point per Indian state and union territory.
func StateCapitals() []Region {
	return []Region{
		{Name: "Maharashtra", Capital: "Mumbai", Point: geo.Point{Lat: 19.0760, Lon: 72.8777}},
		{Name: "Delhi", Capital: "New Delhi", Point: geo.Point{Lat: 28.6139, Lon: 77.2090}},
		{Name: "Karnataka", Capital: "Bengaluru", Point: geo.Point{Lat: 12.9716, Lon: 77.5946}},
		{Name: "Tamil Nadu", Capital: "Chennai", Point: geo.Point{Lat: 13.0827, Lon: 80.2707}},
		{Name: "West Bengal", Capital: "Kolkata", Point: geo.Point{Lat: 22.5726, Lon: 88.3639}},
		{Name: "Telangana", Capital: "Hyderabad", Point: geo.Point{Lat: 17.3850, Lon: 78.4867}},
		{Name: "Gujarat", Capital: "Gandhinagar", Point: geo.Point{Lat: 23.0225, Lon: 72.5714}},
		{Name: "Rajasthan", Capital: "Jaipur", Point: geo.Point{Lat: 26.9124, Lon: 75.7873}},
		{Name: "Uttar Pradesh", Capital: "Lucknow", Point: geo.Point{Lat: 26.8467, Lon: 80.9462}},
		{Name: "Punjab", Capital: "Chandigarh", Point: geo.Point{Lat: 30.7333, Lon: 76.7794}},
		{Name: "Kerala", Capital: "Thiruvananthapuram", Point: geo.Point{Lat: 8.5241, Lon: 76.9366}},
		{Name: "Bihar", Capital: "Patna", Point: geo.Point{Lat: 25.5941, Lon: 85.1376}},
		{Name: "Madhya Pradesh", Capital: "Bhopal", Point: geo.Point{Lat: 23.2599, Lon: 77.4126}},
		{Name: "Odisha", Capital: "Bhubaneswar", Point: geo.Point{Lat: 20.2961, Lon: 85.8245}},
		{Name: "Assam", Capital: "Dispur", Point: geo.Point{Lat: 26.1445, Lon: 91.7362}},
		{Name: "Andhra Pradesh", Capital: "Amaravati", Point: geo.Point{Lat: 15.9129, Lon: 79.7400}},
		{Name: "Haryana", Capital: "Chandigarh", Point: geo.Point{Lat: 30.7333, Lon: 76.7794}},
		{Name: "Himachal Pradesh", Capital: "Shimla", Point: geo.Point{Lat: 31.1048, Lon: 77.1734}},
		{Name: "Uttarakhand", Capital: "Dehradun", Point: geo.Point{Lat: 30.3165, Lon: 78.0322}},
		{Name: "Chhattisgarh", Capital: "Raipur", Point: geo.Point{Lat: 21.2514, Lon: 81.6296}},
		{Name: "Jharkhand", Capital: "Ranchi", Point: geo.Point{Lat: 23.3441, Lon: 85.3096}},
		{Name: "Goa", Capital: "Panaji", Point: geo.Point{Lat: 15.4909, Lon: 73.8278}},
		{Name: "Sikkim", Capital: "Gangtok", Point: geo.Point{Lat: 27.3314, Lon: 88.6138}},
		{Name: "Arunachal Pradesh", Capital: "Itanagar", Point: geo.Point{Lat: 27.0844, Lon: 93.6053}},
		{Name: "Nagaland", Capital: "Kohima", Point: geo.Point{Lat: 25.6751, Lon: 94.1086}},
		{Name: "Manipur", Capital: "Imphal", Point: geo.Point{Lat: 24.8170, Lon: 93.9368}},
		{Name: "Mizoram", Capital: "Aizawl", Point: geo.Point{Lat: 23.7271, Lon: 92.7176}},
		{Name: "Tripura", Capital: "Agartala", Point: geo.Point{Lat: 23.8315, Lon: 91.2868}},
		{Name: "Meghalaya", Capital: "Shillong", Point: geo.Point{Lat: 25.5788, Lon: 91.8933}},
		{Name: "Jammu and Kashmir", Capital: "Srinagar", Point: geo.Point{Lat: 34.0837, Lon: 74.7973}},
		{Name: "Ladakh", Capital: "Leh", Point: geo.Point{Lat: 34.1526, Lon: 77.5770}},
		{Name: "Andaman and Nicobar Islands", Capital: "Port Blair", Point: geo.Point{Lat: 11.6234, Lon: 92.7265}},
		{Name: "Puducherry", Capital: "Puducherry", Point: geo.Point{Lat: 11.9416, Lon: 79.8083}},
		{Name: "Dadra and Nagar Haveli and Daman and Diu", Capital: "Daman", Point: geo.Point{Lat: 20.4283, Lon: 72.8397}},
		{Name: "Lakshadweep", Capital: "Kavaratti", Point: geo.Point{Lat: 10.5667, Lon: 72.6417}},
	}
}

// MajorCities returns the metros and regional centres shown on the city map.
func MajorCities() []Region {
	return []Region{
		// Metros
		{Name: "Delhi", Point: geo.Point{Lat: 28.6139, Lon: 77.2090}},
		{Name: "Mumbai", Point: geo.Point{Lat: 19.0760, Lon: 72.8777}},
		{Name: "Bengaluru", Point: geo.Point{Lat: 12.9716, Lon: 77.5946}},
		{Name: "Chennai", Point: geo.Point{Lat: 13.0827, Lon: 80.2707}},
		{Name: "Kolkata", Point: geo.Point{Lat: 22.5726, Lon: 88.3639}},
		{Name: "Hyderabad", Point: geo.Point{Lat: 17.3850, Lon: 78.4867}},
		{Name: "Ahmedabad", Point: geo.Point{Lat: 23.0225, Lon: 72.5714}},
		{Name: "Pune", Point: geo.Point{Lat: 18.5204, Lon: 73.8567}},

		// North
		{Name: "Lucknow", Point: geo.Point{Lat: 26.8467, Lon: 80.9462}},
		{Name: "Kanpur", Point: geo.Point{Lat: 26.4499, Lon: 80.3319}},
		{Name: "Jaipur", Point: geo.Point{Lat: 26.9124, Lon: 75.7873}},
		{Name: "Chandigarh", Point: geo.Point{Lat: 30.7333, Lon: 76.7794}},
		{Name: "Srinagar", Point: geo.Point{Lat: 34.0837, Lon: 74.7973}},

		// South
		{Name: "Thiruvananthapuram", Point: geo.Point{Lat: 8.5241, Lon: 76.9366}},
		{Name: "Kochi", Point: geo.Point{Lat: 9.9312, Lon: 76.2673}},
		{Name: "Visakhapatnam", Point: geo.Point{Lat: 17.6868, Lon: 83.2185}},

		// East
		{Name: "Bhubaneswar", Point: geo.Point{Lat: 20.2961, Lon: 85.8245}},
		{Name: "Patna", Point: geo.Point{Lat: 25.5941, Lon: 85.1376}},
		{Name: "Guwahati", Point: geo.Point{Lat: 26.1158, Lon: 91.7086}},

		// West and central
		{Name: "Indore", Point: geo.Point{Lat: 22.7196, Lon: 75.8577}},
		{Name: "Bhopal", Point: geo.Point{Lat: 23.2599, Lon: 77.4126}},
		{Name: "Nagpur", Point: geo.Point{Lat: 21.1458, Lon: 79.0882}},
	}
}
