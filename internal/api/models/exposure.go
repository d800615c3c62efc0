package models

// RegionsResponse is the latest regional exposure snapshot.
type RegionsResponse struct {
	Kind        string           `json:"kind"`
	RefreshedAt Timestamp        `json:"refreshedAt"`
	Failed      int              `json:"failed"`
	Regions     []RegionExposure `json:"regions"`
}

// RegionExposure is the exposure of one region.
type RegionExposure struct {
	Name    string `json:"name"`
	Capital string `json:"capital,omitempty"`
	Point   Point  `json:"point"`
	Exposure
	Pollutant  string     `json:"dominantPollutant"`
	MeasuredAt *Timestamp `json:"measuredAt,omitempty"`
}
