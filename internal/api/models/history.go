package models

// HistoryResponse lists a user's ranked trips, newest first.
type HistoryResponse struct {
	UserID  string         `json:"userId"`
	Limit   int            `json:"limit"`
	Records []HistoryEntry `json:"records"`
}

// HistoryEntry is one recorded trip.
type HistoryEntry struct {
	ID                  string        `json:"id"`
	Origin              ResolvedPlace `json:"origin"`
	Destination         ResolvedPlace `json:"destination"`
	Profile             string        `json:"profile"`
	DistanceKm          float64       `json:"distanceKm"`
	DurationMin         float64       `json:"durationMin"`
	AdjustedDurationMin float64       `json:"adjustedDurationMin"`
	Exposure            Exposure      `json:"exposure"`
	Label               string        `json:"label"`
	Source              string        `json:"recommendationSource"`
	CandidateCount      int           `json:"candidateCount"`
	CreatedAt           Timestamp     `json:"createdAt"`
}
