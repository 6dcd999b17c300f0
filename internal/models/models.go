package models

// TrackRequest is the body of POST /api/track
type TrackRequest struct {
	Input string `json:"input"`
}

// TrackRecord is the geolocation record returned by POST /api/track
// It is also the value kept in the response cache
// Latitude and Longitude are null when the provider has no coordinates
type TrackRecord struct {
	ResolvedIP  string   `json:"resolved_ip"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
	Org         string   `json:"org"`
	Timezone    string   `json:"timezone"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// HasCoordinates reports whether both coordinates are present
func (r *TrackRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}
