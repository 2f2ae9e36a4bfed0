package types

// Station is one merged registry/inventory row. Fields missing from either
// feed are nil and encode as JSON null.
type Station struct {
	ID        string   `json:"id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      *string  `json:"name"`
	FirstYear *int     `json:"first_year"`
	LastYear  *int     `json:"last_year"`
}

// HasCoordinates reports whether the station can be placed on the globe.
func (s Station) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Match is a search result: a station and its distance from the query point.
type Match struct {
	Station
	DistanceKm float64 `json:"distance"`
}

// SearchQuery selects stations around a point. Nil fields do not restrict.
type SearchQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	StartYear *int
	EndYear   *int
	Limit     *int
}
