package types

import "ghcnd-server/internal/ghcn"

// Granularity selects the time bucket for aggregation.
type Granularity string

const (
	Year   Granularity = "year"
	Month  Granularity = "month"
	Day    Granularity = "day"
	Season Granularity = "season"
)

// Granularities lists the supported values in display order.
var Granularities = []Granularity{Year, Month, Day, Season}

// Bucket is the mean of one reading type over one time bucket.
type Bucket struct {
	Label   string
	Element ghcn.Element
	Mean    float64
	Count   int
}

// Row is one bucket of the wide table. A reading type without observations
// in the bucket is omitted.
type Row struct {
	Date string   `json:"date"`
	TMax *float64 `json:"TMAX,omitempty"`
	TMin *float64 `json:"TMIN,omitempty"`
}
