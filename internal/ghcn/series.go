package ghcn

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// missingValue marks an absent reading in the by_station files.
const missingValue = -9999

const seriesDateLayout = "20060102"

// Observation is one daily temperature reading in degrees Celsius.
type Observation struct {
	StationID string
	Date      time.Time
	Element   Element
	Value     float64
}

// ValidateStationID rejects identifiers that are not a plain GHCN code.
func ValidateStationID(id string) error {
	if !stationIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidStationID, id)
	}
	return nil
}

// FetchSeries downloads <base>/<id>.csv.gz and returns its TMAX/TMIN rows.
// A non-success status means the archive has no data for the station.
func (c *Client) FetchSeries(ctx context.Context, stationID string) ([]Observation, error) {
	if err := ValidateStationID(stationID); err != nil {
		return nil, err
	}
	u := c.seriesBaseURL + "/" + url.PathEscape(stationID) + ".csv.gz"

	start := time.Now()
	body, err := c.get(ctx, u)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("fetch series %s: %w: %w", stationID, ErrStationNotFound, err)
		}
		return nil, fmt.Errorf("fetch series %s: %w: %w", stationID, ErrSourceUnavailable, err)
	}
	defer closeBody(body, c.logger, u)

	gz, err := pgzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: gzip: %w", stationID, err)
	}
	defer func() {
		if err := gz.Close(); err != nil {
			c.logger.Warn("close gzip reader", "station_id", stationID, "error", err)
		}
	}()

	obs, err := ParseSeries(gz)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", stationID, err)
	}
	c.logger.Info("series fetched",
		"station_id", stationID,
		"observations", len(obs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return obs, nil
}

// ParseSeries reads by_station CSV rows (id,date,element,value,mflag,qflag,sflag,obs-time).
// Rows that are not TMAX/TMIN, malformed, or missing are skipped.
func ParseSeries(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out []Observation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read series: %w", err)
		}
		if len(rec) < 4 {
			continue
		}
		el := Element(strings.TrimSpace(rec[2]))
		if !el.IsTemperature() {
			continue
		}
		date, err := time.Parse(seriesDateLayout, strings.TrimSpace(rec[1]))
		if err != nil {
			continue
		}
		raw, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil || raw == missingValue {
			continue
		}
		out = append(out, Observation{
			StationID: strings.TrimSpace(rec[0]),
			Date:      date,
			Element:   el,
			Value:     float64(raw) / 10,
		})
	}
	return out, nil
}
