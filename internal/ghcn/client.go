// Package ghcn reads the GHCN-Daily archive: the fixed-width station registry
// and element inventory feeds, and the per-station compressed CSV series.
package ghcn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

var (
	// ErrSourceUnavailable is returned when a feed cannot be fetched.
	ErrSourceUnavailable = errors.New("ghcn source unavailable")
	// ErrStationNotFound is returned when the archive has no series for a station.
	ErrStationNotFound = errors.New("station not found")
	// ErrInvalidStationID is returned for identifiers that cannot name an archive file.
	ErrInvalidStationID = errors.New("invalid station id")
)

var stationIDRe = regexp.MustCompile(`^[A-Za-z0-9]{1,11}$`)

// Element is a GHCN-Daily reading type.
type Element string

const (
	TMax Element = "TMAX"
	TMin Element = "TMIN"
)

// IsTemperature reports whether e is one of the daily max/min temperature elements.
func (e Element) IsTemperature() bool {
	return e == TMax || e == TMin
}

type Options struct {
	StationsURL   string
	InventoryURL  string
	SeriesBaseURL string
	// Timeout bounds each request; zero means no client timeout.
	Timeout time.Duration
	// HTTPClient overrides the default client (Timeout is ignored then).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	http          *http.Client
	stationsURL   string
	inventoryURL  string
	seriesBaseURL string
	logger        *slog.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:          hc,
		stationsURL:   opts.StationsURL,
		inventoryURL:  opts.InventoryURL,
		seriesBaseURL: opts.SeriesBaseURL,
		logger:        logger,
	}
}

// get issues a GET and returns the open response body for a 2xx status.
// Any other status is reported as *StatusError.
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request %s: %w", url, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// StatusError records a non-success HTTP status from the archive.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: status %d", e.URL, e.StatusCode)
}

func closeBody(body io.Closer, logger *slog.Logger, url string) {
	if err := body.Close(); err != nil {
		logger.Warn("close response body", "url", url, "error", err)
	}
}
