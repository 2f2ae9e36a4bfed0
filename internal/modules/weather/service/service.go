package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/weather/aggregate"
	"ghcnd-server/internal/modules/weather/types"
)

// SeriesFetcher downloads the daily temperature series of one station.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, stationID string) ([]ghcn.Observation, error)
}

type Service struct {
	fetcher SeriesFetcher
	logger  *slog.Logger
}

func NewService(fetcher SeriesFetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, logger: logger}
}

// GetWeatherData returns per-bucket TMAX/TMIN means for a station. The
// granularity, range and station id are checked before any download. When
// the archive has no series for the station the result is an empty table
// together with ghcn.ErrStationNotFound.
func (s *Service) GetWeatherData(ctx context.Context, stationID, start, end, granularity string) ([]types.Row, error) {
	g, err := aggregate.ParseGranularity(granularity)
	if err != nil {
		return nil, err
	}
	dateRange, err := aggregate.ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	if err := ghcn.ValidateStationID(stationID); err != nil {
		return nil, err
	}

	began := time.Now()
	series, err := s.fetcher.FetchSeries(ctx, stationID)
	if err != nil {
		return []types.Row{}, err
	}

	filtered := aggregate.FilterRange(series, dateRange)
	buckets, err := aggregate.Aggregate(filtered, g)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", stationID, err)
	}
	rows := aggregate.Reshape(buckets)

	s.logger.Debug("weather data aggregated",
		"station_id", stationID,
		"granularity", g,
		"observations", len(filtered),
		"rows", len(rows),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return rows, nil
}
