package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"ghcnd-server/internal/geo"
	"ghcnd-server/internal/modules/stations/repository"
	"ghcnd-server/internal/modules/stations/types"
	"ghcnd-server/internal/mqtt"
)

// ErrInvalidQuery is returned for search parameters outside their domain.
var ErrInvalidQuery = errors.New("invalid station query")

// CatalogLoader reads the cached catalog or builds it from the remote feeds.
type CatalogLoader interface {
	Load(ctx context.Context) (stations []types.Station, built bool, err error)
	Build(ctx context.Context) ([]types.Station, error)
}

// Notifier announces a rebuilt catalog.
type Notifier interface {
	PublishCatalogRefreshed(ctx context.Context, event mqtt.CatalogRefreshed) error
}

type Service struct {
	catalog   CatalogLoader
	repo      repository.StationRepository
	notifier  Notifier
	cachePath string
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewService wires the catalog to the index. notifier may be nil.
func NewService(catalog CatalogLoader, repo repository.StationRepository, notifier Notifier, cachePath string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:   catalog,
		repo:      repo,
		notifier:  notifier,
		cachePath: cachePath,
		logger:    logger,
	}
}

// Init loads the catalog into the index if that has not happened yet. It
// is safe to call again after a failure.
func (s *Service) Init(ctx context.Context) error {
	return s.ensureLoaded(ctx)
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	start := time.Now()
	stations, built, err := s.catalog.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	source := "cache"
	if built {
		source = "remote"
	}
	if err := s.repo.ReplaceAll(ctx, stations, source); err != nil {
		return fmt.Errorf("index catalog: %w", err)
	}
	indexed, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count indexed stations: %w", err)
	}
	s.loaded = true

	s.logger.Info("station index loaded",
		"stations", indexed,
		"source", source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if built {
		s.notify(ctx, len(stations))
	}
	return nil
}

// Refresh rebuilds the catalog from the remote feeds and reloads the index.
// On failure the previous index stays in service.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stations, err := s.catalog.Build(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh catalog: %w", err)
	}
	if err := s.repo.ReplaceAll(ctx, stations, "remote"); err != nil {
		return 0, fmt.Errorf("index catalog: %w", err)
	}
	s.loaded = true

	s.logger.Info("station catalog refreshed", "stations", len(stations))
	s.notify(ctx, len(stations))
	return len(stations), nil
}

func (s *Service) notify(ctx context.Context, n int) {
	if s.notifier == nil {
		return
	}
	event := mqtt.CatalogRefreshed{Stations: n, BuiltAt: time.Now().UTC(), CachePath: s.cachePath}
	if err := s.notifier.PublishCatalogRefreshed(ctx, event); err != nil {
		s.logger.Warn("catalog refresh notification failed", "error", err)
	}
}

// Search returns stations within q.RadiusKm of the query point whose year
// coverage contains the requested range, nearest first. The limit applies
// after filtering.
func (s *Service) Search(ctx context.Context, q types.SearchQuery) ([]types.Match, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	candidates, err := s.repo.SearchCandidates(ctx, q.StartYear, q.EndYear)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	return rank(candidates, q), nil
}

// FindByName returns stations whose name contains substring, ignoring case.
func (s *Service) FindByName(ctx context.Context, substring string) ([]types.Station, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	stations, err := s.repo.FindByName(ctx, substring)
	if err != nil {
		return nil, fmt.Errorf("find stations by name: %w", err)
	}
	return stations, nil
}

// Status reports the last index load without triggering one.
func (s *Service) Status(ctx context.Context) (*repository.LoadInfo, error) {
	return s.repo.LastLoad(ctx)
}

func validateQuery(q types.SearchQuery) error {
	switch {
	case math.IsNaN(q.Latitude) || q.Latitude < -90 || q.Latitude > 90:
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidQuery, q.Latitude)
	case math.IsNaN(q.Longitude) || q.Longitude < -180 || q.Longitude > 180:
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidQuery, q.Longitude)
	case math.IsNaN(q.RadiusKm) || q.RadiusKm < 0:
		return fmt.Errorf("%w: radius must be >= 0", ErrInvalidQuery)
	case q.Limit != nil && *q.Limit < 0:
		return fmt.Errorf("%w: selection must be >= 0", ErrInvalidQuery)
	case q.StartYear != nil && q.EndYear != nil && *q.StartYear > *q.EndYear:
		return fmt.Errorf("%w: start year %d after end year %d", ErrInvalidQuery, *q.StartYear, *q.EndYear)
	}
	return nil
}

// rank computes distances, drops stations beyond the radius, sorts nearest
// first with ties broken by id, and applies the limit.
func rank(candidates []types.Station, q types.SearchQuery) []types.Match {
	out := make([]types.Match, 0)
	for _, st := range candidates {
		if !st.HasCoordinates() {
			continue
		}
		d := geo.HaversineDistance(q.Latitude, q.Longitude, *st.Latitude, *st.Longitude)
		if d > q.RadiusKm {
			continue
		}
		out = append(out, types.Match{Station: st, DistanceKm: d})
	}
	slices.SortStableFunc(out, func(a, b types.Match) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit != nil && *q.Limit < len(out) {
		out = out[:*q.Limit]
	}
	return out
}
