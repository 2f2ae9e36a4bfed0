package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghcnd-server/internal/modules/stations/types"
)

//go:embed sql/delete-stations.sql
var deleteStationsSQL string

//go:embed sql/insert-station.sql
var insertStationSQL string

//go:embed sql/upsert-catalog-meta.sql
var upsertCatalogMetaSQL string

//go:embed sql/get-catalog-meta.sql
var getCatalogMetaSQL string

//go:embed sql/get-search-candidates.sql
var getSearchCandidatesSQL string

//go:embed sql/find-stations-by-name.sql
var findStationsByNameSQL string

//go:embed sql/count-stations.sql
var countStationsSQL string

// LoadInfo describes the most recent ReplaceAll.
type LoadInfo struct {
	Source   string    `json:"source"`
	Stations int       `json:"stations"`
	LoadedAt time.Time `json:"loadedAt"`
}

type StationRepository interface {
	// ReplaceAll swaps the indexed catalog for stations in one transaction.
	ReplaceAll(ctx context.Context, stations []types.Station, source string) error
	// SearchCandidates returns stations with coordinates whose year coverage
	// contains [startYear, endYear], in catalog order. Nil bounds do not restrict.
	SearchCandidates(ctx context.Context, startYear, endYear *int) ([]types.Station, error)
	FindByName(ctx context.Context, substring string) ([]types.Station, error)
	Count(ctx context.Context) (int, error)
	// LastLoad returns nil when nothing has been loaded yet.
	LastLoad(ctx context.Context) (*LoadInfo, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) StationRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ReplaceAll(ctx context.Context, stations []types.Station, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteStationsSQL); err != nil {
		return fmt.Errorf("clear stations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStationSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("close insert station stmt", "error", err)
		}
	}()

	for i, s := range stations {
		if _, err := stmt.ExecContext(ctx, s.ID, i, s.Latitude, s.Longitude, s.Name, s.FirstYear, s.LastYear); err != nil {
			return fmt.Errorf("insert station %s: %w", s.ID, err)
		}
	}

	loadedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, upsertCatalogMetaSQL, source, len(stations), loadedAt); err != nil {
		return fmt.Errorf("record catalog load: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *repositoryImpl) SearchCandidates(ctx context.Context, startYear, endYear *int) ([]types.Station, error) {
	rows, err := r.db.QueryContext(ctx, getSearchCandidatesSQL, startYear, endYear)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close search candidate rows", "error", err)
		}
	}()
	return scanStations(rows)
}

func (r *repositoryImpl) FindByName(ctx context.Context, substring string) ([]types.Station, error) {
	rows, err := r.db.QueryContext(ctx, findStationsByNameSQL, substring)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close station name rows", "error", err)
		}
	}()
	return scanStations(rows)
}

func (r *repositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countStationsSQL).Scan(&n)
	return n, err
}

func (r *repositoryImpl) LastLoad(ctx context.Context) (*LoadInfo, error) {
	var (
		info     LoadInfo
		loadedAt string
	)
	err := r.db.QueryRowContext(ctx, getCatalogMetaSQL).Scan(&info.Source, &info.Stations, &loadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse loaded_at %q: %w", loadedAt, err)
	}
	return &info, nil
}

func scanStations(rows *sql.Rows) ([]types.Station, error) {
	var out []types.Station
	for rows.Next() {
		var (
			s         types.Station
			lat, lon  sql.NullFloat64
			name      sql.NullString
			first, lt sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &lat, &lon, &name, &first, &lt); err != nil {
			return nil, err
		}
		if lat.Valid {
			s.Latitude = &lat.Float64
		}
		if lon.Valid {
			s.Longitude = &lon.Float64
		}
		if name.Valid {
			s.Name = &name.String
		}
		if first.Valid {
			v := int(first.Int64)
			s.FirstYear = &v
		}
		if lt.Valid {
			v := int(lt.Int64)
			s.LastYear = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
