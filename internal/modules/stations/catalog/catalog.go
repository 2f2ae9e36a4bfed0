// Package catalog merges the GHCN registry and inventory feeds into the
// station catalog and keeps it in a flat CSV cache file.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/stations/types"
)

// Source provides the two feeds the catalog is built from.
type Source interface {
	FetchRegistry(ctx context.Context) ([]ghcn.RegistryEntry, error)
	FetchInventory(ctx context.Context) ([]ghcn.InventoryEntry, error)
}

// Merge outer-joins registry and inventory on station id. Registry order is
// kept; ids found only in the inventory follow in inventory order. Only the
// first inventory row per id is used.
func Merge(registry []ghcn.RegistryEntry, inventory []ghcn.InventoryEntry) []types.Station {
	inv := make(map[string]ghcn.InventoryEntry, len(inventory))
	for _, e := range inventory {
		if _, ok := inv[e.ID]; !ok {
			inv[e.ID] = e
		}
	}

	out := make([]types.Station, 0, len(registry)+len(inventory)/4)
	seen := make(map[string]bool, len(registry))
	for _, r := range registry {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		s := types.Station{ID: r.ID, Latitude: r.Latitude, Longitude: r.Longitude}
		if r.Name != "" {
			name := r.Name
			s.Name = &name
		}
		if e, ok := inv[r.ID]; ok {
			s.FirstYear, s.LastYear = e.FirstYear, e.LastYear
		}
		out = append(out, s)
	}
	for _, e := range inventory {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, types.Station{ID: e.ID, FirstYear: e.FirstYear, LastYear: e.LastYear})
	}
	return out
}

// Builder fetches both feeds, merges them and writes the cache file.
type Builder struct {
	source Source
	store  *Store
	logger *slog.Logger
}

func NewBuilder(source Source, store *Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{source: source, store: store, logger: logger}
}

// Build replaces the cache file with a freshly merged catalog and returns it.
func (b *Builder) Build(ctx context.Context) ([]types.Station, error) {
	start := time.Now()

	registry, err := b.source.FetchRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	inventory, err := b.source.FetchInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	stations := Merge(registry, inventory)
	if err := b.store.Write(stations); err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	b.logger.Info("catalog built",
		"stations", len(stations),
		"registry", len(registry),
		"inventory", len(inventory),
		"path", b.store.Path(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return stations, nil
}

// Load reads the cache file, building it first on a cache miss. built
// reports whether the remote feeds were fetched.
func (b *Builder) Load(ctx context.Context) (stations []types.Station, built bool, err error) {
	stations, err = b.store.Read()
	if err == nil {
		return stations, false, nil
	}
	if !IsCacheMiss(err) {
		return nil, false, err
	}
	b.logger.Info("catalog cache miss, rebuilding", "path", b.store.Path(), "reason", err)

	if _, err := b.Build(ctx); err != nil {
		return nil, false, err
	}
	stations, err = b.store.Read()
	if err != nil {
		return nil, true, fmt.Errorf("read rebuilt catalog: %w", err)
	}
	return stations, true, nil
}
