package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/stations/types"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }
func sp(v string) *string   { return &v }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	registry     []ghcn.RegistryEntry
	inventory    []ghcn.InventoryEntry
	err          error
	registryHits int
}

func (f *fakeSource) FetchRegistry(context.Context) ([]ghcn.RegistryEntry, error) {
	f.registryHits++
	return f.registry, f.err
}

func (f *fakeSource) FetchInventory(context.Context) ([]ghcn.InventoryEntry, error) {
	return f.inventory, f.err
}

func TestMerge(t *testing.T) {
	registry := []ghcn.RegistryEntry{
		{ID: "GME00102380", Latitude: fp(51.4042), Longitude: fp(6.9675), Name: "ESSEN-BREDENEY"},
		{ID: "GM000001474", Latitude: fp(51.2969), Longitude: fp(6.7686), Name: ""},
		{ID: "GME00102380", Latitude: fp(0), Longitude: fp(0), Name: "DUPLICATE"},
	}
	inventory := []ghcn.InventoryEntry{
		{ID: "GME00102380", Element: ghcn.TMax, FirstYear: ip(1934), LastYear: ip(2023)},
		{ID: "GME00102380", Element: ghcn.TMin, FirstYear: ip(1950), LastYear: ip(2000)},
		{ID: "USW00094728", Element: ghcn.TMax, FirstYear: ip(1869), LastYear: ip(2024)},
	}

	got := Merge(registry, inventory)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}

	essen := got[0]
	if essen.ID != "GME00102380" || essen.Name == nil || *essen.Name != "ESSEN-BREDENEY" {
		t.Errorf("first station = %+v", essen)
	}
	if essen.FirstYear == nil || *essen.FirstYear != 1934 || *essen.LastYear != 2023 {
		t.Errorf("years taken from first inventory row: got %v-%v", essen.FirstYear, essen.LastYear)
	}

	registryOnly := got[1]
	if registryOnly.Name != nil || registryOnly.FirstYear != nil || registryOnly.LastYear != nil {
		t.Errorf("registry-only station should have nil name and years: %+v", registryOnly)
	}

	inventoryOnly := got[2]
	if inventoryOnly.ID != "USW00094728" || inventoryOnly.HasCoordinates() || inventoryOnly.Name != nil {
		t.Errorf("inventory-only station = %+v", inventoryOnly)
	}
	if *inventoryOnly.FirstYear != 1869 {
		t.Errorf("inventory-only first year = %d", *inventoryOnly.FirstYear)
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Fatalf("Merge(nil, nil) = %v, want empty", got)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cache", "stations.csv"))
	in := []types.Station{
		{ID: "GME00102380", Latitude: fp(51.4042), Longitude: fp(6.9675), Name: sp("ESSEN, BREDENEY \"NORD\""), FirstYear: ip(1934), LastYear: ip(2023)},
		{ID: "USW00094728"},
	}
	if err := store.Write(in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	want := "id,latitude,longitude,name,first_year,last_year\n" +
		"GME00102380,51.4042,6.9675,\"ESSEN, BREDENEY \"\"NORD\"\"\",1934,2023\n" +
		"USW00094728,,,,,\n"
	if string(raw) != want {
		t.Errorf("file content:\n%s\nwant:\n%s", raw, want)
	}

	out, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if *out[0].Name != *in[0].Name || *out[0].Latitude != 51.4042 || *out[0].LastYear != 2023 {
		t.Errorf("first row = %+v", out[0])
	}
	if out[1].Name != nil || out[1].Latitude != nil || out[1].FirstYear != nil {
		t.Errorf("empty cells should read back as nil: %+v", out[1])
	}

	entries, _ := os.ReadDir(filepath.Dir(store.Path()))
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func TestStore_ReadCacheMiss(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file"},
		{name: "empty file", content: sp("")},
		{name: "wrong header", content: sp("station,lat,lon,name,from,to\n")},
		{name: "bad number", content: sp("id,latitude,longitude,name,first_year,last_year\nX,north,,,,\n")},
		{name: "short row", content: sp("id,latitude,longitude,name,first_year,last_year\nX,1\n")},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "c"+string(rune('a'+i))+".csv")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o600); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			_, err := NewStore(path).Read()
			if !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("Read() error = %v, want ErrCacheMiss", err)
			}
		})
	}
}

func TestBuilder_Load(t *testing.T) {
	src := &fakeSource{
		registry:  []ghcn.RegistryEntry{{ID: "GME00102380", Latitude: fp(51.4), Longitude: fp(6.9), Name: "ESSEN"}},
		inventory: []ghcn.InventoryEntry{{ID: "GME00102380", Element: ghcn.TMax, FirstYear: ip(1934), LastYear: ip(2023)}},
	}
	store := NewStore(filepath.Join(t.TempDir(), "stations.csv"))
	b := NewBuilder(src, store, quietLogger())

	stations, built, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !built || len(stations) != 1 || src.registryHits != 1 {
		t.Fatalf("first Load: built=%v stations=%d hits=%d", built, len(stations), src.registryHits)
	}

	stations, built, err = b.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if built || len(stations) != 1 || src.registryHits != 1 {
		t.Errorf("second Load should hit the cache: built=%v hits=%d", built, src.registryHits)
	}
}

func TestBuilder_BuildSourceUnavailable(t *testing.T) {
	src := &fakeSource{err: ghcn.ErrSourceUnavailable}
	path := filepath.Join(t.TempDir(), "stations.csv")
	b := NewBuilder(src, NewStore(path), quietLogger())

	_, _, err := b.Load(context.Background())
	if !errors.Is(err, ghcn.ErrSourceUnavailable) {
		t.Fatalf("Load error = %v, want ErrSourceUnavailable", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("cache file should not exist after failed build, stat err = %v", statErr)
	}
}

func TestBuilder_BuildOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.csv")
	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := &fakeSource{registry: []ghcn.RegistryEntry{{ID: "A1"}, {ID: "B2"}}}
	b := NewBuilder(src, NewStore(path), quietLogger())

	stations, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("stations = %d, want 2", len(stations))
	}
	got, err := NewStore(path).Read()
	if err != nil || len(got) != 2 {
		t.Fatalf("Read after Build = %d, %v", len(got), err)
	}
}
