package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"ghcnd-server/internal/modules/stations/types"
)

// ErrCacheMiss is returned by Store.Read when the cache file is absent or
// cannot be parsed.
var ErrCacheMiss = errors.New("catalog cache miss")

var header = []string{"id", "latitude", "longitude", "name", "first_year", "last_year"}

// IsCacheMiss reports whether err means the cache must be rebuilt.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Store is the flat CSV file holding the catalog between runs.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Read parses the cache file. Missing values come back as nil fields.
func (s *Store) Read() ([]types.Station, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheMiss, err)
	}
	defer func() { _ = f.Close() }()

	stations, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheMiss, s.path, err)
	}
	return stations, nil
}

// Write replaces the cache file atomically via a temp file in the same directory.
func (s *Store) Write(stations []types.Station) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := encode(tmp, stations); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func encode(w io.Writer, stations []types.Station) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, st := range stations {
		rec[0] = st.ID
		rec[1] = formatFloat(st.Latitude)
		rec[2] = formatFloat(st.Longitude)
		rec[3] = ""
		if st.Name != nil {
			rec[3] = *st.Name
		}
		rec[4] = formatInt(st.FirstYear)
		rec[5] = formatInt(st.LastYear)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decode(r io.Reader) ([]types.Station, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	first, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		if first[i] != col {
			return nil, fmt.Errorf("unexpected header %v", first)
		}
	}

	var out []types.Station
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		st := types.Station{ID: rec[0]}
		if st.Latitude, err = parseFloat(rec[1]); err != nil {
			return nil, fmt.Errorf("station %s latitude: %w", rec[0], err)
		}
		if st.Longitude, err = parseFloat(rec[2]); err != nil {
			return nil, fmt.Errorf("station %s longitude: %w", rec[0], err)
		}
		if rec[3] != "" {
			name := rec[3]
			st.Name = &name
		}
		if st.FirstYear, err = parseInt(rec[4]); err != nil {
			return nil, fmt.Errorf("station %s first_year: %w", rec[0], err)
		}
		if st.LastYear, err = parseInt(rec[5]); err != nil {
			return nil, fmt.Errorf("station %s last_year: %w", rec[0], err)
		}
		out = append(out, st)
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
