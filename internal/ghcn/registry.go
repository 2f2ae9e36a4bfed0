package ghcn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"
)

// Byte ranges of ghcnd-stations.txt.
const (
	registryIDStart, registryIDEnd     = 0, 11
	registryLatStart, registryLatEnd   = 12, 20
	registryLonStart, registryLonEnd   = 21, 30
	registryNameStart, registryNameEnd = 41, 71
)

// RegistryEntry is one line of the station registry.
type RegistryEntry struct {
	ID        string
	Latitude  *float64
	Longitude *float64
	Name      string
}

// FetchRegistry downloads and parses the station registry feed.
func (c *Client) FetchRegistry(ctx context.Context) ([]RegistryEntry, error) {
	start := time.Now()
	body, err := c.get(ctx, c.stationsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch registry: %w: %w", ErrSourceUnavailable, err)
	}
	defer closeBody(body, c.logger, c.stationsURL)

	entries, err := ParseRegistry(body)
	if err != nil {
		return nil, fmt.Errorf("fetch registry: %w: %w", ErrSourceUnavailable, err)
	}
	c.logger.Info("registry fetched",
		"url", c.stationsURL,
		"stations", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return entries, nil
}

// ParseRegistry reads registry lines from r. Blank lines are skipped;
// coordinates that do not parse are left nil.
func ParseRegistry(r io.Reader) ([]RegistryEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var out []RegistryEntry
	for sc.Scan() {
		line := sc.Text()
		id := field(line, registryIDStart, registryIDEnd)
		if id == "" {
			continue
		}
		out = append(out, RegistryEntry{
			ID:        id,
			Latitude:  floatField(line, registryLatStart, registryLatEnd),
			Longitude: floatField(line, registryLonStart, registryLonEnd),
			Name:      field(line, registryNameStart, registryNameEnd),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return out, nil
}
