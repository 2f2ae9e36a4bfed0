package ghcn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"
)

// Byte ranges of ghcnd-inventory.txt.
const (
	inventoryIDStart, inventoryIDEnd           = 0, 11
	inventoryElementStart, inventoryElementEnd = 31, 35
	inventoryFirstStart, inventoryFirstEnd     = 36, 40
	inventoryLastStart, inventoryLastEnd       = 41, 45
)

// InventoryEntry is the year range of one temperature element at a station.
type InventoryEntry struct {
	ID        string
	Element   Element
	FirstYear *int
	LastYear  *int
}

// FetchInventory downloads and parses the inventory feed.
func (c *Client) FetchInventory(ctx context.Context) ([]InventoryEntry, error) {
	start := time.Now()
	body, err := c.get(ctx, c.inventoryURL)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w: %w", ErrSourceUnavailable, err)
	}
	defer closeBody(body, c.logger, c.inventoryURL)

	entries, err := ParseInventory(body)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w: %w", ErrSourceUnavailable, err)
	}
	c.logger.Info("inventory fetched",
		"url", c.inventoryURL,
		"stations", len(entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return entries, nil
}

// ParseInventory keeps TMAX/TMIN lines and returns the first one seen for
// each station, in feed order.
func ParseInventory(r io.Reader) ([]InventoryEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	seen := make(map[string]struct{})
	var out []InventoryEntry
	for sc.Scan() {
		line := sc.Text()
		id := field(line, inventoryIDStart, inventoryIDEnd)
		if id == "" {
			continue
		}
		el := Element(field(line, inventoryElementStart, inventoryElementEnd))
		if !el.IsTemperature() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, InventoryEntry{
			ID:        id,
			Element:   el,
			FirstYear: intField(line, inventoryFirstStart, inventoryFirstEnd),
			LastYear:  intField(line, inventoryLastStart, inventoryLastEnd),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return out, nil
}
