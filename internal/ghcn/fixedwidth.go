package ghcn

import (
	"strconv"
	"strings"
)

// field returns the trimmed bytes [start, end) of line, clipped to its length.
func field(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

func floatField(line string, start, end int) *float64 {
	s := field(line, start, end)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func intField(line string, start, end int) *int {
	s := field(line, start, end)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
