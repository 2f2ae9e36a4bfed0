// Package aggregate buckets daily temperature observations by year, month,
// day or meteorological season and pivots the means into a wide table.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/modules/weather/types"
)

var (
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
	ErrInvalidDate            = errors.New("invalid date")
)

// DateLayout is the accepted form of range bounds.
const DateLayout = "2006-01-02"

// ParseGranularity accepts year, month, day and season.
func ParseGranularity(s string) (types.Granularity, error) {
	for _, g := range types.Granularities {
		if string(g) == s {
			return g, nil
		}
	}
	allowed := make([]string, len(types.Granularities))
	for i, g := range types.Granularities {
		allowed[i] = string(g)
	}
	return "", fmt.Errorf("%w %q (allowed: %s)", ErrUnsupportedGranularity, s, strings.Join(allowed, ", "))
}

// DateRange is an inclusive filter. It is open when either bound is unset.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsOpen() bool {
	return r.Start.IsZero() || r.End.IsZero()
}

// ParseRange validates both bounds. Empty strings leave the bound unset.
func ParseRange(start, end string) (DateRange, error) {
	var (
		r   DateRange
		err error
	)
	if start != "" {
		if r.Start, err = time.Parse(DateLayout, start); err != nil {
			return DateRange{}, fmt.Errorf("%w: start %q (expected YYYY-MM-DD)", ErrInvalidDate, start)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(DateLayout, end); err != nil {
			return DateRange{}, fmt.Errorf("%w: end %q (expected YYYY-MM-DD)", ErrInvalidDate, end)
		}
	}
	return r, nil
}

// FilterRange keeps observations dated within r, both ends inclusive. An
// open range returns series unchanged.
func FilterRange(series []ghcn.Observation, r DateRange) []ghcn.Observation {
	if r.IsOpen() {
		return series
	}
	out := make([]ghcn.Observation, 0, len(series))
	for _, o := range series {
		if o.Date.Before(r.Start) || o.Date.After(r.End) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ClassifySeason labels d as YYYY-<n><season>. Spring runs Mar 21 to Jun 20,
// summer Jun 21 to Sep 22, autumn Sep 23 to Dec 20. December winter days
// belong to the following year's winter.
func ClassifySeason(d time.Time) string {
	year := d.Year()
	md := int(d.Month())*100 + d.Day()

	var season string
	switch {
	case md >= 321 && md <= 620:
		season = "2spring"
	case md >= 621 && md <= 922:
		season = "3summer"
	case md >= 923 && md <= 1220:
		season = "4autumn"
	default:
		season = "1winter"
		if d.Month() == time.December {
			year++
		}
	}
	return fmt.Sprintf("%04d-%s", year, season)
}

// Label returns the bucket label of d for granularity g.
func Label(d time.Time, g types.Granularity) (string, error) {
	switch g {
	case types.Year:
		return d.Format("2006"), nil
	case types.Month:
		return d.Format("2006-01"), nil
	case types.Day:
		return d.Format(DateLayout), nil
	case types.Season:
		return ClassifySeason(d), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedGranularity, g)
	}
}

type bucketKey struct {
	label   string
	element ghcn.Element
}

type sum struct {
	total float64
	n     int
}

// Aggregate groups series by bucket label and reading type and returns the
// arithmetic mean of each group, ordered by label then element.
func Aggregate(series []ghcn.Observation, g types.Granularity) ([]types.Bucket, error) {
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}

	sums := make(map[bucketKey]*sum)
	for _, o := range series {
		label, err := Label(o.Date, g)
		if err != nil {
			return nil, err
		}
		k := bucketKey{label: label, element: o.Element}
		s, ok := sums[k]
		if !ok {
			s = &sum{}
			sums[k] = s
		}
		s.total += o.Value
		s.n++
	}

	out := make([]types.Bucket, 0, len(sums))
	for k, s := range sums {
		out = append(out, types.Bucket{Label: k.label, Element: k.element, Mean: s.total / float64(s.n), Count: s.n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Element < out[j].Element
	})
	return out, nil
}

// Reshape pivots buckets into one row per label with TMAX and TMIN columns,
// sorted by label.
func Reshape(buckets []types.Bucket) []types.Row {
	index := make(map[string]int)
	out := make([]types.Row, 0)
	for _, b := range buckets {
		i, ok := index[b.Label]
		if !ok {
			i = len(out)
			index[b.Label] = i
			out = append(out, types.Row{Date: b.Label})
		}
		mean := b.Mean
		switch b.Element {
		case ghcn.TMax:
			out[i].TMax = &mean
		case ghcn.TMin:
			out[i].TMin = &mean
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
