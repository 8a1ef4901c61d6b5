// Package series provides time-indexed point sequences and the prioritized
// merge across several of them.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
)

var (
	// ErrDuplicateTimestamp is returned when one source carries two points
	// with the same timestamp.
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")

	// ErrEmptySource is returned together with an empty series when a source
	// has no timestamped points.
	ErrEmptySource = errors.New("source has no timestamped points")
)

// Entry is a point together with the index of the input it came from.
type Entry struct {
	Point  gpx.Point
	Source int
}

// Series is an immutable sequence of entries with strictly increasing
// timestamps.
type Series struct {
	entries []Entry
}

// Len returns the number of entries.
func (s Series) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the entries in time order.
func (s Series) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// At returns the i-th entry.
func (s Series) At(i int) Entry {
	return s.entries[i]
}

// Get returns the entry with exactly the timestamp t.
func (s Series) Get(t time.Time) (Entry, bool) {
	i := s.search(t)
	if i < len(s.entries) && s.entries[i].Point.Time.Equal(t) {
		return s.entries[i], true
	}
	return Entry{}, false
}

// Floor returns the latest entry at or before t.
func (s Series) Floor(t time.Time) (Entry, bool) {
	i := s.search(t)
	if i < len(s.entries) && s.entries[i].Point.Time.Equal(t) {
		return s.entries[i], true
	}
	if i == 0 {
		return Entry{}, false
	}
	return s.entries[i-1], true
}

// Ceiling returns the earliest entry at or after t.
func (s Series) Ceiling(t time.Time) (Entry, bool) {
	i := s.search(t)
	if i == len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i], true
}

// search returns the index of the first entry not before t.
func (s Series) search(t time.Time) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Point.Time.Before(t)
	})
}

// Filter returns the sub-series of entries accepted by keep.
func (s Series) Filter(keep func(Entry) bool) Series {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return Series{entries: out}
}

// WithElevation returns the sub-series of entries that carry elevation.
func (s Series) WithElevation() Series {
	return s.Filter(func(e Entry) bool { return e.Point.HasElevation })
}

// Build turns the points of one source into a series. Points without a
// timestamp are dropped, the rest are ordered by time and consecutive points
// with identical coordinates are collapsed to the first of the run.
func Build(points []gpx.Point, source int) (Series, error) {
	timed := make([]gpx.Point, 0, len(points))
	for _, pt := range points {
		if pt.HasTime() {
			timed = append(timed, pt)
		}
	}
	if len(timed) == 0 {
		return Series{}, fmt.Errorf("source %d: %w", source, ErrEmptySource)
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Time.Before(timed[j].Time)
	})

	entries := make([]Entry, 0, len(timed))
	for i, pt := range timed {
		if i > 0 && pt.Time.Equal(timed[i-1].Time) {
			return Series{}, fmt.Errorf("source %d at %s: %w", source, pt.Time.Format(time.RFC3339Nano), ErrDuplicateTimestamp)
		}
		if n := len(entries); n > 0 && entries[n-1].Point.SamePosition(pt) {
			continue
		}
		entries = append(entries, Entry{Point: pt, Source: source})
	}

	return Series{entries: entries}, nil
}

// BuildGPX builds the series of all points of a document, in document order
// across tracks and segments.
func BuildGPX(doc *gpx.GPX, source int) (Series, error) {
	return Build(doc.FlattenPoints(), source)
}

// Index builds a lookup series without collapsing positions. Points sharing
// a timestamp keep the first one seen instead of failing.
func Index(points []gpx.Point, source int) Series {
	timed := make([]gpx.Point, 0, len(points))
	for _, pt := range points {
		if pt.HasTime() {
			timed = append(timed, pt)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Time.Before(timed[j].Time)
	})

	entries := make([]Entry, 0, len(timed))
	for i, pt := range timed {
		if i > 0 && pt.Time.Equal(timed[i-1].Time) {
			continue
		}
		entries = append(entries, Entry{Point: pt, Source: source})
	}
	return Series{entries: entries}
}
