// Package find searches a collection of recordings with a chain of filters
// and hands the matching ones to collectors.
package find

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/planbiir/gtrack/internal/clean"
	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/source"
)

// FileData carries one recording through the pipeline together with what
// the filters learned about it.
type FileData struct {
	source.File

	// FoundTime is the local time of the point matched by a FindPointFilter.
	FoundTime time.Time
	Found     bool
}

// Filter decides whether a recording is kept. A filter may also return a
// transformed document that replaces the original for the rest of the chain.
type Filter interface {
	Test(fd *FileData, doc *gpx.GPX) (bool, *gpx.GPX)
}

// SinceFilter keeps recordings whose first timestamp is at or after Since.
type SinceFilter struct {
	Since time.Time
}

func (f SinceFilter) Test(_ *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	first, ok := doc.FirstTime()
	return ok && !first.Before(f.Since), doc
}

// TillFilter keeps recordings whose first timestamp is before Till.
type TillFilter struct {
	Till time.Time
}

func (f TillFilter) Test(_ *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	first, ok := doc.FirstTime()
	return ok && first.Before(f.Till), doc
}

// FindPointFilter keeps recordings passing within radius of any target and
// records when that happened. Leading points within SkipDistance of the
// first point are ignored so a search does not trigger on the start.
type FindPointFilter struct {
	Targets      []clean.Zone
	SkipDistance float64
	// Location for FoundTime, time.Local when nil.
	Location *time.Location
}

func (f FindPointFilter) Test(fd *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	t, ok := FindPoint(doc, f.Targets, f.SkipDistance)
	if !ok {
		return false, doc
	}

	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	fd.FoundTime = t.In(loc)
	fd.Found = true
	return true, doc
}

// FindPoint returns the time of the first timestamped point lying within
// any target, after skipping the stationary start.
func FindPoint(doc *gpx.GPX, targets []clean.Zone, skipDistance float64) (time.Time, bool) {
	var timed []gpx.Point
	for _, pt := range doc.FlattenPoints() {
		if pt.HasTime() {
			timed = append(timed, pt)
		}
	}
	if len(timed) == 0 {
		return time.Time{}, false
	}

	start := 0
	if skipDistance > 0 {
		first := timed[0]
		for start < len(timed) && geo.WithinRadius(timed[start].Lat, timed[start].Lon, first.Lat, first.Lon, skipDistance) {
			start++
		}
	}

	for _, pt := range timed[start:] {
		for _, target := range targets {
			if target.Contains(pt) {
				return pt.Time, true
			}
		}
	}
	return time.Time{}, false
}

// DismissZoneFilter keeps recordings that never enter any of the zones.
type DismissZoneFilter struct {
	Zones []clean.Zone
}

func (f DismissZoneFilter) Test(_ *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	for _, pt := range doc.FlattenPoints() {
		for _, zone := range f.Zones {
			if zone.Contains(pt) {
				return false, doc
			}
		}
	}
	return true, doc
}

// PrivacyZoneFilter strips the zone from the start and end of the
// recording and drops recordings that are left empty.
type PrivacyZoneFilter struct {
	Zone clean.Zone
}

func (f PrivacyZoneFilter) Test(_ *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	trimmed, ok := clean.TrimPrivacyZone(doc, f.Zone)
	if !ok {
		return false, doc
	}
	return true, trimmed
}

// ThinFilter reduces the sampling density; it never rejects.
type ThinFilter struct {
	Interval time.Duration
}

func (f ThinFilter) Test(_ *FileData, doc *gpx.GPX) (bool, *gpx.GPX) {
	return true, clean.Thin(doc, f.Interval)
}

// ParseZones parses "lat,lon,radius[:lat,lon,radius...]".
func ParseZones(s string) ([]clean.Zone, error) {
	var zones []clean.Zone
	for _, part := range strings.Split(s, ":") {
		zone, err := ParseZone(part)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// ParseZone parses a single "lat,lon,radius" triple.
func ParseZone(s string) (clean.Zone, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return clean.Zone{}, fmt.Errorf("expected lat,lon,radius, got %q", s)
	}

	var values [3]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return clean.Zone{}, fmt.Errorf("invalid number %q in %q", field, s)
		}
		values[i] = v
	}
	if values[2] < 0 {
		return clean.Zone{}, fmt.Errorf("negative radius in %q", s)
	}

	return clean.Zone{Lat: values[0], Lon: geo.NormalizeLon(values[1]), Radius: values[2]}, nil
}
