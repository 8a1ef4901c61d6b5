package gpx

import (
	"time"

	gogpx "github.com/tkrajina/gpxgo/gpx"
)

// Point represents a GPS track point. A zero Time means the point carries no
// timestamp. Longitude is kept in [-180, 180).
type Point struct {
	Lat          float64
	Lon          float64
	Elevation    float64
	HasElevation bool
	Time         time.Time

	// Extensions (Garmin, Strava, etc.) are carried through untouched
	Extensions gogpx.Extension
}

// NewPoint builds a timestamped point without elevation.
func NewPoint(lat, lon float64, t time.Time) Point {
	return Point{Lat: lat, Lon: lon, Time: t}
}

// HasTime reports whether the point carries a timestamp.
func (p Point) HasTime() bool {
	return !p.Time.IsZero()
}

// WithPosition returns a copy of p moved to lat/lon.
func (p Point) WithPosition(lat, lon float64) Point {
	p.Lat = lat
	p.Lon = lon
	return p
}

// WithElevation returns a copy of p with the given elevation.
func (p Point) WithElevation(ele float64) Point {
	p.Elevation = ele
	p.HasElevation = true
	return p
}

// WithoutElevation returns a copy of p with the elevation cleared.
func (p Point) WithoutElevation() Point {
	p.Elevation = 0
	p.HasElevation = false
	return p
}

// WithTime returns a copy of p with the given timestamp.
func (p Point) WithTime(t time.Time) Point {
	p.Time = t
	return p
}

// SamePosition reports whether both points have identical coordinates.
func (p Point) SamePosition(o Point) bool {
	return p.Lat == o.Lat && p.Lon == o.Lon
}

// Track represents a GPX track with segments
type Track struct {
	Name        string
	Description string
	Type        string
	Segments    []TrackSegment
	Extensions  gogpx.Extension
}

// TrackSegment represents a track segment
type TrackSegment struct {
	Points     []Point
	Extensions gogpx.Extension
}

// GPX represents the parts of a GPX document the tools read and write.
type GPX struct {
	Version     string
	Creator     string
	Name        string
	Description string
	Time        time.Time

	Tracks    []Track
	Waypoints []Point

	Extensions gogpx.Extension
}

// Interval is a closed time range [Start, End].
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the closed interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Interval returns the range between the first and last timestamped points.
// ok is false when the segment has no timestamps at all.
func (s TrackSegment) Interval() (iv Interval, ok bool) {
	for _, pt := range s.Points {
		if !pt.HasTime() {
			continue
		}
		if !ok {
			iv = Interval{Start: pt.Time, End: pt.Time}
			ok = true
			continue
		}
		if pt.Time.Before(iv.Start) {
			iv.Start = pt.Time
		}
		if pt.Time.After(iv.End) {
			iv.End = pt.Time
		}
	}
	return iv, ok
}

// FirstTime returns the timestamp of the first timestamped point in document
// order.
func (g *GPX) FirstTime() (time.Time, bool) {
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			for _, pt := range segment.Points {
				if pt.HasTime() {
					return pt.Time, true
				}
			}
		}
	}
	return time.Time{}, false
}

// WithTracks returns a shallow copy of g carrying the given tracks. Metadata
// and waypoints of g are kept.
func (g *GPX) WithTracks(tracks []Track) *GPX {
	out := *g
	out.Tracks = tracks
	return &out
}
