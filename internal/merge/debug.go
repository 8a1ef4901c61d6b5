package merge

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/planbiir/gtrack/internal/gpx"
)

// DebugGPX returns the merged position series as waypoints, each named after
// the input it was taken from.
func DebugGPX(src Sources) *gpx.GPX {
	doc := &gpx.GPX{
		Version: "1.1",
		Name:    "merged positions",
	}
	for _, e := range src.Positions.Entries() {
		doc.Waypoints = append(doc.Waypoints, gpx.Point{
			Lat:          e.Point.Lat,
			Lon:          e.Point.Lon,
			Elevation:    e.Point.Elevation,
			HasElevation: e.Point.HasElevation,
			Time:         e.Point.Time,
		})
	}
	return doc
}

// DebugGeoJSON returns the merged position series as Point features with the
// source index, timestamp and elevation as properties.
func DebugGeoJSON(src Sources) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range src.Positions.Entries() {
		f := geojson.NewFeature(orb.Point{e.Point.Lon, e.Point.Lat})
		f.Properties["source"] = e.Source
		f.Properties["time"] = e.Point.Time.UTC().Format(time.RFC3339Nano)
		if e.Point.HasElevation {
			f.Properties["ele"] = e.Point.Elevation
		}
		fc.Append(f)
	}
	return fc
}

// SourceSummary describes one input series for diagnostics.
type SourceSummary struct {
	Source    int
	Points    int
	Elevation int
	Start     time.Time
	End       time.Time
	// Merged counts entries of the merged position series taken from this
	// input.
	Merged int
}

func (s SourceSummary) String() string {
	if s.Points == 0 {
		return fmt.Sprintf("source %d: empty", s.Source)
	}
	return fmt.Sprintf("source %d: %d points (%d with elevation) %s - %s, %d in merged series",
		s.Source, s.Points, s.Elevation,
		s.Start.UTC().Format(time.RFC3339), s.End.UTC().Format(time.RFC3339), s.Merged)
}

// Summaries returns one summary per input in input order.
func Summaries(src Sources) []SourceSummary {
	merged := make(map[int]int)
	for _, e := range src.Positions.Entries() {
		merged[e.Source]++
	}

	out := make([]SourceSummary, len(src.PerSource))
	for i, s := range src.PerSource {
		sum := SourceSummary{Source: i, Points: s.Len(), Elevation: s.WithElevation().Len(), Merged: merged[i]}
		if s.Len() > 0 {
			sum.Start = s.At(0).Point.Time
			sum.End = s.At(s.Len() - 1).Point.Time
		}
		out[i] = sum
	}
	return out
}
