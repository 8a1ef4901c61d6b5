package merge

import (
	"errors"
	"time"

	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/series"
)

// GapFillConfig controls how recording pauses are filled from other sources.
type GapFillConfig struct {
	// GapThreshold defines the minimum pause between two consecutive points
	// of a segment that will be filled. If zero, DefaultGapFillConfig().GapThreshold is used.
	GapThreshold time.Duration

	// MaxDeviationMeters limits how far an inserted point may be from both
	// points surrounding the gap. Set to a negative value to disable the
	// guard. A zero value means "use the default".
	MaxDeviationMeters float64
}

// GapFillStats reports what happened during gap filling.
type GapFillStats struct {
	GapsDetected   int
	GapsFilled     int
	InsertedPoints int
}

// DefaultGapFillConfig returns the recommended configuration.
func DefaultGapFillConfig() GapFillConfig {
	return GapFillConfig{
		GapThreshold:       2 * time.Minute,
		MaxDeviationMeters: 60,
	}
}

// FillGaps inserts points of fill into every pause of primary longer than the
// threshold. Only points strictly inside a pause are used, so nothing is
// added before the first or after the last point of a segment.
func FillGaps(primary *gpx.GPX, fill series.Series, cfg GapFillConfig) (*gpx.GPX, GapFillStats, error) {
	if primary == nil {
		return nil, GapFillStats{}, errors.New("primary track is nil")
	}

	defaults := DefaultGapFillConfig()
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = defaults.GapThreshold
	}
	if cfg.MaxDeviationMeters == 0 {
		cfg.MaxDeviationMeters = defaults.MaxDeviationMeters
	}

	var stats GapFillStats
	tracks := make([]gpx.Track, len(primary.Tracks))
	for ti, track := range primary.Tracks {
		tracks[ti] = track
		tracks[ti].Segments = make([]gpx.TrackSegment, len(track.Segments))
		for si, segment := range track.Segments {
			tracks[ti].Segments[si] = gpx.TrackSegment{
				Points:     fillSegment(segment.Points, fill, cfg, &stats),
				Extensions: segment.Extensions,
			}
		}
	}

	out := *primary
	out.Tracks = tracks
	return &out, stats, nil
}

func fillSegment(points []gpx.Point, fill series.Series, cfg GapFillConfig, stats *GapFillStats) []gpx.Point {
	merged := make([]gpx.Point, 0, len(points))

	for i, current := range points {
		merged = append(merged, current)

		if i == len(points)-1 {
			continue
		}
		next := points[i+1]
		if !current.HasTime() || !next.HasTime() {
			continue
		}
		if next.Time.Sub(current.Time) <= cfg.GapThreshold {
			continue
		}

		stats.GapsDetected++

		inserted := 0
		entry, ok := fill.Ceiling(current.Time.Add(time.Nanosecond))
		for ok && entry.Point.Time.Before(next.Time) {
			candidate := entry.Point
			entry, ok = fill.Ceiling(candidate.Time.Add(time.Nanosecond))

			if merged[len(merged)-1].SamePosition(candidate) {
				continue
			}
			if cfg.MaxDeviationMeters > 0 &&
				distance(current, candidate) > cfg.MaxDeviationMeters &&
				distance(candidate, next) > cfg.MaxDeviationMeters {
				continue
			}

			merged = append(merged, candidate)
			inserted++
		}

		if inserted > 0 {
			stats.GapsFilled++
			stats.InsertedPoints += inserted
		}
	}

	return merged
}

func distance(a, b gpx.Point) float64 {
	return geo.DistanceMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}
