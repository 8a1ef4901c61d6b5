package clean

import (
	"errors"
	"time"

	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
)

// Clean strips the configured privacy zones and then thins every segment.
func Clean(doc *gpx.GPX, config Config) (CleaningResult, error) {
	if doc == nil {
		return CleaningResult{}, errors.New("document is nil")
	}

	startTime := time.Now()
	original := countPoints(doc)

	current := doc
	for _, zone := range config.PrivacyZones {
		trimmed, ok := TrimPrivacyZone(current, zone)
		if !ok {
			current = nil
			break
		}
		current = trimmed
	}

	afterPrivacy := 0
	if current != nil {
		afterPrivacy = countPoints(current)
		if config.MinInterval > 0 {
			current = Thin(current, config.MinInterval)
		}
	}

	final := 0
	if current != nil {
		final = countPoints(current)
	}

	stats := Stats{
		OriginalPoints: original,
		PrivacyRemoved: original - afterPrivacy,
		ThinRemoved:    afterPrivacy - final,
		FinalPoints:    final,
		PointsRemoved:  original - final,
		ProcessingTime: time.Since(startTime),
	}
	if original > 0 {
		stats.PointsPercent = float64(original-final) / float64(original) * 100
	}

	return CleaningResult{GPX: current, Stats: stats}, nil
}

// Thin reduces the sampling density of every segment. The first and last
// point of a segment are always kept; an interior point is kept only when at
// least interval has passed since the last kept point. Interior points
// without a timestamp are kept.
func Thin(doc *gpx.GPX, interval time.Duration) *gpx.GPX {
	tracks := make([]gpx.Track, len(doc.Tracks))
	for ti, track := range doc.Tracks {
		tracks[ti] = track
		tracks[ti].Segments = make([]gpx.TrackSegment, len(track.Segments))
		for si, segment := range track.Segments {
			tracks[ti].Segments[si] = gpx.TrackSegment{
				Points:     thinPoints(segment.Points, interval),
				Extensions: segment.Extensions,
			}
		}
	}

	out := *doc
	out.Tracks = tracks
	return &out
}

func thinPoints(points []gpx.Point, interval time.Duration) []gpx.Point {
	if len(points) <= 2 {
		return append([]gpx.Point(nil), points...)
	}

	kept := make([]gpx.Point, 0, len(points))
	kept = append(kept, points[0])
	last := points[0].Time

	for _, pt := range points[1 : len(points)-1] {
		if !pt.HasTime() {
			kept = append(kept, pt)
			continue
		}
		if last.IsZero() || pt.Time.Sub(last) >= interval {
			kept = append(kept, pt)
			last = pt.Time
		}
	}

	return append(kept, points[len(points)-1])
}

// TrimPrivacyZone removes the leading and trailing runs of points inside
// zone. The scan crosses segment and track boundaries; emptied segments and
// tracks are dropped. ok is false when no track is left.
func TrimPrivacyZone(doc *gpx.GPX, zone Zone) (*gpx.GPX, bool) {
	forward := trimLeading(doc.Tracks, zone)
	backward := reverseTracks(trimLeading(reverseTracks(forward), zone))

	out := *doc
	out.Tracks = backward
	return &out, len(backward) > 0
}

// trimLeading drops points inside zone until the first point outside it.
func trimLeading(tracks []gpx.Track, zone Zone) []gpx.Track {
	started := false
	out := make([]gpx.Track, 0, len(tracks))
	for _, track := range tracks {
		var segments []gpx.TrackSegment
		for _, segment := range track.Segments {
			points := segment.Points
			if !started {
				i := 0
				for i < len(points) && zone.Contains(points[i]) {
					i++
				}
				if i < len(points) {
					started = true
				}
				points = points[i:]
			}
			if len(points) == 0 {
				continue
			}
			segments = append(segments, gpx.TrackSegment{
				Points:     append([]gpx.Point(nil), points...),
				Extensions: segment.Extensions,
			})
		}
		if len(segments) == 0 {
			continue
		}
		track.Segments = segments
		out = append(out, track)
	}
	return out
}

// reverseTracks reverses tracks, segments and points.
func reverseTracks(tracks []gpx.Track) []gpx.Track {
	out := make([]gpx.Track, len(tracks))
	for i, track := range tracks {
		segments := make([]gpx.TrackSegment, len(track.Segments))
		for j, segment := range track.Segments {
			points := make([]gpx.Point, len(segment.Points))
			for k, pt := range segment.Points {
				points[len(points)-1-k] = pt
			}
			segments[len(segments)-1-j] = gpx.TrackSegment{Points: points, Extensions: segment.Extensions}
		}
		track.Segments = segments
		out[len(out)-1-i] = track
	}
	return out
}

func countPoints(doc *gpx.GPX) int {
	n := 0
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			n += len(segment.Points)
		}
	}
	return n
}

func withinRadius(p gpx.Point, z Zone) bool {
	return geo.WithinRadius(p.Lat, p.Lon, z.Lat, z.Lon, z.Radius)
}
