package merge

import (
	"errors"
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
)

// CutStats reports how the segments were affected by a cut.
type CutStats struct {
	SegmentsKept    int
	SegmentsTrimmed int
	SegmentsSplit   int
	SegmentsRemoved int
}

// Cut removes the closed time range [start, end] from every segment of doc.
// A segment spanning the whole range is split in two. Segments without
// timestamps or outside the range are kept as they are; tracks left without
// segments are dropped.
func Cut(doc *gpx.GPX, start, end time.Time) (*gpx.GPX, CutStats, error) {
	if end.Before(start) {
		return nil, CutStats{}, errors.New("cut end is before start")
	}

	var stats CutStats
	tracks := make([]gpx.Track, 0, len(doc.Tracks))
	for _, track := range doc.Tracks {
		var segments []gpx.TrackSegment
		for _, segment := range track.Segments {
			segments = append(segments, cutSegment(segment, start, end, &stats)...)
		}
		if len(segments) == 0 {
			continue
		}
		track.Segments = segments
		tracks = append(tracks, track)
	}

	out := *doc
	out.Tracks = tracks
	return &out, stats, nil
}

func cutSegment(segment gpx.TrackSegment, start, end time.Time, stats *CutStats) []gpx.TrackSegment {
	iv, ok := segment.Interval()
	if !ok || iv.End.Before(start) || iv.Start.After(end) {
		stats.SegmentsKept++
		return []gpx.TrackSegment{segment}
	}

	cut := gpx.Interval{Start: start, End: end}
	coversStart := cut.Contains(iv.Start)
	coversEnd := cut.Contains(iv.End)

	switch {
	case coversStart && coversEnd:
		stats.SegmentsRemoved++
		return nil
	case coversStart:
		stats.SegmentsTrimmed++
		return nonEmpty(pointsAfter(segment, end))
	case coversEnd:
		stats.SegmentsTrimmed++
		return nonEmpty(pointsBefore(segment, start))
	default:
		stats.SegmentsSplit++
		return nonEmpty(pointsBefore(segment, start), pointsAfter(segment, end))
	}
}

func nonEmpty(segments ...gpx.TrackSegment) []gpx.TrackSegment {
	out := make([]gpx.TrackSegment, 0, len(segments))
	for _, s := range segments {
		if len(s.Points) > 0 {
			out = append(out, s)
		}
	}
	return out
}
