package merge

import (
	"errors"
	"sort"
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
)

// ConcatStats reports what happened to the offered segments.
type ConcatStats struct {
	SegmentsOffered  int
	SegmentsAccepted int
	SegmentsTrimmed  int
	SegmentsDropped  int
	UntimedSegments  int
}

// Concatenator collects track segments from several recordings so that no two
// accepted segments overlap in time. The first segment to claim a time range
// keeps it; later segments are trimmed around it or dropped.
type Concatenator struct {
	// timed holds accepted segments with timestamps ordered by interval end.
	timed []*acceptedSegment
	// all holds every accepted segment, untimed ones included.
	all   []*acceptedSegment
	seq   int
	stats ConcatStats
}

type acceptedSegment struct {
	key      time.Time
	seq      int
	interval gpx.Interval
	track    gpx.Track
	segment  gpx.TrackSegment
}

// NewConcatenator returns an empty concatenator.
func NewConcatenator() *Concatenator {
	return &Concatenator{}
}

// Stats returns the counters accumulated so far.
func (c *Concatenator) Stats() ConcatStats {
	return c.stats
}

// Add offers every segment of track in order.
func (c *Concatenator) Add(track gpx.Track) {
	var lastEnd time.Time
	for _, segment := range track.Segments {
		c.stats.SegmentsOffered++

		iv, ok := segment.Interval()
		if !ok {
			c.stats.UntimedSegments++
			c.accept(track, segment, gpx.Interval{}, lastEnd, false)
			continue
		}
		lastEnd = iv.End

		c.addTimed(track, segment, iv)
	}
}

// AddGPX offers every track of doc in order.
func (c *Concatenator) AddGPX(doc *gpx.GPX) {
	for _, track := range doc.Tracks {
		c.Add(track)
	}
}

func (c *Concatenator) addTimed(track gpx.Track, segment gpx.TrackSegment, iv gpx.Interval) {
	pending := segment
	trimmed := false
	acceptedHead := false

	for {
		conflict := c.firstConflict(iv)
		if conflict == nil {
			c.accept(track, pending, iv, iv.End, true)
			if trimmed {
				c.stats.SegmentsTrimmed++
			}
			return
		}

		startsBefore := !conflict.interval.Start.After(iv.Start)
		endsAfter := !conflict.interval.End.Before(iv.End)

		switch {
		case startsBefore && endsAfter:
			if acceptedHead {
				c.stats.SegmentsTrimmed++
			} else {
				c.stats.SegmentsDropped++
			}
			return

		case startsBefore:
			pending = pointsAfter(pending, conflict.interval.End)

		case endsAfter:
			head := pointsBefore(pending, conflict.interval.Start)
			if headIv, ok := head.Interval(); ok {
				c.accept(track, head, headIv, headIv.End, true)
				acceptedHead = true
			}
			if acceptedHead {
				c.stats.SegmentsTrimmed++
			} else {
				c.stats.SegmentsDropped++
			}
			return

		default:
			head := pointsBefore(pending, conflict.interval.Start)
			if headIv, ok := head.Interval(); ok {
				c.accept(track, head, headIv, headIv.End, true)
				acceptedHead = true
			}
			pending = pointsAfter(pending, conflict.interval.End)
		}

		trimmed = true
		next, ok := pending.Interval()
		if !ok {
			if acceptedHead {
				c.stats.SegmentsTrimmed++
			} else {
				c.stats.SegmentsDropped++
			}
			return
		}
		iv = next
	}
}

// firstConflict returns the earliest accepted segment overlapping iv.
func (c *Concatenator) firstConflict(iv gpx.Interval) *acceptedSegment {
	i := sort.Search(len(c.timed), func(i int) bool {
		return !c.timed[i].interval.End.Before(iv.Start)
	})
	if i == len(c.timed) {
		return nil
	}
	if c.timed[i].interval.Start.After(iv.End) {
		return nil
	}
	return c.timed[i]
}

func (c *Concatenator) accept(track gpx.Track, segment gpx.TrackSegment, iv gpx.Interval, key time.Time, timed bool) {
	entry := &acceptedSegment{
		key:      key,
		seq:      c.seq,
		interval: iv,
		track:    track,
		segment:  segment,
	}
	c.seq++
	c.stats.SegmentsAccepted++

	if timed {
		i := sort.Search(len(c.timed), func(i int) bool {
			return c.timed[i].interval.End.After(iv.End)
		})
		c.timed = append(c.timed, nil)
		copy(c.timed[i+1:], c.timed[i:])
		c.timed[i] = entry
	}
	c.all = append(c.all, entry)
}

// Tracks returns one track per accepted segment, ordered by end time.
// Untimed segments sort by the end of the timed segment preceding them in
// their source track.
func (c *Concatenator) Tracks() []gpx.Track {
	entries := make([]*acceptedSegment, len(c.all))
	copy(entries, c.all)
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].key.Equal(entries[j].key) {
			return entries[i].key.Before(entries[j].key)
		}
		return entries[i].seq < entries[j].seq
	})

	tracks := make([]gpx.Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, gpx.Track{
			Name:        e.track.Name,
			Description: e.track.Description,
			Type:        e.track.Type,
			Extensions:  e.track.Extensions,
			Segments:    []gpx.TrackSegment{e.segment},
		})
	}
	return tracks
}

// Concat merges the documents in order. Metadata is taken from the first one.
func Concat(docs []*gpx.GPX) (*gpx.GPX, ConcatStats, error) {
	if len(docs) == 0 {
		return nil, ConcatStats{}, errors.New("no input documents")
	}

	c := NewConcatenator()
	for _, doc := range docs {
		c.AddGPX(doc)
	}

	return docs[0].WithTracks(c.Tracks()), c.Stats(), nil
}

// pointsBefore keeps the timestamped points strictly before t.
func pointsBefore(segment gpx.TrackSegment, t time.Time) gpx.TrackSegment {
	return slicePoints(segment, func(pt gpx.Point) bool { return pt.Time.Before(t) })
}

// pointsAfter keeps the timestamped points strictly after t.
func pointsAfter(segment gpx.TrackSegment, t time.Time) gpx.TrackSegment {
	return slicePoints(segment, func(pt gpx.Point) bool { return pt.Time.After(t) })
}

func slicePoints(segment gpx.TrackSegment, keep func(gpx.Point) bool) gpx.TrackSegment {
	out := gpx.TrackSegment{Extensions: segment.Extensions}
	for _, pt := range segment.Points {
		if pt.HasTime() && keep(pt) {
			out.Points = append(out.Points, pt)
		}
	}
	return out
}
