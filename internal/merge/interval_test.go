package merge

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/planbiir/gtrack/internal/gpx"
)

var base = time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

// timedTrack builds a single-segment track with one point per second value.
func timedTrack(name string, secs ...int) gpx.Track {
	points := make([]gpx.Point, 0, len(secs))
	for i, s := range secs {
		points = append(points, gpx.NewPoint(46.0+float64(i)*0.001, 7.0, at(s)))
	}
	return gpx.Track{Name: name, Type: "cycling", Segments: []gpx.TrackSegment{{Points: points}}}
}

// spans renders the accepted tracks as lists of second offsets.
func spans(tracks []gpx.Track) [][]int {
	out := make([][]int, 0, len(tracks))
	for _, tr := range tracks {
		var secs []int
		for _, seg := range tr.Segments {
			for _, pt := range seg.Points {
				if pt.HasTime() {
					secs = append(secs, int(pt.Time.Sub(base)/time.Second))
				} else {
					secs = append(secs, -1)
				}
			}
		}
		out = append(out, secs)
	}
	return out
}

func TestConcatenator(t *testing.T) {
	cases := []struct {
		name   string
		tracks []gpx.Track
		want   [][]int
	}{
		{
			name:   "overlap start",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 0, 4, 5, 6)},
			want:   [][]int{{0, 4}, {5, 15}},
		},
		{
			name:   "overlap end",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 14, 15, 16, 17, 20)},
			want:   [][]int{{5, 15}, {16, 17, 20}},
		},
		{
			name:   "inside",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 6, 14)},
			want:   [][]int{{5, 15}},
		},
		{
			name:   "overlap both",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 3, 4, 5, 13, 14, 15, 16, 17)},
			want:   [][]int{{3, 4}, {5, 15}, {16, 17}},
		},
		{
			name:   "sequential",
			tracks: []gpx.Track{timedTrack("a", 0, 4), timedTrack("b", 5, 15)},
			want:   [][]int{{0, 4}, {5, 15}},
		},
		{
			name:   "reverse",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 0, 4)},
			want:   [][]int{{0, 4}, {5, 15}},
		},
		{
			name: "spanning two accepted",
			tracks: []gpx.Track{
				timedTrack("a", 5, 10),
				timedTrack("b", 20, 25),
				timedTrack("c", 0, 3, 7, 12, 15, 22, 30),
			},
			want: [][]int{{0, 3}, {5, 10}, {12, 15}, {20, 25}, {30}},
		},
		{
			name:   "identical",
			tracks: []gpx.Track{timedTrack("a", 5, 15), timedTrack("b", 5, 15)},
			want:   [][]int{{5, 15}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConcatenator()
			for _, tr := range tc.tracks {
				c.Add(tr)
			}
			if diff := cmp.Diff(tc.want, spans(c.Tracks())); diff != "" {
				t.Fatalf("concat mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConcatenatorOrderDependence(t *testing.T) {
	a := timedTrack("a", 0, 10)
	b := timedTrack("b", 5, 15)

	first := NewConcatenator()
	first.Add(a)
	first.Add(b)

	second := NewConcatenator()
	second.Add(b)
	second.Add(a)

	if diff := cmp.Diff([][]int{{0, 10}, {15}}, spans(first.Tracks())); diff != "" {
		t.Fatalf("a first (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]int{{0}, {5, 15}}, spans(second.Tracks())); diff != "" {
		t.Fatalf("b first (-want +got):\n%s", diff)
	}
}

func TestConcatenatorDisjoint(t *testing.T) {
	c := NewConcatenator()
	for i := 0; i < 20; i++ {
		// overlapping windows shifted by 7 seconds
		c.Add(timedTrack("t", i*7, i*7+3, i*7+9, i*7+12))
	}

	tracks := c.Tracks()
	var prevEnd time.Time
	for i, tr := range tracks {
		iv, ok := tr.Segments[0].Interval()
		if !ok {
			t.Fatalf("track %d lost its timestamps", i)
		}
		if i > 0 && !iv.Start.After(prevEnd) {
			t.Fatalf("track %d starts at %v, not after previous end %v", i, iv.Start, prevEnd)
		}
		prevEnd = iv.End
	}
}

func TestConcatenatorUntimedSegments(t *testing.T) {
	track := timedTrack("a", 5, 15)
	track.Segments = append(track.Segments, gpx.TrackSegment{Points: []gpx.Point{{Lat: 1, Lon: 1}}})

	untimedOnly := gpx.Track{Name: "u", Segments: []gpx.TrackSegment{{Points: []gpx.Point{{Lat: 2, Lon: 2}}}}}

	c := NewConcatenator()
	c.Add(track)
	c.Add(timedTrack("b", 0, 2))
	c.Add(untimedOnly)

	got := spans(c.Tracks())
	want := [][]int{{-1}, {0, 2}, {5, 15}, {-1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("untimed ordering (-want +got):\n%s", diff)
	}

	stats := c.Stats()
	if stats.UntimedSegments != 2 {
		t.Fatalf("expected 2 untimed segments, got %d", stats.UntimedSegments)
	}
}

func TestConcatenatorDropsUntimedPointsWhenSlicing(t *testing.T) {
	b := timedTrack("b", 0, 4, 5, 6)
	b.Segments[0].Points = append(b.Segments[0].Points[:1],
		append([]gpx.Point{{Lat: 9, Lon: 9}}, b.Segments[0].Points[1:]...)...)

	c := NewConcatenator()
	c.Add(timedTrack("a", 5, 15))
	c.Add(b)

	if diff := cmp.Diff([][]int{{0, 4}, {5, 15}}, spans(c.Tracks())); diff != "" {
		t.Fatalf("slice mismatch (-want +got):\n%s", diff)
	}
}

func TestConcatCarriesTrackMetadata(t *testing.T) {
	first := &gpx.GPX{
		Name:      "first",
		Tracks:    []gpx.Track{timedTrack("morning", 5, 15)},
		Waypoints: []gpx.Point{{Lat: 50, Lon: 14}},
	}
	second := &gpx.GPX{
		Name:      "second",
		Tracks:    []gpx.Track{timedTrack("evening", 0, 4, 5, 6)},
		Waypoints: []gpx.Point{{Lat: 51, Lon: 15}},
	}

	out, stats, err := Concat([]*gpx.GPX{first, second})
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if out.Name != "first" {
		t.Fatalf("expected metadata from first document, got %q", out.Name)
	}
	if len(out.Waypoints) != 1 || out.Waypoints[0].Lat != 50 {
		t.Fatalf("expected waypoints of the first document, got %+v", out.Waypoints)
	}
	if len(out.Tracks) != 2 || out.Tracks[0].Name != "evening" || out.Tracks[1].Name != "morning" {
		t.Fatalf("unexpected tracks %+v", out.Tracks)
	}
	if out.Tracks[0].Type != "cycling" {
		t.Fatalf("expected track type to be carried, got %q", out.Tracks[0].Type)
	}
	if stats.SegmentsTrimmed != 1 || stats.SegmentsAccepted != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, _, err := Concat(nil); err == nil {
		t.Fatalf("expected error for no documents")
	}
}
