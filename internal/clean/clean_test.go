package clean

import (
	"testing"
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
)

var base = time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

func secondsOf(points []gpx.Point) []int {
	out := make([]int, len(points))
	for i, pt := range points {
		if pt.HasTime() {
			out[i] = int(pt.Time.Sub(base) / time.Second)
		} else {
			out[i] = -1
		}
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func trackAt(secs ...int) *gpx.GPX {
	points := make([]gpx.Point, len(secs))
	for i, s := range secs {
		if s < 0 {
			points[i] = gpx.Point{Lat: 46.0, Lon: 7.0}
			continue
		}
		points[i] = gpx.NewPoint(46.0+float64(i)*0.0001, 7.0, base.Add(time.Duration(s)*time.Second))
	}
	return &gpx.GPX{Tracks: []gpx.Track{{Segments: []gpx.TrackSegment{{Points: points}}}}}
}

func TestThin(t *testing.T) {
	cases := []struct {
		name     string
		secs     []int
		interval time.Duration
		want     []int
	}{
		{name: "keeps spaced points", secs: []int{0, 1, 2, 5, 6, 10, 11}, interval: 5 * time.Second, want: []int{0, 5, 10, 11}},
		{name: "always keeps ends", secs: []int{0, 1}, interval: time.Hour, want: []int{0, 1}},
		{name: "single point", secs: []int{0}, interval: time.Hour, want: []int{0}},
		{name: "untimed interior kept", secs: []int{0, -1, 1, 3}, interval: 2 * time.Second, want: []int{0, -1, 3}},
		{name: "zero interval keeps everything", secs: []int{0, 1, 2, 3}, interval: 0, want: []int{0, 1, 2, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := trackAt(tc.secs...)
			out := Thin(doc, tc.interval)
			got := secondsOf(out.Tracks[0].Segments[0].Points)
			if !equalInts(got, tc.want) {
				t.Fatalf("Thin() = %v, want %v", got, tc.want)
			}
			if len(doc.Tracks[0].Segments[0].Points) != len(tc.secs) {
				t.Fatalf("input modified")
			}
		})
	}
}

func TestTrimPrivacyZone(t *testing.T) {
	home := Zone{Lat: 50.0, Lon: 14.0, Radius: 100}
	inside := func(sec int) gpx.Point {
		return gpx.NewPoint(50.0, 14.0+float64(sec)*0.00001, base.Add(time.Duration(sec)*time.Second))
	}
	outside := func(sec int) gpx.Point {
		return gpx.NewPoint(50.01, 14.0, base.Add(time.Duration(sec)*time.Second))
	}

	doc := &gpx.GPX{Tracks: []gpx.Track{
		{Name: "first", Segments: []gpx.TrackSegment{
			{Points: []gpx.Point{inside(0), inside(1)}},
			{Points: []gpx.Point{inside(2), outside(3), inside(4), outside(5)}},
		}},
		{Name: "second", Segments: []gpx.TrackSegment{
			{Points: []gpx.Point{outside(6), inside(7)}},
			{Points: []gpx.Point{inside(8)}},
		}},
	}}

	out, ok := TrimPrivacyZone(doc, home)
	if !ok {
		t.Fatalf("expected tracks to remain")
	}
	if len(out.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(out.Tracks))
	}
	if len(out.Tracks[0].Segments) != 1 || len(out.Tracks[1].Segments) != 1 {
		t.Fatalf("expected emptied segments to be dropped, got %+v", out.Tracks)
	}
	if got := secondsOf(out.Tracks[0].Segments[0].Points); !equalInts(got, []int{3, 4, 5}) {
		t.Fatalf("first track = %v, interior zone visit must stay", got)
	}
	if got := secondsOf(out.Tracks[1].Segments[0].Points); !equalInts(got, []int{6}) {
		t.Fatalf("second track = %v", got)
	}
	if out.Tracks[1].Name != "second" {
		t.Fatalf("track metadata lost")
	}

	all := &gpx.GPX{Tracks: []gpx.Track{{Segments: []gpx.TrackSegment{{Points: []gpx.Point{inside(0), inside(1)}}}}}}
	if _, ok := TrimPrivacyZone(all, home); ok {
		t.Fatalf("expected nothing to remain")
	}
}

func TestClean(t *testing.T) {
	doc := trackAt(0, 1, 2, 3, 4, 5, 6)

	result, err := Clean(doc, Config{MinInterval: 3 * time.Second})
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if result.GPX == nil {
		t.Fatalf("Clean removed all points")
	}
	if result.Stats.OriginalPoints != 7 || result.Stats.FinalPoints != 3 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
	if result.Stats.ThinRemoved != 4 || result.Stats.PointsRemoved != 4 {
		t.Fatalf("unexpected removal counts %+v", result.Stats)
	}

	zone := Zone{Lat: 46.0, Lon: 7.0, Radius: 1e7}
	result, err = Clean(doc, Config{PrivacyZones: []Zone{zone}})
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if result.GPX != nil || result.Stats.PrivacyRemoved != 7 {
		t.Fatalf("expected everything to be removed, got %+v", result.Stats)
	}
}
