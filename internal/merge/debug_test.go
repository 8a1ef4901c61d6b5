package merge

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/planbiir/gtrack/internal/gpx"
)

func debugSources(t *testing.T) Sources {
	t.Helper()
	main := buildSingleTrack([]gpx.Point{
		waypoint(0, 0, 0, 0),
		waypoint(4, 1, 1, 1),
	})
	secondary := buildSingleTrack([]gpx.Point{
		waypoint(2, 5, 5, 5),
	})
	src, err := BuildSources([]*gpx.GPX{main, secondary, {}}, DefaultRetrackConfig())
	if err != nil {
		t.Fatalf("BuildSources failed: %v", err)
	}
	return src
}

func TestDebugGPX(t *testing.T) {
	doc := DebugGPX(debugSources(t))
	if len(doc.Waypoints) != 3 || len(doc.Tracks) != 0 {
		t.Fatalf("got %d waypoints and %d tracks", len(doc.Waypoints), len(doc.Tracks))
	}
	if doc.Waypoints[1].Lat != 5 || !doc.Waypoints[1].Time.Equal(at(2)) {
		t.Fatalf("unexpected middle waypoint %+v", doc.Waypoints[1])
	}

	var buf bytes.Buffer
	if err := doc.WriteToWriter(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "<wpt") {
		t.Fatalf("no waypoints in output:\n%s", buf.String())
	}
}

func TestDebugGeoJSON(t *testing.T) {
	data, err := DebugGeoJSON(debugSources(t)).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fc struct {
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Source int     `json:"source"`
				Ele    float64 `json:"ele"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(fc.Features) != 3 {
		t.Fatalf("got %d features, want 3", len(fc.Features))
	}
	got := []int{fc.Features[0].Properties.Source, fc.Features[1].Properties.Source, fc.Features[2].Properties.Source}
	if got[0] != 0 || got[1] != 1 || got[2] != 0 {
		t.Fatalf("sources %v, want [0 1 0]", got)
	}
	mid := fc.Features[1]
	if mid.Geometry.Type != "Point" || mid.Geometry.Coordinates[0] != 5 || mid.Properties.Ele != 5 {
		t.Fatalf("unexpected feature %+v", mid)
	}
}

func TestSummaries(t *testing.T) {
	sums := Summaries(debugSources(t))
	if len(sums) != 3 {
		t.Fatalf("got %d summaries", len(sums))
	}
	if sums[0].Points != 2 || sums[0].Merged != 2 || sums[1].Merged != 1 {
		t.Fatalf("unexpected summaries %+v", sums)
	}
	if sums[2].String() != "source 2: empty" {
		t.Fatalf("unexpected empty summary %q", sums[2].String())
	}
	if !strings.Contains(sums[1].String(), "1 points (1 with elevation)") {
		t.Fatalf("unexpected summary %q", sums[1].String())
	}
}
