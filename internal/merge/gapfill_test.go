package merge

import (
	"testing"
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/series"
)

func mustSeries(t *testing.T, points ...gpx.Point) series.Series {
	t.Helper()
	s, err := series.Build(points, 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s
}

func TestFillGapsFillsPause(t *testing.T) {
	primary := buildSingleTrack([]gpx.Point{
		{Lat: 46.0, Lon: 7.0, Time: base},
		{Lat: 46.0001, Lon: 7.0001, Time: base.Add(30 * time.Second)},
		{Lat: 46.0005, Lon: 7.0005, Time: base.Add(10 * time.Minute)},
	})

	fill := mustSeries(t,
		gpx.Point{Lat: 46.0002, Lon: 7.0002, Time: base.Add(6 * time.Minute)},
		gpx.Point{Lat: 46.0003, Lon: 7.0003, Time: base.Add(7 * time.Minute)},
	)

	merged, stats, err := FillGaps(primary, fill, GapFillConfig{
		GapThreshold:       time.Minute,
		MaxDeviationMeters: 100,
	})
	if err != nil {
		t.Fatalf("FillGaps failed: %v", err)
	}

	mergedPoints := merged.FlattenPoints()
	if len(mergedPoints) != 5 {
		t.Fatalf("expected 5 points after fill, got %d", len(mergedPoints))
	}
	if stats.GapsDetected != 1 || stats.GapsFilled != 1 || stats.InsertedPoints != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !mergedPoints[2].Time.After(mergedPoints[1].Time) || !mergedPoints[3].Time.Before(mergedPoints[4].Time) {
		t.Fatalf("inserted points are not ordered between surrounding points")
	}
	if len(primary.FlattenPoints()) != 3 {
		t.Fatalf("primary must not be modified")
	}
}

func TestFillGapsSkipsTails(t *testing.T) {
	primary := buildSingleTrack([]gpx.Point{
		{Lat: 46.0, Lon: 7.0, Time: base},
		{Lat: 46.0001, Lon: 7.0001, Time: base.Add(30 * time.Second)},
		{Lat: 46.0002, Lon: 7.0002, Time: base.Add(60 * time.Second)},
	})

	fill := mustSeries(t,
		gpx.Point{Lat: 45.9, Lon: 6.9, Time: base.Add(-2 * time.Minute)}, // before start
		gpx.Point{Lat: 46.1, Lon: 7.1, Time: base.Add(10 * time.Minute)}, // after end
	)

	merged, stats, err := FillGaps(primary, fill, GapFillConfig{GapThreshold: 10 * time.Second})
	if err != nil {
		t.Fatalf("FillGaps failed: %v", err)
	}
	if len(merged.FlattenPoints()) != 3 || stats.InsertedPoints != 0 {
		t.Fatalf("expected no additional points, got %+v", stats)
	}
}

func TestFillGapsDeviationGuard(t *testing.T) {
	primary := buildSingleTrack([]gpx.Point{
		{Lat: 46.0, Lon: 7.0, Time: base},
		{Lat: 46.0005, Lon: 7.0005, Time: base.Add(10 * time.Minute)},
	})

	fill := mustSeries(t,
		gpx.Point{Lat: 47.0, Lon: 8.0, Time: base.Add(5 * time.Minute)},
	)

	_, stats, err := FillGaps(primary, fill, DefaultGapFillConfig())
	if err != nil {
		t.Fatalf("FillGaps failed: %v", err)
	}
	if stats.GapsDetected != 1 || stats.GapsFilled != 0 {
		t.Fatalf("expected the distant point to be rejected, got %+v", stats)
	}

	if _, _, err := FillGaps(nil, fill, DefaultGapFillConfig()); err == nil {
		t.Fatalf("expected error for nil primary")
	}
}
