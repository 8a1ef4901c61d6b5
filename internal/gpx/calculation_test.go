package gpx

import (
	"math"
	"testing"
	"time"
)

func TestInterpolate(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		before  Point
		after   Point
		at      time.Time
		wantLat float64
		wantLon float64
		wantEle float64
		hasEle  bool
	}{
		{
			name:    "midpoint",
			before:  NewPoint(0, 0, base).WithElevation(0),
			after:   NewPoint(4, 2, base.Add(2*time.Second)).WithElevation(8),
			at:      base.Add(time.Second),
			wantLat: 2, wantLon: 1, wantEle: 4, hasEle: true,
		},
		{
			name:    "antimeridian",
			before:  NewPoint(0, 170, base),
			after:   NewPoint(0, -170, base.Add(2*time.Second)),
			at:      base.Add(time.Second),
			wantLat: 0, wantLon: -180,
		},
		{
			name:    "antimeridian quarter",
			before:  NewPoint(0, 170, base),
			after:   NewPoint(0, -170, base.Add(4*time.Second)),
			at:      base.Add(time.Second),
			wantLat: 0, wantLon: 175,
		},
		{
			name:    "elevation on one side only",
			before:  NewPoint(0, 0, base).WithElevation(100),
			after:   NewPoint(2, 2, base.Add(2*time.Second)),
			at:      base.Add(time.Second),
			wantLat: 1, wantLon: 1,
		},
		{
			name:    "degenerate bounds",
			before:  NewPoint(3, 6, base).WithElevation(7),
			after:   NewPoint(3, 6, base).WithElevation(7),
			at:      base.Add(time.Minute),
			wantLat: 3, wantLon: 6, wantEle: 7, hasEle: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Interpolate(tc.before, tc.after, tc.at)
			if math.Abs(got.Lat-tc.wantLat) > 1e-9 || math.Abs(got.Lon-tc.wantLon) > 1e-9 {
				t.Fatalf("got (%f,%f), want (%f,%f)", got.Lat, got.Lon, tc.wantLat, tc.wantLon)
			}
			if got.HasElevation != tc.hasEle {
				t.Fatalf("elevation presence %v, want %v", got.HasElevation, tc.hasEle)
			}
			if tc.hasEle && math.Abs(got.Elevation-tc.wantEle) > 1e-9 {
				t.Fatalf("elevation %f, want %f", got.Elevation, tc.wantEle)
			}
			if !got.Time.Equal(tc.at) {
				t.Fatalf("time %v, want %v", got.Time, tc.at)
			}
		})
	}
}
