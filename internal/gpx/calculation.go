package gpx

import (
	"time"

	"github.com/planbiir/gtrack/internal/geo"
)

// Interpolate estimates the point at time at between before and after.
// Latitude is linear, longitude follows the shortest way around the
// antimeridian and elevation is only produced when both bounds carry one.
// The result keeps the non-positional attributes of before.
func Interpolate(before, after Point, at time.Time) Point {
	span := after.Time.Sub(before.Time)
	if span == 0 {
		span = 1
	}
	ratio := float64(at.Sub(before.Time)) / float64(span)

	lat := before.Lat + (after.Lat-before.Lat)*ratio
	dLon := geo.NormalizeLon(after.Lon - before.Lon)
	lon := geo.NormalizeLon(before.Lon + dLon*ratio)

	out := before.WithPosition(lat, lon).WithTime(at)
	if before.HasElevation && after.HasElevation {
		out = out.WithElevation(before.Elevation + (after.Elevation-before.Elevation)*ratio)
	} else {
		out = out.WithoutElevation()
	}

	return out
}
