// Package geo holds the spherical helpers shared by the merge, clean and
// find packages. Everything here works on plain degrees so it has no
// dependency on the track model.
package geo

import "math"

// EarthRadius is the mean earth radius in meters used by every distance check.
const EarthRadius = 6371000.0

// DistanceMeters returns the haversine distance between two coordinates.
// NaN inputs yield NaN.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// WithinRadius reports whether the two coordinates are at most radius meters
// apart. Any NaN makes the comparison false.
func WithinRadius(lat1, lon1, lat2, lon2, radius float64) bool {
	return DistanceMeters(lat1, lon1, lat2, lon2) <= radius
}

// NormalizeLon maps a longitude into [-180, 180).
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
