package clean

import (
	"time"

	"github.com/planbiir/gtrack/internal/gpx"
)

// Zone is a circle around a coordinate, radius in meters.
type Zone struct {
	Lat    float64
	Lon    float64
	Radius float64
}

// Contains reports whether p lies within the zone.
func (z Zone) Contains(p gpx.Point) bool {
	return withinRadius(p, z)
}

// Config holds cleaning parameters
type Config struct {
	// MinInterval is the minimum spacing between retained interior points.
	// Zero disables density reduction.
	MinInterval time.Duration

	// PrivacyZones are stripped from the start and end of the recording.
	PrivacyZones []Zone
}

// DefaultConfig returns a configuration that changes nothing.
func DefaultConfig() Config {
	return Config{}
}

// Stats represents cleaning results and metrics
type Stats struct {
	OriginalPoints int `json:"original_points"`

	PrivacyRemoved int `json:"privacy_removed_points"`
	ThinRemoved    int `json:"thin_removed_points"`

	FinalPoints   int     `json:"final_points"`
	PointsRemoved int     `json:"points_removed"`
	PointsPercent float64 `json:"points_removed_percent"`

	ProcessingTime time.Duration `json:"processing_time_ms"`
}

// CleaningResult contains the cleaned document and statistics. GPX is nil
// when nothing is left.
type CleaningResult struct {
	GPX   *gpx.GPX
	Stats Stats
}
