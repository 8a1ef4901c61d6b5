package source

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/tormoder/fit"

	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
)

// DecodeFIT converts a FIT activity into a GPX document with one track and
// one segment per lap. A record without a position reuses the last known
// one; records sharing a timestamp are merged into a single point.
func DecodeFIT(r io.Reader) (*gpx.GPX, error) {
	file, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}

	activity, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit file is not an activity: %w", err)
	}

	doc := &gpx.GPX{
		Version: "1.1",
		Creator: creatorOf(file),
		Time:    file.FileId.TimeCreated,
	}

	track := gpx.Track{}
	if len(activity.Sessions) > 0 && activity.Sessions[0] != nil {
		track.Type = sportName(activity.Sessions[0].Sport)
	}

	lapEnds := make([]int64, 0, len(activity.Laps))
	for _, lap := range activity.Laps {
		if lap != nil && !lap.Timestamp.IsZero() {
			lapEnds = append(lapEnds, lap.Timestamp.UnixNano())
		}
	}
	sort.Slice(lapEnds, func(i, j int) bool { return lapEnds[i] < lapEnds[j] })

	var (
		segment          gpx.TrackSegment
		lap              int
		lastLat, lastLon = math.NaN(), math.NaN()
	)
	flush := func() {
		if len(segment.Points) > 0 {
			track.Segments = append(track.Segments, segment)
		}
		segment = gpx.TrackSegment{}
	}

	for _, rec := range activity.Records {
		if rec == nil || rec.Timestamp.IsZero() {
			continue
		}
		for lap < len(lapEnds) && rec.Timestamp.UnixNano() > lapEnds[lap] {
			flush()
			lap++
		}

		if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
			lastLat = rec.PositionLat.Degrees()
			lastLon = rec.PositionLong.Degrees()
		}
		if math.IsNaN(lastLat) || math.IsNaN(lastLon) {
			continue
		}

		pt := gpx.NewPoint(lastLat, geo.NormalizeLon(lastLon), rec.Timestamp.UTC())
		if n := len(segment.Points); n > 0 && segment.Points[n-1].Time.Equal(pt.Time) {
			// a later record for the same instant refines the previous one
			prev := segment.Points[n-1]
			pt.Elevation, pt.HasElevation = prev.Elevation, prev.HasElevation
			segment.Points = segment.Points[:n-1]
		}
		if ele, ok := altitude(rec); ok {
			pt = pt.WithElevation(ele)
		}
		segment.Points = append(segment.Points, pt)
	}
	flush()

	if len(track.Segments) > 0 {
		doc.Tracks = []gpx.Track{track}
	}
	return doc, nil
}

func altitude(rec *fit.RecordMsg) (float64, bool) {
	if v := rec.GetEnhancedAltitudeScaled(); !math.IsNaN(v) {
		return v, true
	}
	if v := rec.GetAltitudeScaled(); !math.IsNaN(v) {
		return v, true
	}
	return 0, false
}

func creatorOf(file *fit.File) string {
	manufacturer := file.FileId.Manufacturer.String()
	if manufacturer == "" || strings.HasPrefix(manufacturer, "Manufacturer(") {
		return ""
	}
	return strings.TrimPrefix(manufacturer, "Manufacturer")
}

func sportName(s fit.Sport) string {
	name := strings.TrimPrefix(s.String(), "Sport")
	if name == "" || strings.HasPrefix(name, "(") || strings.EqualFold(name, "Invalid") {
		return ""
	}
	return strings.ToLower(name)
}
