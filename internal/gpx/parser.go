package gpx

import (
	"fmt"
	"io"
	"os"
	"time"

	gogpx "github.com/tkrajina/gpxgo/gpx"

	"github.com/planbiir/gtrack/internal/geo"
)

const defaultCreator = "gtrack"

// Parse reads and parses a GPX file, preserving extensions
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader parses GPX from an io.Reader
func ParseReader(r io.Reader) (*GPX, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GPX: %w", err)
	}

	doc, err := gogpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	return fromDocument(doc), nil
}

// Write saves GPX data to a file
func (g *GPX) Write(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := g.WriteToWriter(file); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// WriteToWriter writes GPX 1.1 data to an io.Writer
func (g *GPX) WriteToWriter(w io.Writer) error {
	data, err := g.toDocument().ToXml(gogpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write GPX: %w", err)
	}

	return nil
}

func fromDocument(doc *gogpx.GPX) *GPX {
	out := &GPX{
		Version:     doc.Version,
		Creator:     doc.Creator,
		Name:        doc.Name,
		Description: doc.Description,
		Extensions:  doc.Extensions,
	}
	if out.Version == "" {
		out.Version = "1.1"
	}
	if out.Creator == "" {
		out.Creator = defaultCreator
	}
	if doc.Time != nil {
		out.Time = *doc.Time
	}

	out.Tracks = make([]Track, 0, len(doc.Tracks))
	for _, track := range doc.Tracks {
		segments := make([]TrackSegment, 0, len(track.Segments))
		for _, segment := range track.Segments {
			points := make([]Point, 0, len(segment.Points))
			for _, pt := range segment.Points {
				points = append(points, fromDocumentPoint(pt))
			}
			segments = append(segments, TrackSegment{
				Points:     points,
				Extensions: segment.Extensions,
			})
		}
		out.Tracks = append(out.Tracks, Track{
			Name:        track.Name,
			Description: track.Description,
			Type:        track.Type,
			Segments:    segments,
			Extensions:  track.Extensions,
		})
	}

	for _, wpt := range doc.Waypoints {
		out.Waypoints = append(out.Waypoints, fromDocumentPoint(wpt))
	}

	return out
}

func fromDocumentPoint(pt gogpx.GPXPoint) Point {
	p := Point{
		Lat:        pt.Latitude,
		Lon:        geo.NormalizeLon(pt.Longitude),
		Time:       pt.Timestamp,
		Extensions: pt.Extensions,
	}
	if pt.Elevation.NotNull() {
		p.Elevation = pt.Elevation.Value()
		p.HasElevation = true
	}
	return p
}

func (g *GPX) toDocument() *gogpx.GPX {
	doc := &gogpx.GPX{
		Version:     "1.1",
		Creator:     g.Creator,
		Name:        g.Name,
		Description: g.Description,
		Extensions:  g.Extensions,
	}
	if doc.Creator == "" {
		doc.Creator = defaultCreator
	}
	if !g.Time.IsZero() {
		t := g.Time
		doc.Time = &t
	}

	for _, track := range g.Tracks {
		docTrack := gogpx.GPXTrack{
			Name:        track.Name,
			Description: track.Description,
			Type:        track.Type,
			Extensions:  track.Extensions,
		}
		for _, segment := range track.Segments {
			docSegment := gogpx.GPXTrackSegment{Extensions: segment.Extensions}
			for _, pt := range segment.Points {
				docSegment.Points = append(docSegment.Points, toDocumentPoint(pt))
			}
			docTrack.Segments = append(docTrack.Segments, docSegment)
		}
		doc.Tracks = append(doc.Tracks, docTrack)
	}

	for _, wpt := range g.Waypoints {
		doc.Waypoints = append(doc.Waypoints, toDocumentPoint(wpt))
	}

	return doc
}

func toDocumentPoint(p Point) gogpx.GPXPoint {
	pt := gogpx.GPXPoint{
		Point: gogpx.Point{
			Latitude:  p.Lat,
			Longitude: p.Lon,
		},
		Timestamp:  p.Time,
		Extensions: p.Extensions,
	}
	if p.HasElevation {
		pt.Elevation = *gogpx.NewNullableFloat64(p.Elevation)
	}
	return pt
}

// FlattenPoints returns all points from all tracks and segments in order
func (g *GPX) FlattenPoints() []Point {
	var points []Point

	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}

	return points
}

// Stats returns basic statistics about the GPX data. Distance is in km and
// only accumulates within segments.
func (g *GPX) Stats() (pointCount int, trackCount int, segmentCount int, duration time.Duration, distance float64) {
	trackCount = len(g.Tracks)

	var first, last time.Time
	for _, track := range g.Tracks {
		segmentCount += len(track.Segments)
		for _, segment := range track.Segments {
			pointCount += len(segment.Points)
			for i, pt := range segment.Points {
				if pt.HasTime() {
					if first.IsZero() {
						first = pt.Time
					}
					last = pt.Time
				}
				if i > 0 {
					prev := segment.Points[i-1]
					distance += geo.DistanceMeters(prev.Lat, prev.Lon, pt.Lat, pt.Lon) / 1000
				}
			}
		}
	}

	if !first.IsZero() {
		duration = last.Sub(first)
	}

	return
}
