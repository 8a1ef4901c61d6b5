package find

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/planbiir/gtrack/internal/gpx"
)

// ErrNoFoundTime is returned by collectors that report the found time when
// no FindPointFilter ran before them.
var ErrNoFoundTime = errors.New("found time missing, --find-point filter required")

// Collector receives the recordings that passed every filter.
// CollectUnordered may run concurrently for different files; CollectOrdered
// is called from a single goroutine in input order; Finish is called once.
type Collector interface {
	CollectUnordered(ctx context.Context, fd *FileData, doc *gpx.GPX) error
	CollectOrdered(fd *FileData) error
	Finish(w io.Writer) error
}

// PrintIDAndFoundTime prints "id<TAB>time" for every match.
type PrintIDAndFoundTime struct {
	Layout string

	lines []string
}

func (c *PrintIDAndFoundTime) CollectUnordered(context.Context, *FileData, *gpx.GPX) error {
	return nil
}

func (c *PrintIDAndFoundTime) CollectOrdered(fd *FileData) error {
	if !fd.Found {
		return ErrNoFoundTime
	}
	c.lines = append(c.lines, fmt.Sprintf("%s\t%s", fd.ID, fd.FoundTime.Format(c.Layout)))
	return nil
}

func (c *PrintIDAndFoundTime) Finish(w io.Writer) error {
	for _, line := range c.lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// GroupFoundTime counts matches per formatted found time. Groups of at most
// five also list their ids.
type GroupFoundTime struct {
	Layout string

	groups map[string][]string
}

const maxListedIDs = 5

func (c *GroupFoundTime) CollectUnordered(context.Context, *FileData, *gpx.GPX) error {
	return nil
}

func (c *GroupFoundTime) CollectOrdered(fd *FileData) error {
	if !fd.Found {
		return ErrNoFoundTime
	}
	if c.groups == nil {
		c.groups = make(map[string][]string)
	}
	key := fd.FoundTime.Format(c.Layout)
	c.groups[key] = append(c.groups[key], fd.ID)
	return nil
}

func (c *GroupFoundTime) Finish(w io.Writer) error {
	keys := make([]string, 0, len(c.groups))
	for k := range c.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		ids := c.groups[k]
		suffix := ""
		if len(ids) <= maxListedIDs {
			suffix = "\t" + strings.Join(ids, "\t")
		}
		if _, err := fmt.Fprintf(w, "%s\t%d%s\n", k, len(ids), suffix); err != nil {
			return err
		}
	}
	return nil
}

// ExportGPX writes every match to Dir/<id>.gpx.
type ExportGPX struct {
	Dir string
}

func (c *ExportGPX) CollectUnordered(_ context.Context, fd *FileData, doc *gpx.GPX) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return doc.Write(filepath.Join(c.Dir, fd.ID+".gpx"))
}

func (c *ExportGPX) CollectOrdered(*FileData) error { return nil }
func (c *ExportGPX) Finish(io.Writer) error         { return nil }

// ExportGeoJSON writes every match to Dir/<id>.geojson as one LineString
// feature per segment.
type ExportGeoJSON struct {
	Dir string
}

func (c *ExportGeoJSON) CollectUnordered(_ context.Context, fd *FileData, doc *gpx.GPX) error {
	fc := SegmentsFeatureCollection(doc)
	for _, f := range fc.Features {
		f.Properties["id"] = fd.ID
		f.Properties["name"] = fd.Name
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Dir, fd.ID+".geojson"), data, 0o644)
}

func (c *ExportGeoJSON) CollectOrdered(*FileData) error { return nil }
func (c *ExportGeoJSON) Finish(io.Writer) error         { return nil }

// SegmentsFeatureCollection converts every segment with at least one point
// into a LineString feature carrying the track name and type.
func SegmentsFeatureCollection(doc *gpx.GPX) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for ti, track := range doc.Tracks {
		for si, segment := range track.Segments {
			if len(segment.Points) == 0 {
				continue
			}
			line := make(orb.LineString, 0, len(segment.Points))
			for _, pt := range segment.Points {
				line = append(line, orb.Point{pt.Lon, pt.Lat})
			}
			f := geojson.NewFeature(line)
			f.Properties["track"] = ti
			f.Properties["segment"] = si
			if track.Name != "" {
				f.Properties["track_name"] = track.Name
			}
			if track.Type != "" {
				f.Properties["type"] = track.Type
			}
			if iv, ok := segment.Interval(); ok {
				f.Properties["start"] = iv.Start.UTC().Format("2006-01-02T15:04:05Z07:00")
				f.Properties["end"] = iv.End.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			fc.Append(f)
		}
	}
	return fc
}
