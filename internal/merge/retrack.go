package merge

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/series"
)

// RetrackConfig controls how positions and elevations are rebuilt.
type RetrackConfig struct {
	// PositionPriority lists source indices from most to least trusted for
	// latitude/longitude. Nil means source order.
	PositionPriority []int

	// ElevationPriority does the same for elevation. Nil means source order.
	ElevationPriority []int

	// ExtendEdges fills points before the first or after the last source
	// sample with the value of that single bound. When false such points are
	// left untouched.
	ExtendEdges bool

	// Workers bounds the number of segments processed concurrently. Zero
	// means "use the default".
	Workers int
}

// DefaultRetrackConfig returns the configuration used by the CLI.
func DefaultRetrackConfig() RetrackConfig {
	return RetrackConfig{
		Workers: runtime.NumCPU(),
	}
}

// RetrackStats reports how every timestamped point was resolved.
type RetrackStats struct {
	Points        int
	UntimedPoints int

	PositionExact        int
	PositionInterpolated int
	PositionUntouched    int

	ElevationExact        int
	ElevationInterpolated int
	ElevationUntouched    int

	// PositionSources counts exact position hits per source index.
	PositionSources map[int]int
}

func (s *RetrackStats) add(o RetrackStats) {
	s.Points += o.Points
	s.UntimedPoints += o.UntimedPoints
	s.PositionExact += o.PositionExact
	s.PositionInterpolated += o.PositionInterpolated
	s.PositionUntouched += o.PositionUntouched
	s.ElevationExact += o.ElevationExact
	s.ElevationInterpolated += o.ElevationInterpolated
	s.ElevationUntouched += o.ElevationUntouched
	if s.PositionSources == nil {
		s.PositionSources = make(map[int]int)
	}
	for k, v := range o.PositionSources {
		s.PositionSources[k] += v
	}
}

// Sources holds the merged series a retrack reads from.
type Sources struct {
	// PerSource keeps the collapsed series of every input, in input order.
	PerSource []series.Series
	// Empty lists inputs without any timestamped point.
	Empty []int

	Positions  series.Series
	Elevations series.Series
}

// BuildSources turns the input documents into the merged position and
// elevation series. An input without timestamps keeps its slot as an empty
// series so priority indices still line up; a duplicate timestamp in any
// input is an error.
func BuildSources(docs []*gpx.GPX, cfg RetrackConfig) (Sources, error) {
	if len(docs) == 0 {
		return Sources{}, errors.New("no sources")
	}

	posOrder := cfg.PositionPriority
	if posOrder == nil {
		posOrder = series.DefaultPriority(len(docs))
	}
	eleOrder := cfg.ElevationPriority
	if eleOrder == nil {
		eleOrder = series.DefaultPriority(len(docs))
	}
	if err := series.ValidatePriority(posOrder, len(docs)); err != nil {
		return Sources{}, fmt.Errorf("position priority: %w", err)
	}
	if err := series.ValidatePriority(eleOrder, len(docs)); err != nil {
		return Sources{}, fmt.Errorf("elevation priority: %w", err)
	}

	src := Sources{PerSource: make([]series.Series, len(docs))}
	elevations := make([]series.Series, len(docs))
	for i, doc := range docs {
		s, err := series.BuildGPX(doc, i)
		switch {
		case errors.Is(err, series.ErrEmptySource):
			src.Empty = append(src.Empty, i)
		case err != nil:
			return Sources{}, err
		}
		src.PerSource[i] = s
		elevations[i] = s.WithElevation()
	}

	var err error
	if src.Positions, err = series.MergePrioritized(src.PerSource, posOrder); err != nil {
		return Sources{}, err
	}
	if src.Elevations, err = series.MergePrioritized(elevations, eleOrder); err != nil {
		return Sources{}, err
	}

	return src, nil
}

// Resolution says how one attribute of a point was obtained.
type Resolution int

const (
	Untouched Resolution = iota
	Exact
	Interpolated
)

// RetrackPoint resolves position and elevation of p against the merged
// series. Points without a timestamp are returned unchanged.
func RetrackPoint(p gpx.Point, src Sources, extendEdges bool) (out gpx.Point, pos, ele Resolution, source int) {
	out = p
	source = -1
	if !p.HasTime() {
		return out, Untouched, Untouched, source
	}

	if v, res, e := lookup(src.Positions, p, extendEdges); res != Untouched {
		out = out.WithPosition(v.Lat, v.Lon)
		pos = res
		if res == Exact {
			source = e.Source
		}
	}

	if v, res, _ := lookup(src.Elevations, p, extendEdges); res != Untouched && v.HasElevation {
		out = out.WithElevation(v.Elevation)
		ele = res
	}

	return out, pos, ele, source
}

func lookup(s series.Series, p gpx.Point, extendEdges bool) (gpx.Point, Resolution, series.Entry) {
	if e, ok := s.Get(p.Time); ok {
		return e.Point, Exact, e
	}

	floor, hasFloor := s.Floor(p.Time)
	ceiling, hasCeiling := s.Ceiling(p.Time)
	switch {
	case hasFloor && hasCeiling:
		return gpx.Interpolate(floor.Point, ceiling.Point, p.Time), Interpolated, series.Entry{}
	case extendEdges && hasFloor:
		return gpx.Interpolate(floor.Point, floor.Point, p.Time), Interpolated, series.Entry{}
	case extendEdges && hasCeiling:
		return gpx.Interpolate(ceiling.Point, ceiling.Point, p.Time), Interpolated, series.Entry{}
	}

	return p, Untouched, series.Entry{}
}

// Retrack returns a copy of main with every timestamped point moved to the
// position and elevation found in src. Segments are processed concurrently;
// main itself is not modified.
func Retrack(ctx context.Context, main *gpx.GPX, src Sources, cfg RetrackConfig) (*gpx.GPX, RetrackStats, error) {
	if main == nil {
		return nil, RetrackStats{}, errors.New("main track is nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRetrackConfig().Workers
	}

	type job struct {
		track, segment int
	}
	var jobs []job
	tracks := make([]gpx.Track, len(main.Tracks))
	for ti, track := range main.Tracks {
		tracks[ti] = track
		tracks[ti].Segments = make([]gpx.TrackSegment, len(track.Segments))
		for si := range track.Segments {
			jobs = append(jobs, job{track: ti, segment: si})
		}
	}

	results := make([]RetrackStats, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in := main.Tracks[j.track].Segments[j.segment]
			out, stats := retrackSegment(in, src, cfg.ExtendEdges)
			// every job owns a distinct slot
			tracks[j.track].Segments[j.segment] = out
			results[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, RetrackStats{}, err
	}

	total := RetrackStats{PositionSources: make(map[int]int)}
	for _, s := range results {
		total.add(s)
	}

	out := *main
	out.Tracks = tracks
	return &out, total, nil
}

func retrackSegment(in gpx.TrackSegment, src Sources, extendEdges bool) (gpx.TrackSegment, RetrackStats) {
	stats := RetrackStats{PositionSources: make(map[int]int)}
	out := gpx.TrackSegment{
		Points:     make([]gpx.Point, len(in.Points)),
		Extensions: in.Extensions,
	}

	for i, p := range in.Points {
		stats.Points++
		if !p.HasTime() {
			stats.UntimedPoints++
			out.Points[i] = p
			continue
		}

		moved, pos, ele, source := RetrackPoint(p, src, extendEdges)
		out.Points[i] = moved

		switch pos {
		case Exact:
			stats.PositionExact++
			stats.PositionSources[source]++
		case Interpolated:
			stats.PositionInterpolated++
		default:
			stats.PositionUntouched++
		}
		switch ele {
		case Exact:
			stats.ElevationExact++
		case Interpolated:
			stats.ElevationInterpolated++
		default:
			stats.ElevationUntouched++
		}
	}

	return out, stats
}
