package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planbiir/gtrack/internal/clean"
	"github.com/planbiir/gtrack/internal/find"
	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/logging"
	"github.com/planbiir/gtrack/internal/merge"
	"github.com/planbiir/gtrack/internal/series"
	"github.com/planbiir/gtrack/internal/source"
)

// readAll loads the inputs in parallel; the first failure aborts.
func readAll(ctx context.Context, g *globals, paths []string) ([]*gpx.GPX, error) {
	docs := make([]*gpx.GPX, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, path := range paths {
		eg.Go(func() error {
			doc, err := source.Read(ctx, path)
			if err != nil {
				return err
			}
			g.log.Debug(ctx, "read input", logging.String("path", path), logging.Int("points", len(doc.FlattenPoints())))
			docs[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func writeOutput(g *globals, doc *gpx.GPX, path string) error {
	if err := doc.Write(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	points, tracks, segments, duration, distance := doc.Stats()
	fmt.Fprintf(g.stdout, "💾 %s: %d points, %d tracks, %d segments, %v, %.2f km\n",
		path, points, tracks, segments, duration.Round(time.Second), distance)
	return nil
}

func runConcat(ctx context.Context, g *globals, args []string) (err error) {
	fs, output := newFlagSet(g, "concat")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireOutput(*output); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("at least one input file required")
	}
	defer logging.Time(ctx, g.log, "concat")(&err)

	docs, err := readAll(ctx, g, fs.Args())
	if err != nil {
		return err
	}

	out, stats, err := merge.Concat(docs)
	if err != nil {
		return err
	}
	g.log.Info(ctx, "concatenated",
		logging.Int("offered", stats.SegmentsOffered),
		logging.Int("accepted", stats.SegmentsAccepted),
		logging.Int("trimmed", stats.SegmentsTrimmed),
		logging.Int("dropped", stats.SegmentsDropped),
		logging.Int("untimed", stats.UntimedSegments))

	return writeOutput(g, out, *output)
}

func runRetrack(ctx context.Context, g *globals, args []string) (err error) {
	cfg := merge.DefaultRetrackConfig()
	cfg.Workers = g.workers

	fs, output := newFlagSet(g, "retrack")
	positionPrio := fs.String("position-prio", "", "Source priority for positions, e.g. 1,0,2 (default: input order)")
	elevationPrio := fs.String("elevation-prio", "", "Source priority for elevations (default: input order)")
	fs.BoolVar(&cfg.ExtendEdges, "extend-edges", false, "Use the nearest sample for points before the first or after the last one")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireOutput(*output); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("main file required")
	}

	if cfg.PositionPriority, err = series.ParsePriority(*positionPrio); err != nil {
		return usagef("--position-prio: %v", err)
	}
	if cfg.ElevationPriority, err = series.ParsePriority(*elevationPrio); err != nil {
		return usagef("--elevation-prio: %v", err)
	}
	for _, order := range [][]int{cfg.PositionPriority, cfg.ElevationPriority} {
		if order == nil {
			continue
		}
		if err := series.ValidatePriority(order, fs.NArg()); err != nil {
			return usagef("invalid priority: %v", err)
		}
	}
	defer logging.Time(ctx, g.log, "retrack")(&err)

	docs, err := readAll(ctx, g, fs.Args())
	if err != nil {
		return err
	}

	src, err := merge.BuildSources(docs, cfg)
	if err != nil {
		return err
	}
	for _, i := range src.Empty {
		g.log.Warn(ctx, "source has no timestamped points", logging.String("path", fs.Arg(i)))
	}
	g.log.Info(ctx, "built sources",
		logging.Int("positions", src.Positions.Len()),
		logging.Int("elevations", src.Elevations.Len()))

	if g.debug {
		if err := writeDebug(g, src, *output); err != nil {
			return err
		}
	}

	out, stats, err := merge.Retrack(ctx, docs[0], src, cfg)
	if err != nil {
		return err
	}
	g.log.Info(ctx, "retracked",
		logging.Int("points", stats.Points),
		logging.Int("position_exact", stats.PositionExact),
		logging.Int("position_interpolated", stats.PositionInterpolated),
		logging.Int("position_untouched", stats.PositionUntouched),
		logging.Int("elevation_exact", stats.ElevationExact),
		logging.Int("elevation_interpolated", stats.ElevationInterpolated),
		logging.Int("elevation_untouched", stats.ElevationUntouched))

	return writeOutput(g, out, *output)
}

func writeDebug(g *globals, src merge.Sources, output string) error {
	if err := merge.DebugGPX(src).Write(output + ".debug.gpx"); err != nil {
		return fmt.Errorf("write debug gpx: %w", err)
	}
	data, err := merge.DebugGeoJSON(src).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode debug geojson: %w", err)
	}
	if err := os.WriteFile(output+".debug.geojson", data, 0o644); err != nil {
		return fmt.Errorf("write debug geojson: %w", err)
	}
	return nil
}

// parseTime accepts RFC 3339 or a date, which is taken as local midnight.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected RFC 3339 (2006-01-02T15:04:05Z)", s)
}

func runCut(ctx context.Context, g *globals, args []string) (err error) {
	fs, output := newFlagSet(g, "cut")
	startFlag := fs.String("s", "", "Start of the removed range (RFC 3339)")
	endFlag := fs.String("e", "", "End of the removed range (RFC 3339)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireOutput(*output); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("exactly one input file required")
	}
	if *startFlag == "" || *endFlag == "" {
		return usagef("-s and -e are required")
	}
	start, err := parseTime(*startFlag)
	if err != nil {
		return usagef("-s: %v", err)
	}
	end, err := parseTime(*endFlag)
	if err != nil {
		return usagef("-e: %v", err)
	}
	if end.Before(start) {
		return usagef("-e must not be before -s")
	}
	defer logging.Time(ctx, g.log, "cut")(&err)

	doc, err := source.Read(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	out, stats, err := merge.Cut(doc, start, end)
	if err != nil {
		return err
	}
	g.log.Info(ctx, "cut",
		logging.Int("kept", stats.SegmentsKept),
		logging.Int("trimmed", stats.SegmentsTrimmed),
		logging.Int("split", stats.SegmentsSplit),
		logging.Int("removed", stats.SegmentsRemoved))

	return writeOutput(g, out, *output)
}

func runThin(ctx context.Context, g *globals, args []string) (err error) {
	config := clean.DefaultConfig()

	fs, output := newFlagSet(g, "thin")
	fs.DurationVar(&config.MinInterval, "min-interval", 0, "Minimum spacing between retained points (e.g. 5s)")
	fs.Func("remove-privacy-zone", "Strip lat,lon,radius from start and end (repeatable)", func(s string) error {
		zone, err := find.ParseZone(s)
		if err != nil {
			return err
		}
		config.PrivacyZones = append(config.PrivacyZones, zone)
		return nil
	})
	statsJSON := fs.Bool("stats-json", false, "Print statistics as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireOutput(*output); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("exactly one input file required")
	}
	if config.MinInterval <= 0 && len(config.PrivacyZones) == 0 {
		return usagef("--min-interval or --remove-privacy-zone required")
	}
	defer logging.Time(ctx, g.log, "thin")(&err)

	doc, err := source.Read(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := clean.Clean(doc, config)
	if err != nil {
		return err
	}

	if *statsJSON {
		data, err := json.MarshalIndent(result.Stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		fmt.Fprintln(g.stdout, string(data))
	} else {
		fmt.Fprintf(g.stdout, "📍 Points: %d → %d (%d removed, %.1f%%)\n",
			result.Stats.OriginalPoints, result.Stats.FinalPoints, result.Stats.PointsRemoved, result.Stats.PointsPercent)
	}

	if result.GPX == nil {
		return errors.New("nothing left after removing privacy zones")
	}
	return writeOutput(g, result.GPX, *output)
}

func runMerge(ctx context.Context, g *globals, args []string) (err error) {
	cfg := merge.DefaultGapFillConfig()

	fs, output := newFlagSet(g, "merge")
	fs.DurationVar(&cfg.GapThreshold, "gap", cfg.GapThreshold, "Minimum pause to fill (e.g. 2m)")
	fs.Float64Var(&cfg.MaxDeviationMeters, "max-dev", cfg.MaxDeviationMeters, "Maximum distance of inserted points from the pause ends in meters (negative disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireOutput(*output); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usagef("primary and secondary file required")
	}
	defer logging.Time(ctx, g.log, "merge")(&err)

	docs, err := readAll(ctx, g, fs.Args())
	if err != nil {
		return err
	}
	fill := series.Index(docs[1].FlattenPoints(), 1)

	out, stats, err := merge.FillGaps(docs[0], fill, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout, "Merge stats: gaps_detected=%d gaps_filled=%d inserted_points=%d\n",
		stats.GapsDetected, stats.GapsFilled, stats.InsertedPoints)

	return writeOutput(g, out, *output)
}

func runFitToGPX(ctx context.Context, g *globals, args []string) (err error) {
	fs, output := newFlagSet(g, "fit-to-gpx")
	batch := fs.Bool("batch", false, "Convert every input to name.gpx next to it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("input file required")
	}
	defer logging.Time(ctx, g.log, "fit-to-gpx")(&err)

	if !*batch {
		if err := requireOutput(*output); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return usagef("exactly one input without --batch")
		}
		return convertFIT(ctx, fs.Arg(0), *output)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, input := range fs.Args() {
		eg.Go(func() error {
			out := gpxName(input)
			if err := convertFIT(ctx, input, out); err != nil {
				return err
			}
			g.log.Info(ctx, "converted", logging.String("input", input), logging.String("output", out))
			return nil
		})
	}
	return eg.Wait()
}

func convertFIT(ctx context.Context, input, output string) error {
	if source.DetectFormat(input) != source.FormatFIT {
		return fmt.Errorf("%s: %w", input, source.ErrUnsupportedFormat)
	}
	doc, err := source.Read(ctx, input)
	if err != nil {
		return err
	}
	if err := doc.Write(output); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	return nil
}

// gpxName maps dir/name.fit[.gz] to dir/name.gpx.
func gpxName(input string) string {
	dir, base := filepath.Split(input)
	lower := strings.ToLower(base)
	for _, suffix := range []string{".fit.gz", ".fit"} {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}
	return filepath.Join(dir, base+".gpx")
}
