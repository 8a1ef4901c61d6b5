package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/merge"
	"github.com/planbiir/gtrack/internal/series"
	"github.com/planbiir/gtrack/internal/source"
)

func main() {
	cfg := merge.DefaultRetrackConfig()

	posFlag := flag.String("position-prio", "", "Source priority for positions, e.g. 1,0,2")
	eleFlag := flag.String("elevation-prio", "", "Source priority for elevations")
	flag.BoolVar(&cfg.ExtendEdges, "extend-edges", false, "Use the nearest sample outside the covered range")
	gapFlag := flag.Duration("gap", 30*time.Second, "Report pauses of the main recording longer than this")
	topFlag := flag.Int("top", 5, "Number of most displaced points to list")
	outFlag := flag.String("out", "", "Optional path to write the retracked GPX")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("usage: %s [flags] <main.gpx> [source...]", os.Args[0])
	}

	var err error
	if cfg.PositionPriority, err = series.ParsePriority(*posFlag); err != nil {
		log.Fatalf("position priority: %v", err)
	}
	if cfg.ElevationPriority, err = series.ParsePriority(*eleFlag); err != nil {
		log.Fatalf("elevation priority: %v", err)
	}

	ctx := context.Background()
	docs := make([]*gpx.GPX, len(args))
	for i, path := range args {
		docs[i], err = source.Read(ctx, path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		fmt.Printf("Source %d: %s\n", i, path)
		printTrackStats(docs[i].FlattenPoints())
	}

	src, err := merge.BuildSources(docs, cfg)
	if err != nil {
		log.Fatalf("build sources: %v", err)
	}

	fmt.Printf("\nSeries:\n")
	for _, s := range merge.Summaries(src) {
		fmt.Printf("  %s\n", s)
	}
	fmt.Printf("  merged: %d positions, %d elevations\n", src.Positions.Len(), src.Elevations.Len())

	retracked, stats, err := merge.Retrack(ctx, docs[0], src, cfg)
	if err != nil {
		log.Fatalf("retrack failed: %v", err)
	}

	fmt.Printf("\nRetrack stats: points=%d untimed=%d\n", stats.Points, stats.UntimedPoints)
	fmt.Printf("  position: exact=%d interpolated=%d untouched=%d\n",
		stats.PositionExact, stats.PositionInterpolated, stats.PositionUntouched)
	fmt.Printf("  elevation: exact=%d interpolated=%d untouched=%d\n",
		stats.ElevationExact, stats.ElevationInterpolated, stats.ElevationUntouched)
	sources := make([]int, 0, len(stats.PositionSources))
	for k := range stats.PositionSources {
		sources = append(sources, k)
	}
	sort.Ints(sources)
	for _, k := range sources {
		fmt.Printf("  exact positions from source %d: %d\n", k, stats.PositionSources[k])
	}

	before := docs[0].FlattenPoints()
	after := retracked.FlattenPoints()
	moves := displacements(before, after)
	fmt.Printf("\nDisplacement:\n")
	if len(moves) == 0 {
		fmt.Println("  no timestamped points")
	} else {
		total, maxMove := 0.0, 0.0
		for _, m := range moves {
			total += m.meters
			maxMove = max(maxMove, m.meters)
		}
		fmt.Printf("  mean %.1f m, max %.1f m\n", total/float64(len(moves)), maxMove)
		sort.SliceStable(moves, func(i, j int) bool { return moves[i].meters > moves[j].meters })
		for _, m := range moves[:min(max(*topFlag, 0), len(moves))] {
			fmt.Printf("  %s moved %.1f m\n", m.time.UTC().Format(time.RFC3339), m.meters)
		}
	}

	gapDetails := analyzeGaps(before, src.Positions, *gapFlag)
	fmt.Printf("\nGap analysis (threshold %v):\n", *gapFlag)
	if len(gapDetails) == 0 {
		fmt.Println("  no gaps exceeding threshold")
	}
	for idx, gap := range gapDetails {
		fmt.Printf("  Gap #%d: %s – %s (duration %v)\n", idx+1, gap.startTime, gap.endTime, gap.duration)
		if len(gap.covered) == 0 {
			fmt.Printf("    not covered by any source\n")
			continue
		}
		fmt.Printf("    merged samples: %d\n", len(gap.covered))
		for _, k := range sortedKeys(gap.bySource) {
			fmt.Printf("    source %d: %d samples\n", k, gap.bySource[k])
		}
	}

	fmt.Printf("\nRetracked track summary:\n")
	printTrackStats(after)

	if *outFlag != "" {
		if err := retracked.Write(*outFlag); err != nil {
			log.Fatalf("write retracked gpx: %v", err)
		}
		fmt.Printf("\nRetracked GPX written to %s\n", *outFlag)
	}
}

type move struct {
	time   time.Time
	meters float64
}

// displacements pairs the points of the main recording with their retracked
// counterparts; both slices come from the same structure.
func displacements(before, after []gpx.Point) []move {
	var out []move
	for i := range min(len(before), len(after)) {
		if !before[i].HasTime() {
			continue
		}
		out = append(out, move{
			time:   before[i].Time,
			meters: geo.DistanceMeters(before[i].Lat, before[i].Lon, after[i].Lat, after[i].Lon),
		})
	}
	return out
}

type gapInfo struct {
	startTime time.Time
	endTime   time.Time
	duration  time.Duration
	covered   []series.Entry
	bySource  map[int]int
}

func analyzeGaps(primary []gpx.Point, merged series.Series, threshold time.Duration) []gapInfo {
	result := []gapInfo{}
	var prev *gpx.Point
	for i := range primary {
		b := primary[i]
		if !b.HasTime() {
			continue
		}
		if prev == nil {
			prev = &primary[i]
			continue
		}
		a := *prev
		prev = &primary[i]

		gap := b.Time.Sub(a.Time)
		if gap <= threshold {
			continue
		}
		info := gapInfo{startTime: a.Time, endTime: b.Time, duration: gap, bySource: map[int]int{}}
		for e, ok := merged.Ceiling(a.Time.Add(time.Nanosecond)); ok && e.Point.Time.Before(b.Time); e, ok = merged.Ceiling(e.Point.Time.Add(time.Nanosecond)) {
			info.covered = append(info.covered, e)
			info.bySource[e.Source]++
		}
		result = append(result, info)
	}
	return result
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func printTrackStats(points []gpx.Point) {
	if len(points) == 0 {
		fmt.Printf("  points: 0\n")
		return
	}
	duration := trackDuration(points)
	distance := trackDistance(points)
	start, end := timeBounds(points)
	fmt.Printf("  points: %d\n", len(points))
	fmt.Printf("  time span: %s – %s (duration %v)\n", start, end, duration)
	fmt.Printf("  distance: %.3f km\n", distance/1000)
}

func timeBounds(points []gpx.Point) (time.Time, time.Time) {
	var start time.Time
	var end time.Time
	for _, pt := range points {
		if !pt.HasTime() {
			continue
		}
		if start.IsZero() || pt.Time.Before(start) {
			start = pt.Time
		}
		if end.IsZero() || pt.Time.After(end) {
			end = pt.Time
		}
	}
	return start, end
}

func trackDuration(points []gpx.Point) time.Duration {
	start, end := timeBounds(points)
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start)
}

func trackDistance(points []gpx.Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.DistanceMeters(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	return total
}
