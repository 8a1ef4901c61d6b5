package main

import (
	"context"
	"fmt"
	"time"

	"github.com/planbiir/gtrack/internal/find"
	"github.com/planbiir/gtrack/internal/logging"
	"github.com/planbiir/gtrack/internal/match"
	"github.com/planbiir/gtrack/internal/source"
)

// findOptions collects the find flags. Filters and actions keep the order
// they were given on the command line.
type findOptions struct {
	sourceDir       string
	sourceStravaCSV string
	skipDistance    float64

	// filters are built after parsing so --skip-distance applies wherever
	// it appears.
	filters    []func() find.Filter
	collectors []find.Collector
}

func parseFindArgs(g *globals, args []string) (*findOptions, error) {
	opts := &findOptions{}

	fs, _ := newFlagSet(g, "find")
	fs.StringVar(&opts.sourceDir, "source-dir", "", "Read recordings from the directory")
	fs.StringVar(&opts.sourceStravaCSV, "source-strava-csv", "", "Read recordings listed in a Strava activities.csv")
	fs.Float64Var(&opts.skipDistance, "skip-distance", 0, "Ignore --find-point matches within this many meters of the start")

	addFilter := func(f func() find.Filter) {
		opts.filters = append(opts.filters, f)
	}
	fs.Func("since", "Keep recordings starting at or after the time (RFC 3339)", func(s string) error {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		addFilter(func() find.Filter { return find.SinceFilter{Since: t} })
		return nil
	})
	fs.Func("till", "Keep recordings starting before the time (RFC 3339)", func(s string) error {
		t, err := parseTime(s)
		if err != nil {
			return err
		}
		addFilter(func() find.Filter { return find.TillFilter{Till: t} })
		return nil
	})
	fs.Func("find-point", "Keep recordings passing lat,lon,radius[:lat,lon,radius...]", func(s string) error {
		targets, err := find.ParseZones(s)
		if err != nil {
			return err
		}
		addFilter(func() find.Filter {
			return find.FindPointFilter{Targets: targets, SkipDistance: opts.skipDistance}
		})
		return nil
	})
	fs.Func("dismiss-zone", "Drop recordings entering lat,lon,radius[:...]", func(s string) error {
		zones, err := find.ParseZones(s)
		if err != nil {
			return err
		}
		addFilter(func() find.Filter { return find.DismissZoneFilter{Zones: zones} })
		return nil
	})
	fs.Func("remove-privacy-zone", "Strip lat,lon,radius from start and end of the output", func(s string) error {
		zone, err := find.ParseZone(s)
		if err != nil {
			return err
		}
		addFilter(func() find.Filter { return find.PrivacyZoneFilter{Zone: zone} })
		return nil
	})
	fs.Func("min-interval", "Thin the output to one point per interval (e.g. 5s)", func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		addFilter(func() find.Filter { return find.ThinFilter{Interval: d} })
		return nil
	})

	fs.Func("print-id-and-found-time", "Print id and local found time using a Go time layout", func(s string) error {
		opts.collectors = append(opts.collectors, &find.PrintIDAndFoundTime{Layout: s})
		return nil
	})
	fs.Func("group-found-time", "Count found times formatted with a Go time layout", func(s string) error {
		opts.collectors = append(opts.collectors, &find.GroupFoundTime{Layout: s})
		return nil
	})
	fs.Func("export-gpx", "Write matches to DIR/id.gpx", func(s string) error {
		opts.collectors = append(opts.collectors, &find.ExportGPX{Dir: s})
		return nil
	})
	fs.Func("export-geojson", "Write matches to DIR/id.geojson", func(s string) error {
		opts.collectors = append(opts.collectors, &find.ExportGeoJSON{Dir: s})
		return nil
	})

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if (opts.sourceDir == "") == (opts.sourceStravaCSV == "") {
		return nil, usagef("one of --source-dir or --source-strava-csv must be specified")
	}
	if fs.NArg() > 0 {
		return nil, usagef("unexpected arguments %v", fs.Args())
	}
	return opts, nil
}

func (o *findOptions) buildFilters() []find.Filter {
	filters := make([]find.Filter, 0, len(o.filters))
	for _, build := range o.filters {
		filters = append(filters, build())
	}
	return filters
}

func (o *findOptions) files() ([]source.File, error) {
	if o.sourceStravaCSV != "" {
		return source.ReadStravaCSV(o.sourceStravaCSV)
	}
	return source.ListDir(o.sourceDir)
}

func runFind(ctx context.Context, g *globals, args []string) error {
	opts, err := parseFindArgs(g, args)
	if err != nil {
		return err
	}

	files, err := opts.files()
	if err != nil {
		return err
	}
	g.log.Info(ctx, "listed recordings", logging.Int("count", len(files)))

	_, err = find.Run(ctx, files, find.Options{
		Filters:    opts.buildFilters(),
		Collectors: opts.collectors,
		Workers:    g.workers,
		Logger:     g.log,
	}, g.stdout)
	return err
}

func runMatch(ctx context.Context, g *globals, args []string) error {
	fs, _ := newFlagSet(g, "match")
	dir1 := fs.String("source-dir-1", "", "Recordings to look up")
	dir2 := fs.String("source-dir-2", "", "Recordings to look in")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dir1 == "" || *dir2 == "" {
		return usagef("--source-dir-1 and --source-dir-2 must be specified")
	}

	files1, err := source.ListDir(*dir1)
	if err != nil {
		return err
	}
	files2, err := source.ListDir(*dir2)
	if err != nil {
		return err
	}

	opts := match.Options{Workers: g.workers, Logger: g.log}
	repo, err := match.NewRepository(ctx, files2, opts)
	if err != nil {
		return err
	}
	matches, err := match.Run(ctx, files1, repo, opts)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Fprintln(g.stdout, m)
	}
	return nil
}
