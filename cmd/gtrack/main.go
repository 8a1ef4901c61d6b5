package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/planbiir/gtrack/internal/config"
	"github.com/planbiir/gtrack/internal/logging"
)

const version = "gtrack v0.3.0 - GPS track reconciliation tools"

// globals are the options accepted before the command name.
type globals struct {
	output  string
	debug   bool
	workers int

	log    logging.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, g *globals, args []string) error
}

var commands = map[string]command{
	"concat": {
		usage:   "concat -o out.gpx input.gpx...",
		summary: "merge recordings, earlier inputs win where they overlap in time",
		run:     runConcat,
	},
	"retrack": {
		usage:   "retrack -o out.gpx [--position-prio 0,2,1] [--elevation-prio 1,0,2] [--extend-edges] main.gpx source...",
		summary: "rebuild positions and elevations of the main recording from all sources",
		run:     runRetrack,
	},
	"cut": {
		usage:   "cut -o out.gpx -s START -e END input.gpx",
		summary: "remove a time range from every segment",
		run:     runCut,
	},
	"thin": {
		usage:   "thin -o out.gpx --min-interval 5s [--remove-privacy-zone lat,lon,r] input.gpx",
		summary: "reduce sampling density and strip privacy zones",
		run:     runThin,
	},
	"merge": {
		usage:   "merge -o out.gpx [--gap 2m] [--max-dev 60] primary.gpx secondary.gpx",
		summary: "fill recording pauses of the primary from the secondary",
		run:     runMerge,
	},
	"fit-to-gpx": {
		usage:   "fit-to-gpx (-o out.gpx input.fit | --batch input.fit...)",
		summary: "convert FIT activities to GPX",
		run:     runFitToGPX,
	},
	"find": {
		usage:   "find (--source-dir DIR | --source-strava-csv FILE) [filters...] [actions...]",
		summary: "search a collection of recordings",
		run:     runFind,
	},
	"match": {
		usage:   "match --source-dir-1 DIR --source-dir-2 DIR",
		summary: "find recordings of two collections taken at the same time and place",
		run:     runMatch,
	},
}

// usageError makes run exit with status 2.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	g := &globals{stdout: stdout, stderr: stderr}
	logCfg := cfg.Logging()
	showVersion := false

	fs := flag.NewFlagSet("gtrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.output, "o", "", "Output file")
	fs.BoolVar(&g.debug, "debug", cfg.Debug, "Write debug outputs next to the output file")
	fs.IntVar(&g.workers, "workers", cfg.Workers, "Number of files or segments processed in parallel")
	fs.StringVar(&logCfg.Level, "log-level", logCfg.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&logCfg.Format, "log-format", logCfg.Format, "Log format (text or json)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		fs.Usage()
		return 2
	}
	if g.workers <= 0 {
		fmt.Fprintf(stderr, "--workers must be positive, got %d\n", g.workers)
		return 2
	}

	logCfg.Output = stderr
	log, _ := logging.NewRun(logCfg)
	g.log = log.With(logging.String("command", rest[0]))

	err = cmd.run(ctx, g, rest[1:])
	var ue usageError
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "%s\n\nusage: gtrack [global options] %s\n", ue.msg, cmd.usage)
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "gtrack - reconcile and retrack GPS recordings\n\n")
	fmt.Fprintf(w, "usage: gtrack [global options] command [options] args...\n\n")
	fmt.Fprintf(w, "commands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}

	fmt.Fprintf(w, "\nexamples:\n")
	fmt.Fprintf(w, "  gtrack concat -o all.gpx watch.gpx phone.gpx\n")
	fmt.Fprintf(w, "  gtrack retrack -o out.gpx --position-prio 1,0 watch.fit phone.gpx\n")
	fmt.Fprintf(w, "  gtrack find --source-dir rides --find-point 50.08,14.42,30 --print-id-and-found-time 15:04\n\n")
	fmt.Fprintf(w, "global options:\n")
	fs.PrintDefaults()
}

// newFlagSet returns a command flag set whose -o defaults to the global one.
func newFlagSet(g *globals, name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(g.stderr)
	output := fs.String("o", g.output, "Output file")
	return fs, output
}

// parseFlags turns flag parsing failures into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}

func requireOutput(output string) error {
	if strings.TrimSpace(output) == "" {
		return usagef("output file required (-o)")
	}
	return nil
}
