package find

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/logging"
	"github.com/planbiir/gtrack/internal/source"
)

// Options configures a search run.
type Options struct {
	// Filters run in order; the first rejection stops the chain.
	Filters    []Filter
	Collectors []Collector

	// Workers bounds the number of files read concurrently.
	Workers int
	Logger  logging.Logger

	// Read defaults to source.Read.
	Read source.ReadFunc
}

// Result summarises a run.
type Result struct {
	Files   int
	Failed  int
	Matched int
}

type outcome struct {
	fd      FileData
	matched bool
}

// Run reads every file, applies the filter chain and feeds the survivors to
// the collectors. Files are processed concurrently but CollectOrdered sees
// them in input order. A file that cannot be read is logged and skipped.
func Run(ctx context.Context, files []source.File, opts Options, out io.Writer) (res Result, err error) {
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	defer logging.Time(ctx, log, "find")(&err)

	read := opts.Read
	if read == nil {
		read = source.Read
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]outcome, len(files))
	failed := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			doc, err := read(gctx, file.Path)
			if err != nil {
				log.Warn(gctx, "skipping unreadable file", logging.String("path", file.Path), logging.Err(err))
				failed[i] = true
				return nil
			}

			fd := FileData{File: file}
			doc, ok := applyFilters(&fd, doc, opts.Filters)
			if !ok {
				outcomes[i] = outcome{fd: fd}
				return nil
			}

			for _, c := range opts.Collectors {
				if err := c.CollectUnordered(gctx, &fd, doc); err != nil {
					return fmt.Errorf("collect %s: %w", file.ID, err)
				}
			}
			outcomes[i] = outcome{fd: fd, matched: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Files = len(files)
	for i := range outcomes {
		if failed[i] {
			res.Failed++
			continue
		}
		if !outcomes[i].matched {
			continue
		}
		res.Matched++
		for _, c := range opts.Collectors {
			if err := c.CollectOrdered(&outcomes[i].fd); err != nil {
				return res, err
			}
		}
	}

	for _, c := range opts.Collectors {
		if err := c.Finish(out); err != nil {
			return res, err
		}
	}

	log.Info(ctx, "search finished",
		logging.Int("files", res.Files),
		logging.Int("failed", res.Failed),
		logging.Int("matched", res.Matched))
	return res, nil
}

func applyFilters(fd *FileData, doc *gpx.GPX, filters []Filter) (*gpx.GPX, bool) {
	for _, f := range filters {
		var ok bool
		ok, doc = f.Test(fd, doc)
		if !ok {
			return doc, false
		}
	}
	return doc, true
}
