// Package match pairs recordings of one collection with recordings of
// another that were taken at the same time and place.
package match

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planbiir/gtrack/internal/geo"
	"github.com/planbiir/gtrack/internal/gpx"
	"github.com/planbiir/gtrack/internal/logging"
	"github.com/planbiir/gtrack/internal/series"
	"github.com/planbiir/gtrack/internal/source"
)

const (
	// MaxTimeOffset is how much earlier a repository point may be.
	MaxTimeOffset = 10 * time.Second
	// MaxDistance in meters between the two points.
	MaxDistance = 50.0
)

// Options configures indexing and matching.
type Options struct {
	Workers int
	Logger  logging.Logger
	// Read defaults to source.Read.
	Read source.ReadFunc
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	if o.Read == nil {
		o.Read = source.Read
	}
	return o
}

type indexed struct {
	start, end time.Time
	path       string
}

// Repository indexes recordings by their first timestamp. Lookups load the
// covering recording on demand and keep the last one loaded.
type Repository struct {
	read  source.ReadFunc
	files []indexed

	mu       sync.Mutex
	lastPath string
	content  series.Series
}

// NewRepository reads every file once to learn its time range. Unreadable
// or untimed files are skipped. When two files start at the same instant
// the earlier one in files wins.
func NewRepository(ctx context.Context, files []source.File, opts Options) (_ *Repository, err error) {
	opts = opts.withDefaults()
	defer logging.Time(ctx, opts.Logger, "index repository")(&err)

	ranges := make([]*indexed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			doc, err := opts.Read(gctx, file.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				opts.Logger.Warn(gctx, "skipping unreadable file", logging.String("path", file.Path), logging.Err(err))
				return nil
			}
			if start, end, ok := timeRange(doc); ok {
				ranges[i] = &indexed{start: start, end: end, path: file.Path}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	repo := &Repository{read: opts.Read}
	seen := make(map[int64]bool, len(ranges))
	for _, r := range ranges {
		if r == nil || seen[r.start.UnixNano()] {
			continue
		}
		seen[r.start.UnixNano()] = true
		repo.files = append(repo.files, *r)
	}
	sort.Slice(repo.files, func(i, j int) bool {
		return repo.files[i].start.Before(repo.files[j].start)
	})

	opts.Logger.Info(ctx, "indexed repository",
		logging.Int("files", len(files)),
		logging.Int("indexed", len(repo.files)))
	return repo, nil
}

// Len returns the number of indexed recordings.
func (r *Repository) Len() int {
	return len(r.files)
}

// Lookup returns the latest point at or before t, no more than
// MaxTimeOffset earlier, from the recording starting last at or before t.
func (r *Repository) Lookup(ctx context.Context, t time.Time) (gpx.Point, string, bool, error) {
	i := sort.Search(len(r.files), func(i int) bool {
		return r.files[i].start.After(t)
	})
	if i == 0 {
		return gpx.Point{}, "", false, nil
	}
	file := r.files[i-1]
	if t.Sub(file.end) >= MaxTimeOffset {
		return gpx.Point{}, "", false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if file.path != r.lastPath {
		doc, err := r.read(ctx, file.path)
		if err != nil {
			return gpx.Point{}, "", false, fmt.Errorf("load %s: %w", file.path, err)
		}
		r.content = series.Index(doc.FlattenPoints(), 0)
		r.lastPath = file.path
	}

	e, ok := r.content.Floor(t)
	if !ok || t.Sub(e.Point.Time) >= MaxTimeOffset {
		return gpx.Point{}, "", false, nil
	}
	return e.Point, r.lastPath, true, nil
}

func timeRange(doc *gpx.GPX) (start, end time.Time, ok bool) {
	for _, pt := range doc.FlattenPoints() {
		if !pt.HasTime() {
			continue
		}
		if !ok {
			start, end, ok = pt.Time, pt.Time, true
			continue
		}
		if pt.Time.Before(start) {
			start = pt.Time
		}
		if pt.Time.After(end) {
			end = pt.Time
		}
	}
	return start, end, ok
}

// Match is one recording of the first collection paired with the
// repository recording it overlaps.
type Match struct {
	Time    time.Time
	Source1 string
	Source2 string
}

func (m Match) String() string {
	return fmt.Sprintf("Found matching activity: time=%s source1=%s source2=%s",
		m.Time.UTC().Format(time.RFC3339), m.Source1, m.Source2)
}

// Run looks for the first timestamped point of every file that has a
// repository point within MaxTimeOffset before it and MaxDistance of it.
// Matches are returned in input order; unreadable files are skipped.
func Run(ctx context.Context, files []source.File, repo *Repository, opts Options) (_ []Match, err error) {
	opts = opts.withDefaults()
	defer logging.Time(ctx, opts.Logger, "match")(&err)

	found := make([]*Match, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			m, err := matchFile(gctx, file, repo, opts.Read)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				opts.Logger.Warn(gctx, "skipping file", logging.String("path", file.Path), logging.Err(err))
				return nil
			}
			found[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matches []Match
	for _, m := range found {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	opts.Logger.Info(ctx, "analyzed files",
		logging.Int("count", len(files)),
		logging.Int("matches", len(matches)))
	return matches, nil
}

func matchFile(ctx context.Context, file source.File, repo *Repository, read source.ReadFunc) (*Match, error) {
	doc, err := read(ctx, file.Path)
	if err != nil {
		return nil, err
	}

	for _, pt := range doc.FlattenPoints() {
		if !pt.HasTime() {
			continue
		}
		other, path, ok, err := repo.Lookup(ctx, pt.Time)
		if err != nil {
			return nil, err
		}
		if ok && geo.WithinRadius(pt.Lat, pt.Lon, other.Lat, other.Lon, MaxDistance) {
			return &Match{Time: pt.Time, Source1: file.Path, Source2: path}, nil
		}
	}
	return nil, nil
}
