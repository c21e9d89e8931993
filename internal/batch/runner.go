// Package batch parses many files in parallel: a worker pool with
// per-file timeouts, glob excludes, a result cache, and optional
// fan-in to an aggregator and a graph store. One file's failure never
// aborts the batch; it surfaces as an error-carrying result.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/polyscan/internal/aggregator"
	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
	"github.com/dusk-indust/polyscan/internal/store"
)

// DefaultCacheSize bounds the result cache when Options does not set one.
const DefaultCacheSize = 512

// Options configures a Runner.
type Options struct {
	// Jobs caps concurrent file parses. 0 means one worker per file.
	Jobs int

	// Timeout bounds one file's parse. 0 disables the limit.
	Timeout time.Duration

	// Excludes are glob patterns matched against slash-separated paths.
	Excludes []string

	// EnableDelegation toggles embedded-language delegation.
	EnableDelegation bool

	// CacheSize bounds the LRU result cache.
	CacheSize int

	// Aggregator, when set, receives every result's relationships.
	Aggregator *aggregator.Aggregator

	// Store, when set, receives every result's components.
	Store store.Store

	// Reporter, when set, receives per-file progress events.
	Reporter *ProgressReporter
}

// Runner drives a set of parsers over many files.
type Runner struct {
	parsers  []*parser.Parser
	excludes []glob.Glob
	cache    *lru.Cache[string, *model.ParseResult]
	opts     Options
}

// NewRunner creates a Runner over the given parsers. Invalid exclude
// patterns and an unconstructible cache are reported as errors rather
// than silently dropped.
func NewRunner(parsers []*parser.Parser, opts Options) (*Runner, error) {
	excludes := make([]glob.Glob, 0, len(opts.Excludes))
	for _, pattern := range opts.Excludes {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("batch: exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *model.ParseResult](size)
	if err != nil {
		return nil, fmt.Errorf("batch: result cache: %w", err)
	}

	return &Runner{
		parsers:  parsers,
		excludes: excludes,
		cache:    cache,
		opts:     opts,
	}, nil
}

// Collect expands paths into the sorted list of parseable files:
// directories are walked recursively, excludes dropped, and files no
// parser claims skipped.
func (r *Runner) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if seen[path] || r.excluded(path) || r.parserFor(path) == nil {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("batch: stat %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if r.excluded(p) && p != path {
					return filepath.SkipDir
				}
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch: walk %s: %w", path, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Run parses every file in parallel and returns results in input
// order. The returned error reports context cancellation only; per-file
// failures live inside their results.
func (r *Runner) Run(ctx context.Context, files []string) ([]*model.ParseResult, error) {
	results := make([]*model.ParseResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.Jobs > 0 {
		g.SetLimit(r.opts.Jobs)
	}

	for i, path := range files {
		r.emit(Event{FilePath: path, Status: StatusPending})
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runOne(gctx, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	r.fanIn(ctx, results)
	return results, nil
}

// runOne parses a single file, consulting the cache first.
func (r *Runner) runOne(ctx context.Context, path string) *model.ParseResult {
	r.emit(Event{FilePath: path, Status: StatusWorking})

	p := r.parserFor(path)
	if p == nil {
		// Collect filters unclaimed files, but Run accepts arbitrary
		// paths from callers too.
		msg := fmt.Sprintf("no parser claims %s", path)
		r.emit(Event{FilePath: path, Status: StatusFailed, Message: msg})
		return model.ErrorResult(path, "", "batch", model.CodeUnsupported, msg, 0)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		// Let the parser produce its canonical read-error result.
		result := p.ParseFile(ctx, path, r.parseOptions())
		r.emitResult(path, result)
		return result
	}

	key := cacheKey(path, content)
	if cached, ok := r.cache.Get(key); ok {
		r.emit(Event{FilePath: path, Status: StatusCached})
		return cached
	}

	result := p.ParseContent(ctx, content, path, r.parseOptions())
	r.cache.Add(key, result)
	r.emitResult(path, result)
	return result
}

// fanIn feeds completed results into the configured aggregator and
// store. The source tag encodes the pass precedence and the language.
func (r *Runner) fanIn(ctx context.Context, results []*model.ParseResult) {
	for _, result := range results {
		if result == nil {
			continue
		}
		if r.opts.Aggregator != nil && len(result.Relationships) > 0 {
			tag := string(result.Metadata.ParsingLevel) + ":" + result.Metadata.Language
			r.opts.Aggregator.AddRelationships(result.Relationships, tag)
		}
		if r.opts.Store != nil {
			for _, c := range result.Components {
				if err := r.opts.Store.AddComponent(ctx, c); err != nil {
					r.emit(Event{FilePath: result.Metadata.FilePath, Status: StatusFailed, Message: err.Error()})
					break
				}
			}
		}
	}
}

func (r *Runner) parseOptions() parser.Options {
	opts := parser.DefaultOptions()
	opts.EnableDelegation = r.opts.EnableDelegation
	opts.Timeout = r.opts.Timeout
	return opts
}

// parserFor returns the first parser claiming the file's extension.
func (r *Runner) parserFor(path string) *parser.Parser {
	for _, p := range r.parsers {
		if p.CanParse(path) {
			return p
		}
	}
	return nil
}

func (r *Runner) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range r.excludes {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func (r *Runner) emit(event Event) {
	if r.opts.Reporter != nil {
		r.opts.Reporter.Emit(event)
	}
}

func (r *Runner) emitResult(path string, result *model.ParseResult) {
	if len(result.Errors) > 0 {
		r.emit(Event{FilePath: path, Status: StatusFailed, Message: result.Errors[0].Message})
		return
	}
	r.emit(Event{FilePath: path, Status: StatusComplete})
}

// cacheKey ties a cached result to both the path and the exact content
// parsed, so edits invalidate naturally.
func cacheKey(path string, content []byte) string {
	sum := sha256.Sum256(content)
	return path + ":" + hex.EncodeToString(sum[:])
}
