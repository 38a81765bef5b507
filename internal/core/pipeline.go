package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/provider/omdb"
	"github.com/mhmtszr/concurrent-swiss-map"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Library reports whether the media server already holds a movie.
type Library interface {
	HasMovie(ctx context.Context, movie media.MovieCandidate) (bool, error)
}

// Verifier cross-checks a candidate against a second catalog.
type Verifier interface {
	Verify(ctx context.Context, movie media.MovieCandidate) (omdb.Verdict, error)
}

// Resolver finds ranked releases for a movie.
type Resolver interface {
	Search(ctx context.Context, movie media.MovieCandidate) ([]media.TorrentResult, error)
}

// Cacher submits releases until one is cached.
type Cacher interface {
	Submit(ctx context.Context, movie media.MovieCandidate, torrents []media.TorrentResult) (media.CachedItem, error)
}

// Stage names the per-movie step a result ended in.
type Stage string

const (
	StageLibrary Stage = "library"
	StageVerify  Stage = "verify"
	StageResolve Stage = "resolve"
	StageCache   Stage = "cache"
)

// Outcome is how one movie left the pipeline.
type Outcome string

const (
	OutcomeCached   Outcome = "cached"
	OutcomeResolved Outcome = "resolved" // dry run
	OutcomeSkipped  Outcome = "skipped"  // already in the library
	OutcomeDropped  Outcome = "dropped"  // failed verification
	OutcomeMissed   Outcome = "missed"   // no eligible release
	OutcomeFailed   Outcome = "failed"
)

// Result is the outcome for one movie.
type Result struct {
	Movie   media.MovieCandidate
	Stage   Stage
	Outcome Outcome
	Torrent media.TorrentResult
	Item    media.CachedItem
	Err     error
}

// Summary captures pipeline progress at a point in time.
type Summary struct {
	Total         int
	Processed     int
	Resolved      int
	Cached        int
	Skipped       int
	Failed        int
	ActiveWorkers int
	WorkerLimit   int
	LastItem      string
	Done          bool
	Canceled      bool
}

// Event is emitted after every state change.
type Event struct {
	Summary Summary
	Result  *Result
	Err     error
}

// PipelineConfig wires the per-movie stages. Library and Verifier are
// optional; Cacher may be nil for dry runs.
type PipelineConfig struct {
	Library  Library
	Verifier Verifier
	Resolver Resolver
	Cacher   Cacher
	Workers  int
	DryRun   bool
}

// Pipeline runs library check, verification, resolve and cache for every
// movie on a bounded worker pool.
type Pipeline struct {
	cfg PipelineConfig

	movies  []media.MovieCandidate
	results *csmap.CsMap[string, Result]

	summaryMu sync.RWMutex
	summary   Summary

	errorsMu sync.Mutex
	errors   []error
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Cacher == nil {
		cfg.DryRun = true
	}
	return &Pipeline{
		cfg:     cfg,
		results: csmap.Create[string, Result](),
		summary: Summary{WorkerLimit: cfg.Workers},
	}
}

// Start processes movies and returns a stream of progress events. The
// channel is closed once every movie is done or ctx is canceled.
func (p *Pipeline) Start(ctx context.Context, movies []media.MovieCandidate) <-chan Event {
	p.movies = dedupe(movies)
	events := make(chan Event, 128)
	go p.run(ctx, events)
	return events
}

// Run processes movies and blocks until done, discarding progress events.
func (p *Pipeline) Run(ctx context.Context, movies []media.MovieCandidate) Summary {
	for range p.Start(ctx, movies) {
	}
	return p.SummarySnapshot()
}

func dedupe(movies []media.MovieCandidate) []media.MovieCandidate {
	seen := make(map[string]bool, len(movies))
	out := make([]media.MovieCandidate, 0, len(movies))
	for _, m := range movies {
		if seen[m.Key()] {
			continue
		}
		seen[m.Key()] = true
		out = append(out, m)
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	p.summaryMu.Lock()
	p.summary.Total = len(p.movies)
	p.summaryMu.Unlock()
	p.emit(ctx, events, nil, nil)

	workers := pool.New().WithMaxGoroutines(p.cfg.Workers)
	for _, movie := range p.movies {
		if ctx.Err() != nil {
			break
		}
		workers.Go(func() {
			p.setActive(1)
			res := p.process(ctx, movie)
			p.setActive(-1)
			if res.Outcome == "" {
				return // canceled mid-flight
			}
			p.record(res)
			p.emit(ctx, events, &res, nil)
		})
	}
	workers.Wait()

	p.summaryMu.Lock()
	p.summary.ActiveWorkers = 0
	if ctx.Err() != nil {
		p.summary.Canceled = true
	} else {
		p.summary.Done = true
	}
	p.summaryMu.Unlock()

	if ctx.Err() == nil {
		p.emit(ctx, events, nil, nil)
		return
	}
	// the consumer may already be gone
	select {
	case events <- Event{Summary: p.SummarySnapshot(), Err: ctx.Err()}:
	default:
	}
}

// process runs the full chain for one movie. A zero Outcome means ctx was
// canceled before the movie finished.
func (p *Pipeline) process(ctx context.Context, movie media.MovieCandidate) Result {
	res := Result{Movie: movie}
	canceled := func(err error) bool {
		return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}

	if p.cfg.Library != nil {
		res.Stage = StageLibrary
		has, err := p.cfg.Library.HasMovie(ctx, movie)
		switch {
		case canceled(err):
			return Result{}
		case err != nil:
			log.WithFields(log.Fields{"movie": movie.Label(), "err": err}).Warn("Library check failed")
		case has:
			res.Outcome = OutcomeSkipped
			return res
		}
	}

	if p.cfg.Verifier != nil {
		res.Stage = StageVerify
		verdict, err := p.cfg.Verifier.Verify(ctx, movie)
		switch {
		case canceled(err):
			return Result{}
		case err != nil:
			log.WithFields(log.Fields{"movie": movie.Label(), "err": err}).Warn("Verification failed, keeping candidate")
		case !verdict.Match:
			res.Outcome = OutcomeDropped
			res.Err = &provider.ProviderError{
				Provider: "omdb",
				Code:     provider.CodeCatalogMismatch,
				Message:  fmt.Sprintf("%s: %s", movie.Label(), verdict.Reason),
			}
			return res
		}
	}

	res.Stage = StageResolve
	torrents, err := p.cfg.Resolver.Search(ctx, movie)
	if canceled(err) {
		return Result{}
	}
	oplog.LogOperation(oplog.OpResolve, movie.Label(), bestName(torrents), resolveErr(movie, torrents, err))
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	if len(torrents) == 0 {
		res.Outcome = OutcomeMissed
		res.Err = resolveErr(movie, torrents, nil)
		return res
	}
	res.Torrent = torrents[0]
	res.Movie.Quality = torrents[0].Resolution

	if p.cfg.DryRun {
		res.Outcome = OutcomeResolved
		return res
	}

	res.Stage = StageCache
	item, err := p.cfg.Cacher.Submit(ctx, res.Movie, torrents)
	if canceled(err) {
		return Result{}
	}
	oplog.LogOperation(oplog.OpCache, movie.Label(), item.Hash, err)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.Item = item
	if item.Hash != "" {
		for _, t := range torrents {
			if t.InfoHash == item.Hash {
				res.Torrent = t
				res.Movie.Quality = t.Resolution
				res.Item.Movie.Quality = t.Resolution
				break
			}
		}
	}
	res.Outcome = OutcomeCached
	return res
}

func bestName(torrents []media.TorrentResult) string {
	if len(torrents) == 0 {
		return ""
	}
	return torrents[0].Name
}

func resolveErr(movie media.MovieCandidate, torrents []media.TorrentResult, err error) error {
	if err != nil || len(torrents) > 0 {
		return err
	}
	return &provider.ProviderError{
		Provider: "torrent",
		Code:     provider.CodeResolverMiss,
		Message:  fmt.Sprintf("no eligible release for %s", movie.Label()),
	}
}

func (p *Pipeline) setActive(delta int) {
	p.summaryMu.Lock()
	p.summary.ActiveWorkers += delta
	p.summaryMu.Unlock()
}

func (p *Pipeline) record(res Result) {
	p.results.Store(res.Movie.Key(), res)

	if res.Err != nil {
		p.errorsMu.Lock()
		p.errors = append(p.errors, fmt.Errorf("%s: %w", res.Movie.Label(), res.Err))
		p.errorsMu.Unlock()
	}

	p.summaryMu.Lock()
	defer p.summaryMu.Unlock()
	p.summary.Processed++
	p.summary.LastItem = res.Movie.Label()
	switch res.Outcome {
	case OutcomeCached:
		p.summary.Resolved++
		p.summary.Cached++
	case OutcomeResolved:
		p.summary.Resolved++
	case OutcomeSkipped:
		p.summary.Skipped++
	case OutcomeFailed:
		if res.Stage == StageCache {
			p.summary.Resolved++
		}
		p.summary.Failed++
	default:
		p.summary.Failed++
	}
}

func (p *Pipeline) emit(ctx context.Context, events chan<- Event, res *Result, err error) {
	summary := p.SummarySnapshot()
	select {
	case events <- Event{Summary: summary, Result: res, Err: err}:
	case <-ctx.Done():
	}
}

// SummarySnapshot returns the latest progress summary.
func (p *Pipeline) SummarySnapshot() Summary {
	p.summaryMu.RLock()
	defer p.summaryMu.RUnlock()
	return p.summary
}

// Results returns the finished results in input order.
func (p *Pipeline) Results() []Result {
	out := make([]Result, 0, p.results.Count())
	for _, m := range p.movies {
		if res, ok := p.results.Load(m.Key()); ok {
			out = append(out, res)
		}
	}
	return out
}

// Cached returns the cached items in input order.
func (p *Pipeline) Cached() []media.CachedItem {
	var items []media.CachedItem
	for _, res := range p.Results() {
		if res.Outcome == OutcomeCached {
			items = append(items, res.Item)
		}
	}
	return items
}

// Errors returns a copy of the per-movie failures.
func (p *Pipeline) Errors() []error {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()
	if len(p.errors) == 0 {
		return nil
	}
	cloned := make([]error, len(p.errors))
	copy(cloned, p.errors)
	return cloned
}
