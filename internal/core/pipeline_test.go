package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/provider/debrid"
	"github.com/Digital-Shane/reelrunner/internal/provider/jellyfin"
	"github.com/Digital-Shane/reelrunner/internal/provider/omdb"
	"github.com/Digital-Shane/reelrunner/internal/store"
	"github.com/google/go-cmp/cmp"
)

type fakeLibrary struct {
	hasMovie func(ctx context.Context, movie media.MovieCandidate) (bool, error)
}

func (f fakeLibrary) HasMovie(ctx context.Context, movie media.MovieCandidate) (bool, error) {
	return f.hasMovie(ctx, movie)
}

type fakeVerifier struct {
	verify func(ctx context.Context, movie media.MovieCandidate) (omdb.Verdict, error)
}

func (f fakeVerifier) Verify(ctx context.Context, movie media.MovieCandidate) (omdb.Verdict, error) {
	return f.verify(ctx, movie)
}

type fakeResolver struct {
	search func(ctx context.Context, movie media.MovieCandidate) ([]media.TorrentResult, error)
}

func (f fakeResolver) Search(ctx context.Context, movie media.MovieCandidate) ([]media.TorrentResult, error) {
	return f.search(ctx, movie)
}

type fakeCacher struct {
	submit func(ctx context.Context, movie media.MovieCandidate, torrents []media.TorrentResult) (media.CachedItem, error)
}

func (f fakeCacher) Submit(ctx context.Context, movie media.MovieCandidate, torrents []media.TorrentResult) (media.CachedItem, error) {
	return f.submit(ctx, movie, torrents)
}

// fakeAccount is a Real-Debrid account that caches every magnet at once.
type fakeAccount struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]string // torrent id -> magnet
}

func (f *fakeAccount) Torrents(ctx context.Context) ([]debrid.Torrent, error) { return nil, nil }

func (f *fakeAccount) AddMagnet(ctx context.Context, link string) (debrid.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[string]string{}
	}
	f.nextID++
	id := fmt.Sprintf("RD%d", f.nextID)
	f.byID[id] = link
	return debrid.AddResult{ID: id}, nil
}

func (f *fakeAccount) SelectFiles(ctx context.Context, id, files string) error { return nil }

func (f *fakeAccount) Info(ctx context.Context, id string) (debrid.Torrent, error) {
	return debrid.Torrent{ID: id, Filename: id + ".mkv", Status: debrid.StatusDownloaded, Links: []string{"https://rd/" + id}}, nil
}

func (f *fakeAccount) Delete(ctx context.Context, id string) error { return nil }

type fakeOrganizer struct {
	got []media.MovieCandidate
}

func (f *fakeOrganizer) Organize(ctx context.Context, name string, movies []media.MovieCandidate) (jellyfin.Report, error) {
	f.got = movies
	return jellyfin.Report{Collection: media.Collection{ID: "c1", Name: name}, Added: movies}, nil
}

func torrentFor(movie media.MovieCandidate, res media.Resolution) media.TorrentResult {
	h := fmt.Sprintf("%040x", movie.ID)
	return media.TorrentResult{
		Name:       movie.Title + " " + movie.Year + " " + res.String(),
		Magnet:     "magnet:?xt=urn:btih:" + h,
		InfoHash:   h,
		Resolution: res,
		Seeders:    20,
	}
}

var horror = []media.MovieCandidate{
	{ID: 1, Title: "Halloween", Year: "1978", Score: 90},
	{ID: 2, Title: "The Thing", Year: "1982", Score: 80},
	{ID: 3, Title: "Hereditary", Year: "2018", Score: 70},
	{ID: 4, Title: "It", Year: "2017", Score: 60},
	{ID: 5, Title: "Alien", Year: "1979", Score: 50},
}

func drain(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestPipelineEndToEndHorror(t *testing.T) {
	// Hereditary and It have no eligible release.
	resolver := fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
		switch m.Title {
		case "Hereditary":
			return nil, nil
		case "It":
			return nil, &provider.ProviderError{Provider: "torrent", Code: provider.CodeResolverMiss, Message: "none"}
		}
		return []media.TorrentResult{torrentFor(m, media.Resolution1080)}, nil
	}}
	cacher := debrid.NewCacher(&fakeAccount{}, store.Memory(), debrid.CacherConfig{PollInterval: time.Millisecond, PollAttempts: 2})

	pipeline := NewPipeline(PipelineConfig{Resolver: resolver, Cacher: cacher, Workers: 3})
	events := drain(pipeline.Start(context.Background(), horror))

	last := events[len(events)-1]
	if !last.Summary.Done || last.Summary.Processed != 5 {
		t.Fatalf("final summary = %+v", last.Summary)
	}
	if last.Summary.Cached != 3 || last.Summary.Failed != 2 {
		t.Errorf("cached/failed = %d/%d, want 3/2", last.Summary.Cached, last.Summary.Failed)
	}

	organizer := &fakeOrganizer{}
	name := CollectionName("horror")
	report, err := Catalog(context.Background(), organizer, name, pipeline.Cached())
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if report.Collection.Name != "Horror" {
		t.Errorf("collection name = %q, want Horror", report.Collection.Name)
	}

	var got []string
	for _, m := range organizer.got {
		got = append(got, m.Title)
	}
	want := []string{"Halloween", "The Thing", "Alien"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collection members mismatch (-want +got):\n%s", diff)
	}

	var codes []string
	for _, err := range pipeline.Errors() {
		codes = append(codes, provider.CodeOf(err))
	}
	sort.Strings(codes)
	if diff := cmp.Diff([]string{provider.CodeResolverMiss, provider.CodeResolverMiss}, codes); diff != "" {
		t.Errorf("error codes mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineSkipsLibraryMovies(t *testing.T) {
	var resolved []string
	var mu sync.Mutex
	pipeline := NewPipeline(PipelineConfig{
		Library: fakeLibrary{hasMovie: func(ctx context.Context, m media.MovieCandidate) (bool, error) {
			if m.Title == "The Thing" {
				return false, errors.New("jellyfin down")
			}
			return m.Title == "Halloween", nil
		}},
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			mu.Lock()
			resolved = append(resolved, m.Title)
			mu.Unlock()
			return []media.TorrentResult{torrentFor(m, media.Resolution2160)}, nil
		}},
		Workers: 1,
	})

	summary := pipeline.Run(context.Background(), horror[:2])
	if summary.Skipped != 1 || summary.Resolved != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if diff := cmp.Diff([]string{"The Thing"}, resolved); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}

	results := pipeline.Results()
	if results[0].Outcome != OutcomeSkipped || results[1].Outcome != OutcomeResolved {
		t.Errorf("outcomes = %s, %s", results[0].Outcome, results[1].Outcome)
	}
	if results[1].Movie.Quality != media.Resolution2160 {
		t.Errorf("quality = %v, want 2160p", results[1].Movie.Quality)
	}
	if len(pipeline.Cached()) != 0 {
		t.Error("dry run cached items")
	}
}

func TestPipelineVerifyDropsMismatches(t *testing.T) {
	pipeline := NewPipeline(PipelineConfig{
		Verifier: fakeVerifier{verify: func(ctx context.Context, m media.MovieCandidate) (omdb.Verdict, error) {
			switch m.Title {
			case "It":
				return omdb.Verdict{Match: false, Reason: "year 1990 differs from 2017"}, nil
			case "Alien":
				return omdb.Verdict{}, errors.New("omdb timeout")
			}
			return omdb.Verdict{Match: true}, nil
		}},
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			return []media.TorrentResult{torrentFor(m, media.Resolution1080)}, nil
		}},
		Cacher: fakeCacher{submit: func(ctx context.Context, m media.MovieCandidate, ts []media.TorrentResult) (media.CachedItem, error) {
			return media.CachedItem{Hash: ts[0].InfoHash, Movie: m}, nil
		}},
	})

	pipeline.Run(context.Background(), horror[3:])
	results := pipeline.Results()
	if results[0].Outcome != OutcomeDropped || !provider.IsCode(results[0].Err, provider.CodeCatalogMismatch) {
		t.Errorf("It result = %+v", results[0])
	}
	if results[1].Outcome != OutcomeCached {
		t.Errorf("verifier error should keep the candidate, got %+v", results[1])
	}
}

func TestPipelineCacheFailure(t *testing.T) {
	pipeline := NewPipeline(PipelineConfig{
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			return []media.TorrentResult{torrentFor(m, media.Resolution1080)}, nil
		}},
		Cacher: fakeCacher{submit: func(ctx context.Context, m media.MovieCandidate, ts []media.TorrentResult) (media.CachedItem, error) {
			return media.CachedItem{}, &provider.ProviderError{Provider: "realdebrid", Code: provider.CodeCacheFailed, Message: "dead"}
		}},
	})

	summary := pipeline.Run(context.Background(), horror[:1])
	if summary.Resolved != 1 || summary.Failed != 1 || summary.Cached != 0 {
		t.Errorf("summary = %+v", summary)
	}
	errs := pipeline.Errors()
	if len(errs) != 1 || !provider.IsCode(errs[0], provider.CodeCacheFailed) {
		t.Errorf("Errors() = %v", errs)
	}
	if !strings.HasPrefix(errs[0].Error(), "Halloween (1978): ") {
		t.Errorf("error not labeled: %v", errs[0])
	}
}

func TestPipelineDedupesCandidates(t *testing.T) {
	var calls int
	var mu sync.Mutex
	pipeline := NewPipeline(PipelineConfig{
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil, nil
		}},
	})

	summary := pipeline.Run(context.Background(), []media.MovieCandidate{horror[0], horror[0], horror[1]})
	if summary.Total != 2 || calls != 2 {
		t.Errorf("total = %d, calls = %d, want 2/2", summary.Total, calls)
	}
}

func TestPipelineCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	pipeline := NewPipeline(PipelineConfig{
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		Workers: 2,
	})

	events := pipeline.Start(ctx, horror)
	<-started
	cancel()
	drain(events)

	summary := pipeline.SummarySnapshot()
	if !summary.Canceled || summary.Done {
		t.Errorf("summary = %+v, want canceled", summary)
	}
	if len(pipeline.Errors()) != 0 {
		t.Errorf("cancellation reported as failure: %v", pipeline.Errors())
	}
}

func TestPipelineWorkerLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	pipeline := NewPipeline(PipelineConfig{
		Resolver: fakeResolver{search: func(ctx context.Context, m media.MovieCandidate) ([]media.TorrentResult, error) {
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		}},
		Workers: 2,
	})

	pipeline.Run(context.Background(), horror)
	if maxSeen > 2 {
		t.Errorf("max concurrent workers = %d, want <= 2", maxSeen)
	}
}
