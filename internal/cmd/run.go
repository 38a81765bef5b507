package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/config"
	"github.com/Digital-Shane/reelrunner/internal/core"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider/debrid"
	"github.com/Digital-Shane/reelrunner/internal/provider/jellyfin"
	"github.com/Digital-Shane/reelrunner/internal/provider/omdb"
	"github.com/Digital-Shane/reelrunner/internal/provider/tmdb"
	"github.com/Digital-Shane/reelrunner/internal/provider/torrent"
	"github.com/Digital-Shane/reelrunner/internal/provider/tunarr"
	"github.com/Digital-Shane/reelrunner/internal/proxy"
	"github.com/Digital-Shane/reelrunner/internal/ratelimit"
	"github.com/Digital-Shane/reelrunner/internal/store"
	"github.com/Digital-Shane/reelrunner/internal/tui/progress"
	"github.com/Digital-Shane/reelrunner/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

// runner carries the settings of one invocation.
type runner struct {
	opts options
	cfg  *config.Config
	in   io.Reader
	out  io.Writer

	reader *bufio.Reader
}

// confirm asks a y/N question unless prompts are bypassed.
func (r *runner) confirm(format string, args ...any) bool {
	if r.opts.bypass {
		return true
	}
	if r.reader == nil {
		r.reader = bufio.NewReader(r.in)
	}
	fmt.Fprintf(r.out, format+" [y/N] ", args...)
	line, err := r.reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(r.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (r *runner) run(ctx context.Context) error {
	stages := []config.Stage{config.StageSearch}
	if r.opts.verify {
		stages = append(stages, config.StageVerify)
	}
	if !r.opts.dryRun {
		stages = append(stages, config.StageCache, config.StageCatalog)
	}
	if err := r.cfg.Validate(stages...); err != nil {
		return err
	}

	search, err := r.searchClient()
	if err != nil {
		return err
	}
	defer func() {
		if err := search.SaveCache(); err != nil {
			log.WithError(err).Warn("Failed to save TMDB cache")
		}
	}()

	query, movies, err := searchMovies(ctx, search, r.opts, r.cfg.MovieLimit)
	if err != nil {
		printSuggestions(r.out, err)
		return err
	}
	if len(movies) == 0 {
		fmt.Fprintf(r.out, "No movies found for %q.\n", query)
		printSuggestions(r.out, nil, search.Suggestions()...)
		return nil
	}
	name := core.CollectionName(query)
	printCandidates(r.out, name, movies)

	pcfg := core.PipelineConfig{
		Resolver: r.resolver(ctx),
		Workers:  r.cfg.WorkerCount,
		DryRun:   r.opts.dryRun,
	}
	if r.opts.verify {
		verifier, err := omdb.NewVerifier(r.cfg.OMDBAPIKey, nil)
		if err != nil {
			return err
		}
		pcfg.Verifier = verifier
	}

	var library *jellyfin.Client
	if !r.opts.dryRun {
		library = jellyfin.NewClient(jellyfin.Config{Server: r.cfg.JellyfinServer, APIKey: r.cfg.JellyfinAPIKey})
		pcfg.Library = library

		account := debrid.NewClient(debrid.Config{BaseURL: r.cfg.RealDebridAPIURL, APIKey: r.cfg.RealDebridAPIKey})
		if err := checkAccount(ctx, r.out, account); err != nil {
			return err
		}
		if !r.confirm("Cache up to %d movies on Real-Debrid?", len(movies)) {
			return nil
		}

		ledger, err := openLedger(r.cfg)
		if err != nil {
			return err
		}
		defer ledger.Close()

		cacher := debrid.NewCacher(account, ledger, debrid.CacherConfig{
			PollInterval: time.Duration(r.cfg.DebridPollSeconds) * time.Second,
			PollAttempts: r.cfg.DebridPollAttempts,
		})
		if err := cacher.Seed(ctx); err != nil {
			log.WithError(err).Warn("Could not read existing Real-Debrid torrents")
		}
		pcfg.Cacher = cacher
	}

	pipeline := core.NewPipeline(pcfg)
	summary, err := r.runPipeline(ctx, pipeline, movies, name)
	if err != nil {
		return err
	}
	printSummary(r.out, summary, pipeline.Errors())
	if summary.Canceled {
		return context.Canceled
	}

	if r.opts.dryRun {
		printResolved(r.out, pipeline.Results())
		return nil
	}

	cached := pipeline.Cached()
	if len(cached) == 0 {
		fmt.Fprintln(r.out, "Nothing new was cached.")
		return nil
	}
	if !r.confirm("Add %d movies to the Jellyfin collection %q?", len(cached), name) {
		return nil
	}

	wait := time.Duration(r.cfg.SyncWaitSeconds) * time.Second
	fmt.Fprintf(r.out, "Waiting %s for the mount to sync...\n", wait)
	if err := core.SyncWait(ctx, wait); err != nil {
		return err
	}

	organizer := jellyfin.NewOrganizer(library, time.Duration(r.cfg.ScanSettleSeconds)*time.Second)
	report, err := core.Catalog(ctx, organizer, name, cached)
	if err != nil {
		return fmt.Errorf("updating collection %q: %w", name, err)
	}
	fmt.Fprintf(r.out, "Collection %q: %d added, %d already present, %d not in library.\n",
		report.Collection.Name, len(report.Added), len(report.Present), len(report.Missing))

	if r.opts.noChannel || !r.cfg.HasTunarr() {
		return nil
	}
	if !r.confirm("Schedule the collection on channel %q?", tunarr.ChannelName(name)) {
		return nil
	}
	provisioner := tunarr.NewClient(tunarr.Config{
		Server:            r.cfg.TunarrServer,
		TranscodeConfigID: r.cfg.TunarrTranscodeConfigID,
	})
	channel, err := core.Channel(ctx, provisioner, library, search, name, core.ChannelGroup(r.opts.person != ""), cached)
	if err != nil {
		return fmt.Errorf("provisioning channel: %w", err)
	}
	verb := "Updated"
	if channel.Created {
		verb = "Created"
	}
	fmt.Fprintf(r.out, "%s channel %d %q: %d programs added, %d already scheduled.\n",
		verb, channel.Channel.Number, channel.Channel.Name, len(channel.Added), len(channel.Skipped))
	return nil
}

func (r *runner) searchClient() (*tmdb.Client, error) {
	cacheFile, err := config.DataPath("tmdb_cache.gob")
	if err != nil {
		return nil, err
	}
	return tmdb.New(tmdb.Config{
		APIKey:     r.cfg.TMDBAPIKey,
		Language:   r.cfg.TMDBLanguage,
		CacheFile:  cacheFile,
		CacheHours: r.cfg.TMDBCacheHours,
		Limiter:    ratelimit.TMDB(),
	})
}

// resolver builds the indexer resolver, routing scrapes through the proxy
// pool when proxies are enabled.
func (r *runner) resolver(ctx context.Context) *torrent.Resolver {
	client := &http.Client{Timeout: 30 * time.Second}
	if r.cfg.EnableProxies {
		pool := proxy.NewPool(proxy.Config{ListURL: r.cfg.ProxyListURL, Workers: r.cfg.WorkerCount})
		if err := pool.Refresh(ctx); err != nil {
			log.WithError(err).Warn("Proxy list unavailable, scraping directly")
		} else {
			client.Transport = pool.Transport()
			log.WithField("proxies", pool.Len()).Info("Scraping through proxies")
		}
	}
	return torrent.NewResolver(torrent.Config{
		Quality:      media.ParseResolution(r.cfg.Quality),
		MinSeeders:   r.cfg.MinSeeders,
		PerSiteLimit: r.cfg.PerSiteLimit,
	}, torrent.DefaultSites(client)...)
}

// runPipeline runs the pipeline behind the interactive display, or logs its
// events when output is plain.
func (r *runner) runPipeline(ctx context.Context, pipeline *core.Pipeline, movies []media.MovieCandidate, name string) (core.Summary, error) {
	if r.opts.plain {
		return progress.LogEvents(pipeline.Start(ctx, movies)), nil
	}

	title := fmt.Sprintf("Caching %s (%d movies)", name, len(movies))
	if r.opts.dryRun {
		title = fmt.Sprintf("Resolving %s (%d movies)", name, len(movies))
	}
	model := progress.NewPipelineModel(ctx, pipeline, movies, title, theme.Default())
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return core.Summary{}, fmt.Errorf("progress display failed: %w", err)
	}
	pm, ok := final.(*progress.PipelineModel)
	if !ok {
		return core.Summary{}, fmt.Errorf("unexpected model type %T after pipeline", final)
	}
	summary := pm.Summary()
	summary.Canceled = pm.Canceled()
	return summary, nil
}

// checkAccount refuses to cache on an account without premium time.
func checkAccount(ctx context.Context, out io.Writer, account *debrid.Client) error {
	user, err := account.User(ctx)
	if err != nil {
		return fmt.Errorf("checking Real-Debrid account: %w", err)
	}
	if !user.Premium() {
		return fmt.Errorf("Real-Debrid account %s has no premium time left", user.Username)
	}
	fmt.Fprintf(out, "Real-Debrid: %s, premium for %d more days.\n", user.Username, user.DaysLeft())
	return nil
}

// openLedger opens the persistent hash ledger, or an in-memory one when it
// is disabled.
func openLedger(cfg *config.Config) (*store.Ledger, error) {
	if !cfg.EnableLedger {
		return store.Memory(), nil
	}
	path, err := config.DataPath("ledger.db")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	ledger, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening hash ledger: %w", err)
	}
	return ledger, nil
}

func printCandidates(out io.Writer, name string, movies []media.MovieCandidate) {
	fmt.Fprintf(out, "Found %d movies for %q:\n", len(movies), name)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, m := range movies {
		fmt.Fprintf(tw, "  %d.\t%s\t%.1f\n", i+1, m.Label(), m.Score)
	}
	tw.Flush()
}

func printResolved(out io.Writer, results []core.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, res := range results {
		if res.Outcome != core.OutcomeResolved {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d seeders\t%s\n", res.Movie.Label(), res.Torrent.Resolution, res.Torrent.Seeders, res.Torrent.Name)
	}
	tw.Flush()
}

func printSummary(out io.Writer, s core.Summary, errs []error) {
	fmt.Fprintf(out, "Processed %d/%d: %d resolved, %d cached, %d already in library, %d failed.\n",
		s.Processed, s.Total, s.Resolved, s.Cached, s.Skipped, s.Failed)
	for _, err := range errs {
		fmt.Fprintf(out, "  - %v\n", err)
	}
}
