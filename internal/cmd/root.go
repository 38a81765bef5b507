package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Digital-Shane/reelrunner/internal/config"
	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootCmd runs a search, cache and catalog pass when called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "reelrunner",
	Short: "Search, cache and catalog movies",
	Long: `reelrunner searches TMDB for movies by keyword, person or mood, finds the
best torrent for each one, caches it on Real-Debrid and files the results in a
Jellyfin collection. When Tunarr is configured the collection also becomes a
24/7 channel.

Maintenance modes clean up duplicates (--cleanup) and check the proxy list
(--test).`,
	Example: `  reelrunner -k horror -l 10
  reelrunner -p "John Carpenter" --quality 2160p
  reelrunner -m "date night" --dry-run
  reelrunner --cleanup --bypass`,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	keyword    string
	person     string
	mood       string
	random     bool
	limit      int
	workers    int
	cleanup    bool
	test       bool
	bypass     bool
	verify     bool
	quality    string
	minSeeders int
	noChannel  bool
	dryRun     bool
	plain      bool
	verbose    bool
}

var opts options

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.keyword, "keyword", "k", "", "Search movies tagged with a TMDB keyword")
	f.StringVarP(&opts.person, "person", "p", "", "Search the filmography of an actor or director")
	f.StringVarP(&opts.mood, "mood", "m", "", "Search with a mood preset (see 'reelrunner moods')")
	f.BoolVarP(&opts.random, "random", "r", false, "Search a random genre or theme keyword")
	f.IntVarP(&opts.limit, "limit", "l", 40, "Maximum number of movies to process")
	f.IntVarP(&opts.workers, "workers", "w", 10, "Number of movies processed in parallel")
	f.BoolVarP(&opts.cleanup, "cleanup", "c", false, "Delete duplicate Jellyfin movies and Real-Debrid torrents")
	f.BoolVarP(&opts.test, "test", "t", false, "Fetch and test the proxy list")
	f.BoolVarP(&opts.bypass, "bypass", "b", false, "Skip confirmation prompts")
	f.BoolVarP(&opts.verify, "verify", "v", false, "Cross-check candidates against OMDb")
	f.StringVar(&opts.quality, "quality", "1080p", "Preferred release quality (720p, 1080p, 2160p)")
	f.IntVar(&opts.minSeeders, "min-seeders", 5, "Minimum seeders for a release")
	f.BoolVar(&opts.noChannel, "no-channel", false, "Skip Tunarr channel provisioning")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Search and resolve only, without caching or cataloging")
	f.BoolVar(&opts.plain, "plain", false, "Log progress lines instead of the interactive display")
	f.BoolVar(&opts.verbose, "verbose", false, "Log at debug level regardless of the configured level")
}

func (o options) searchModes() int {
	n := 0
	for _, set := range []bool{o.keyword != "", o.person != "", o.mood != "", o.random} {
		if set {
			n++
		}
	}
	return n
}

func (o options) validate() error {
	modes := o.searchModes()
	switch {
	case o.cleanup && o.test:
		return errors.New("--cleanup and --test cannot be combined")
	case o.cleanup || o.test:
		if modes > 0 {
			return errors.New("--cleanup and --test do not take a search")
		}
		return nil
	case modes == 0:
		return errors.New("one of --keyword, --person, --mood or --random is required")
	case modes > 1:
		return errors.New("only one of --keyword, --person, --mood or --random may be given")
	case o.limit < 0:
		return fmt.Errorf("--limit must not be negative, got %d", o.limit)
	}
	return nil
}

// applyFlags copies explicitly set flags over cfg.
func (o options) applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("quality") {
		cfg.Quality = o.quality
	}
	if flags.Changed("min-seeders") && o.minSeeders > 0 {
		cfg.MinSeeders = o.minSeeders
	}
	if flags.Changed("workers") && o.workers > 0 {
		cfg.WorkerCount = o.workers
	}
	if flags.Changed("limit") {
		cfg.MovieLimit = o.limit
	}
}

func (o options) mode() string {
	switch {
	case o.cleanup:
		return "cleanup"
	case o.test:
		return "test"
	case o.dryRun:
		return "dry-run"
	}
	return "run"
}

func (o options) logOptions(cfg *config.Config, console io.Writer) oplog.Options {
	return oplog.Options{
		Level:      cfg.LogLevel,
		Verbose:    o.verbose,
		File:       cfg.EnableLogging,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogRetentionDays,
		Console:    console,
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.applyFlags(cmd.Flags(), cfg)
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		opts.plain = true
	}

	// the progress display owns the terminal unless output is plain
	var console io.Writer
	if opts.plain || opts.cleanup || opts.test {
		console = cmd.ErrOrStderr()
	}
	closer, err := oplog.Setup(opts.logOptions(cfg, console))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	oplog.Initialize(cfg.EnableLogging, cfg.LogRetentionDays)
	if err := oplog.StartSession(opts.mode(), os.Args[1:]); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to start session log: %v\n", err)
	}
	defer oplog.EndSession()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{opts: opts, cfg: cfg, in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	switch {
	case opts.test:
		return r.proxyTest(ctx)
	case opts.cleanup:
		return r.cleanup(ctx)
	}
	err = r.run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.out, "Canceled.")
		return nil
	}
	return err
}
