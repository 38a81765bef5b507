package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/config"
	"github.com/Digital-Shane/reelrunner/internal/core"
	"github.com/Digital-Shane/reelrunner/internal/provider/debrid"
	"github.com/Digital-Shane/reelrunner/internal/provider/jellyfin"
	"github.com/Digital-Shane/reelrunner/internal/proxy"
)

// cleanup removes duplicate library movies and duplicate account torrents.
func (r *runner) cleanup(ctx context.Context) error {
	if err := r.cfg.Validate(config.StageCache, config.StageCatalog); err != nil {
		return err
	}
	if !r.confirm("Delete duplicate movies from Jellyfin and duplicate torrents from Real-Debrid?") {
		return nil
	}

	library := jellyfin.NewClient(jellyfin.Config{Server: r.cfg.JellyfinServer, APIKey: r.cfg.JellyfinAPIKey})
	account := debrid.NewClient(debrid.Config{BaseURL: r.cfg.RealDebridAPIURL, APIKey: r.cfg.RealDebridAPIKey})

	report, err := core.Cleanup(ctx, library, account, r.cfg.WorkerCount)
	fmt.Fprintf(r.out, "Deleted %d duplicate movies and %d duplicate torrents.\n",
		len(report.LibraryDeleted), len(report.DebridDeleted))
	for _, e := range report.Errors {
		fmt.Fprintf(r.out, "  - %v\n", e)
	}
	return err
}

// proxyTest fetches the proxy list and probes every entry.
func (r *runner) proxyTest(ctx context.Context) error {
	pool := proxy.NewPool(proxy.Config{ListURL: r.cfg.ProxyListURL, Workers: r.cfg.WorkerCount})
	results, err := pool.Test(ctx)
	if err != nil {
		return fmt.Errorf("testing proxies: %w", err)
	}

	working := 0
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, res := range results {
		if res.OK {
			working++
			fmt.Fprintf(tw, "  ok\t%s\t%s\n", res.Proxy, res.Latency.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(tw, "  failed\t%s\t%v\n", res.Proxy, res.Err)
	}
	tw.Flush()
	fmt.Fprintf(r.out, "%d of %d proxies working.\n", working, len(results))
	return nil
}
