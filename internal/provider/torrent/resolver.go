package torrent

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/magnet"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/mozillazg/go-unidecode"
	log "github.com/sirupsen/logrus"
)

const providerName = "torrent"

// Config sets the release filters.
type Config struct {
	Quality      media.Resolution
	MinSeeders   int
	PerSiteLimit int
}

// Resolver finds the best release for a movie across indexer sites.
type Resolver struct {
	cfg   Config
	sites []Site
}

// NewResolver creates a resolver over sites, queried in the given order.
func NewResolver(cfg Config, sites ...Site) *Resolver {
	if cfg.MinSeeders <= 0 {
		cfg.MinSeeders = 5
	}
	if cfg.PerSiteLimit <= 0 {
		cfg.PerSiteLimit = 3
	}
	if cfg.Quality == media.ResolutionUnknown {
		cfg.Quality = media.Resolution1080
	}
	return &Resolver{cfg: cfg, sites: sites}
}

// DefaultSites returns every supported indexer sharing client.
func DefaultSites(client *http.Client) []Site {
	return []Site{
		NewX1337(client),
		NewLimeTorrents(client),
		NewYTS(client),
		NewPirateBay(client),
	}
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)

// normalizeQuery transliterates to ASCII, drops punctuation and collapses
// whitespace.
func normalizeQuery(s string) string {
	s = unidecode.Unidecode(s)
	s = nonAlnum.ReplaceAllString(s, "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Query builds the indexer search string for a movie.
func (r *Resolver) Query(movie media.MovieCandidate) string {
	q := unidecode.Unidecode(strings.TrimSpace(movie.Title + " " + movie.Year))
	q = nonAlnum.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

// Search returns every eligible release for movie, ranked best first. A
// failing site is logged and skipped.
func (r *Resolver) Search(ctx context.Context, movie media.MovieCandidate) ([]media.TorrentResult, error) {
	query := r.Query(movie)
	var all []media.TorrentResult

	for _, site := range r.sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := site.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithFields(log.Fields{"site": site.Name(), "query": query, "err": err}).Warn("Torrent site search failed")
			continue
		}
		all = append(all, r.shortlist(ctx, site, found)...)
	}

	Rank(all)
	return all, nil
}

// shortlist filters one site's listings, keeps the best PerSiteLimit and
// fetches magnets for those that only link a detail page.
func (r *Resolver) shortlist(ctx context.Context, site Site, found []media.TorrentResult) []media.TorrentResult {
	var listed []media.TorrentResult
	for _, t := range found {
		t = annotate(t)
		if r.acceptable(t) {
			listed = append(listed, t)
		}
	}
	Rank(listed)

	var kept []media.TorrentResult
	for _, t := range listed {
		if len(kept) >= r.cfg.PerSiteLimit {
			break
		}
		if t.Magnet == "" && t.Page != "" {
			detail, ok := site.(DetailSite)
			if !ok {
				continue
			}
			link, err := detail.Magnet(ctx, t.Page)
			if err != nil {
				log.WithFields(log.Fields{"site": site.Name(), "page": t.Page, "err": err}).Debug("Fetching magnet failed")
				continue
			}
			t.Magnet = link
		}
		if t.InfoHash == "" {
			hash, err := magnet.InfoHash(t.Magnet)
			if err != nil {
				continue
			}
			t.InfoHash = hash
		}
		if r.Eligible(t) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Best returns the top ranked release or a RESOLVER_MISS error.
func (r *Resolver) Best(ctx context.Context, movie media.MovieCandidate) (media.TorrentResult, error) {
	results, err := r.Search(ctx, movie)
	if err != nil {
		return media.TorrentResult{}, err
	}
	if len(results) == 0 {
		return media.TorrentResult{}, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeResolverMiss,
			Message:  fmt.Sprintf("no %s+ release with %d+ seeders for %s", r.cfg.Quality, r.cfg.MinSeeders, movie.Label()),
		}
	}
	return results[0], nil
}

// Eligible reports whether a release may be cached: enough seeders, at least
// the requested resolution, not a sample or theater recording, and a valid
// info hash.
func (r *Resolver) Eligible(t media.TorrentResult) bool {
	return r.acceptable(annotate(t)) && magnet.ValidHash(t.InfoHash)
}

func (r *Resolver) acceptable(t media.TorrentResult) bool {
	if t.Seeders < r.cfg.MinSeeders {
		return false
	}
	if t.Resolution < r.cfg.Quality {
		return false
	}
	if media.IsSample(t.Name) {
		return false
	}
	return !media.ParseRelease(t.Name).Rejected
}

// annotate fills resolution and quality from the release name.
func annotate(t media.TorrentResult) media.TorrentResult {
	rel := media.ParseRelease(t.Name)
	if t.Resolution == media.ResolutionUnknown {
		t.Resolution = rel.Resolution
	}
	if t.Quality == "" {
		t.Quality = rel.Quality
	}
	if rel.BluRay {
		t.Quality = "BluRay"
	}
	return t
}

// Rank orders releases by resolution, then disc sources, then seeders, then
// name.
func Rank(results []media.TorrentResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Resolution != b.Resolution {
			return a.Resolution > b.Resolution
		}
		if ab, bb := isBluRay(a), isBluRay(b); ab != bb {
			return ab
		}
		if a.Seeders != b.Seeders {
			return a.Seeders > b.Seeders
		}
		return a.Name < b.Name
	})
}

func isBluRay(t media.TorrentResult) bool {
	return strings.EqualFold(t.Quality, "bluray")
}
