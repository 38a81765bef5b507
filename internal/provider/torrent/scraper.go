package torrent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Site is a torrent indexer.
type Site interface {
	Name() string
	Search(ctx context.Context, query string) ([]media.TorrentResult, error)
}

// DetailSite is a Site whose search page links to a detail page holding the
// magnet rather than listing it inline.
type DetailSite interface {
	Site
	Magnet(ctx context.Context, page string) (string, error)
}

// scraper holds the HTTP plumbing shared by the indexer sites.
type scraper struct {
	name    string
	baseURL string
	client  *http.Client
}

func newScraper(name, baseURL string, client *http.Client) scraper {
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	return scraper{name: name, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s scraper) Name() string { return s.name }

// fetch performs a GET and returns the body of a 2xx response.
func (s scraper) fetch(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &provider.ProviderError{
			Provider: s.name,
			Code:     provider.CodeUnavailable,
			Message:  fmt.Sprintf("%s request failed: %v", s.name, err),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, provider.StatusError(s.name, resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

func (s scraper) document(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := s.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s page: %w", s.name, err)
	}
	return doc, nil
}

// Magnet reads the first magnet link on a detail page.
func (s scraper) Magnet(ctx context.Context, page string) (string, error) {
	doc, err := s.document(ctx, page)
	if err != nil {
		return "", err
	}
	href, ok := doc.Find(`a[href^="magnet:"]`).First().Attr("href")
	if !ok {
		return "", provider.NotFound(s.name, "no magnet on %s", page)
	}
	return href, nil
}

// absolute resolves a site-relative link.
func (s scraper) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.baseURL + "/" + strings.TrimLeft(href, "/")
}

func parseSeeders(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}
