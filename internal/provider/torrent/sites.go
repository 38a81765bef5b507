package torrent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/magnet"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// maxRows bounds how many search rows are read per site.
const maxRows = 10

// X1337 scrapes 1337x. Magnets live on the detail pages.
type X1337 struct{ scraper }

func NewX1337(client *http.Client) *X1337 {
	return &X1337{newScraper("1337x", "https://1337x.to", client)}
}

func (s *X1337) Search(ctx context.Context, query string) ([]media.TorrentResult, error) {
	target := fmt.Sprintf("%s/search/%s/1/", s.baseURL, strings.ReplaceAll(url.PathEscape(query), "%20", "+"))
	doc, err := s.document(ctx, target)
	if err != nil {
		return nil, err
	}

	var results []media.TorrentResult
	doc.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= maxRows {
			return false
		}
		cells := row.Find("td")
		link := cells.Eq(0).Find("a").Last()
		name := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		seeders, err := parseSeeders(cells.Eq(1).Text())
		if name == "" || !ok || err != nil {
			return true
		}
		results = append(results, media.TorrentResult{
			Name:    name,
			Source:  s.name,
			Seeders: seeders,
			Page:    s.absolute(href),
		})
		return true
	})
	return results, nil
}

// LimeTorrents scrapes limetorrent. Magnets live on the detail pages.
type LimeTorrents struct{ scraper }

func NewLimeTorrents(client *http.Client) *LimeTorrents {
	return &LimeTorrents{newScraper("LimeTorrents", "https://limetorrent.net", client)}
}

func (s *LimeTorrents) Search(ctx context.Context, query string) ([]media.TorrentResult, error) {
	target := fmt.Sprintf("%s/search.php?catname=&q=%s&orderby=DESC&order=seeders", s.baseURL, url.QueryEscape(query))
	doc, err := s.document(ctx, target)
	if err != nil {
		return nil, err
	}

	var results []media.TorrentResult
	doc.Find("table.table2 tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true // header
		}
		if i > maxRows {
			return false
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return true
		}
		name := strings.TrimSpace(cells.Eq(0).Find("div.tt-name").Text())
		href, ok := cells.Eq(0).Find("a.csprite_dl14").Attr("href")
		seeders, err := parseSeeders(cells.Eq(3).Text())
		if name == "" || !ok || err != nil {
			return true
		}
		results = append(results, media.TorrentResult{
			Name:    name,
			Source:  s.name,
			Seeders: seeders,
			Page:    s.absolute(href),
		})
		return true
	})
	return results, nil
}

// PirateBay scrapes a Pirate Bay mirror, which lists magnets inline.
type PirateBay struct{ scraper }

func NewPirateBay(client *http.Client) *PirateBay {
	return &PirateBay{newScraper("TPB", "https://tpb.party", client)}
}

func (s *PirateBay) Search(ctx context.Context, query string) ([]media.TorrentResult, error) {
	// the mirror only understands %20 separated queries
	target := fmt.Sprintf("%s/search/%s/1/99/0", s.baseURL, url.PathEscape(query))
	doc, err := s.document(ctx, target)
	if err != nil {
		return nil, err
	}

	var results []media.TorrentResult
	doc.Find("table#searchResult tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true
		}
		if i > maxRows {
			return false
		}
		cells := row.Find("td")
		if cells.Length() < 6 {
			return true
		}
		name := strings.TrimSpace(cells.Eq(1).Find("a").First().Text())
		link, ok := cells.Eq(3).Find(`a[href^="magnet:"]`).Attr("href")
		seeders, err := parseSeeders(cells.Eq(5).Text())
		if name == "" || !ok || err != nil {
			return true
		}
		results = append(results, media.TorrentResult{
			Name:    name,
			Magnet:  link,
			Source:  s.name,
			Seeders: seeders,
		})
		return true
	})
	return results, nil
}

// YTS queries the YTS JSON API. Magnets are built from the listed hashes.
type YTS struct{ scraper }

func NewYTS(client *http.Client) *YTS {
	return &YTS{newScraper("YTS", "https://yts.mx", client)}
}

type ytsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Movies []ytsMovie `json:"movies"`
	} `json:"data"`
}

type ytsMovie struct {
	Title    string       `json:"title"`
	Year     int          `json:"year"`
	Torrents []ytsTorrent `json:"torrents"`
}

type ytsTorrent struct {
	Hash    string `json:"hash"`
	Quality string `json:"quality"`
	Type    string `json:"type"`
	Seeds   int    `json:"seeds"`
}

func (s *YTS) Search(ctx context.Context, query string) ([]media.TorrentResult, error) {
	body, err := s.fetch(ctx, fmt.Sprintf("%s/api/v2/list_movies.json?query_term=%s", s.baseURL, url.QueryEscape(strings.ToLower(query))))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ytsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding YTS response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("YTS returned status %q", resp.Status)
	}

	wanted := normalizeQuery(query)
	var results []media.TorrentResult
	for _, movie := range resp.Data.Movies {
		// the query is "title year"; YTS titles carry no year
		title := normalizeQuery(movie.Title)
		if title == "" || !strings.Contains(wanted, title) {
			continue
		}
		for _, t := range movie.Torrents {
			link, err := magnet.Build(t.Hash, movie.Title, magnet.DefaultTrackers)
			if err != nil {
				log.WithFields(log.Fields{"site": s.name, "title": movie.Title, "err": err}).Debug("Skipping YTS torrent")
				continue
			}
			results = append(results, media.TorrentResult{
				Name:       fmt.Sprintf("%s (%d) [%s] [%s] [YTS]", movie.Title, movie.Year, t.Quality, t.Type),
				Magnet:     link,
				InfoHash:   strings.ToLower(t.Hash),
				Source:     s.name,
				Resolution: media.ParseResolution(t.Quality),
				Seeders:    t.Seeds,
			})
		}
	}
	return results, nil
}
