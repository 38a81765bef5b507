package media

import (
	"fmt"
	"strings"
)

// MovieCandidate is a movie returned by a search, carried through the pipeline.
type MovieCandidate struct {
	ID          int
	Title       string
	Year        string
	ReleaseDate string // YYYY-MM-DD
	Score       float64
	Rating      float64
	Overview    string
	ImdbID      string
	Runtime     int    // minutes
	Country     string // ISO 3166-1 code of the first production country

	// Quality is the tier of the torrent chosen for this movie, if any.
	Quality Resolution
}

// Label returns "Title (Year)" or just the title when the year is unknown.
func (m MovieCandidate) Label() string {
	if m.Year == "" {
		return m.Title
	}
	return fmt.Sprintf("%s (%s)", m.Title, m.Year)
}

// Key identifies a candidate within a run.
func (m MovieCandidate) Key() string {
	if m.ID != 0 {
		return fmt.Sprintf("tmdb:%d", m.ID)
	}
	return "title:" + strings.ToLower(m.Label())
}

// TorrentResult is a single release found on an indexer.
type TorrentResult struct {
	Name       string
	Magnet     string
	InfoHash   string
	Source     string
	Resolution Resolution
	Quality    string
	Seeders    int

	// Page is the indexer detail page for sites that do not list magnets
	// inline. Magnet is filled from it only for shortlisted results.
	Page string
}

// CachedItem is a torrent the debrid service reports as cached.
type CachedItem struct {
	Hash      string
	TorrentID string
	Filename  string
	Status    string
	Links     []string
	Movie     MovieCandidate
}

// Collection is a named grouping in the media server.
type Collection struct {
	ID      string
	Name    string
	ItemIDs []string
}

// Channel is a scheduled channel derived from a collection.
type Channel struct {
	ID     string
	Number int
	Name   string
	Group  string
}
