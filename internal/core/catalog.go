package core

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/provider/jellyfin"
	"github.com/Digital-Shane/reelrunner/internal/provider/tunarr"
	log "github.com/sirupsen/logrus"
)

// Organizer files movies into a named media server collection.
type Organizer interface {
	Organize(ctx context.Context, name string, movies []media.MovieCandidate) (jellyfin.Report, error)
}

// MovieFinder looks a movie up in the media server.
type MovieFinder interface {
	FindMovie(ctx context.Context, title, year string) (jellyfin.Item, error)
}

// DetailSource fills runtime, overview, release date and external ids for a
// movie, and looks up its content rating.
type DetailSource interface {
	Details(ctx context.Context, id int) (media.MovieCandidate, error)
	Certification(ctx context.Context, id int, country string) (string, error)
}

// Provisioner builds a scheduled channel from entries.
type Provisioner interface {
	Provision(ctx context.Context, name, group string, entries []tunarr.Entry) (tunarr.Report, error)
}

// CollectionName title-cases a keyword, mood or person name.
func CollectionName(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// ChannelGroup is the channel group for a search: person searches build a
// filmography.
func ChannelGroup(personSearch bool) string {
	if personSearch {
		return tunarr.GroupFilmography
	}
	return tunarr.GroupMovies
}

// SyncWait blocks for d so the mount can pick up newly cached torrents.
func SyncWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Catalog adds the cached movies to the collection called name.
func Catalog(ctx context.Context, organizer Organizer, name string, cached []media.CachedItem) (jellyfin.Report, error) {
	movies := make([]media.MovieCandidate, 0, len(cached))
	for _, item := range cached {
		movies = append(movies, item.Movie)
	}

	report, err := organizer.Organize(ctx, name, movies)
	if err != nil {
		oplog.LogOperation(oplog.OpCollect, name, "", err)
		return report, err
	}
	for _, m := range report.Added {
		oplog.LogOperation(oplog.OpCollect, m.Label(), name, nil)
	}
	for _, m := range report.Missing {
		oplog.LogOperation(oplog.OpCollect, m.Label(), name, &provider.ProviderError{
			Provider: "jellyfin",
			Code:     provider.CodeCatalogMismatch,
			Message:  "not in library",
		})
	}
	log.WithFields(log.Fields{
		"collection": report.Collection.Name,
		"added":      len(report.Added),
		"present":    len(report.Present),
		"missing":    len(report.Missing),
	}).Info("Collection updated")
	return report, nil
}

// Channel schedules the cached movies the library holds on the 24/7
// channel for name.
func Channel(ctx context.Context, provisioner Provisioner, library MovieFinder, details DetailSource, name, group string, cached []media.CachedItem) (tunarr.Report, error) {
	var entries []tunarr.Entry
	for _, item := range cached {
		movie := item.Movie
		found, err := library.FindMovie(ctx, movie.Title, movie.Year)
		if err != nil {
			if ctx.Err() != nil {
				return tunarr.Report{}, ctx.Err()
			}
			log.WithFields(log.Fields{"movie": movie.Label(), "err": err}).Warn("Skipping channel entry")
			oplog.LogOperation(oplog.OpChannel, movie.Label(), name, err)
			continue
		}

		var rating string
		if details != nil && movie.ID != 0 {
			full, err := details.Details(ctx, movie.ID)
			switch {
			case err == nil:
				movie = full
			case ctx.Err() != nil:
				return tunarr.Report{}, ctx.Err()
			default:
				log.WithFields(log.Fields{"movie": movie.Label(), "err": err}).Debug("Using search data for channel entry")
			}

			rating, err = details.Certification(ctx, movie.ID, movie.Country)
			if err != nil {
				if ctx.Err() != nil {
					return tunarr.Report{}, ctx.Err()
				}
				log.WithFields(log.Fields{"movie": movie.Label(), "err": err}).Debug("No certification for channel entry")
			}
		}
		entries = append(entries, channelEntry(movie, found.ID, rating))
	}

	report, err := provisioner.Provision(ctx, name, group, entries)
	if err != nil {
		oplog.LogOperation(oplog.OpChannel, tunarr.ChannelName(name), "", err)
		return report, err
	}
	for _, title := range report.Added {
		oplog.LogOperation(oplog.OpChannel, title, report.Channel.Name, nil)
	}
	return report, nil
}

func channelEntry(movie media.MovieCandidate, itemID, rating string) tunarr.Entry {
	return tunarr.Entry{
		Title:       movie.Title,
		Summary:     movie.Overview,
		Year:        movie.Year,
		ReleaseDate: movie.ReleaseDate,
		Rating:      rating,
		Runtime:     time.Duration(movie.Runtime) * time.Minute,
		TMDBID:      movie.ID,
		ImdbID:      movie.ImdbID,
		ExternalKey: itemID,
	}
}
