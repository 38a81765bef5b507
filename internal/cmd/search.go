package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/provider/tmdb"
	log "github.com/sirupsen/logrus"
)

// movieSearch is the part of the TMDB client the search modes need.
type movieSearch interface {
	ResolveKeyword(ctx context.Context, name string) (tmdb.Keyword, error)
	ResolvePerson(ctx context.Context, name string) (tmdb.Person, error)
	MoviesByKeyword(ctx context.Context, keyword tmdb.Keyword, limit int) ([]media.MovieCandidate, error)
	MoviesByPerson(ctx context.Context, person tmdb.Person, limit int) ([]media.MovieCandidate, error)
	MoviesByMood(ctx context.Context, mood string, limit int) ([]media.MovieCandidate, error)
	RandomKeyword() string
}

// searchMovies runs the search mode selected by o and returns the query the
// collection is named after.
func searchMovies(ctx context.Context, s movieSearch, o options, limit int) (string, []media.MovieCandidate, error) {
	var (
		query  string
		movies []media.MovieCandidate
		err    error
	)

	switch {
	case o.person != "":
		query = strings.TrimSpace(o.person)
		var person tmdb.Person
		person, err = s.ResolvePerson(ctx, query)
		if err == nil {
			query = person.Name
			log.WithFields(log.Fields{"person": person.Name, "id": person.ID, "credits": person.Credits}).Info("Resolved person")
			movies, err = s.MoviesByPerson(ctx, person, limit)
		}
	case o.mood != "":
		query = strings.TrimSpace(o.mood)
		if _, ok := tmdb.Preset(query); !ok {
			return query, nil, fmt.Errorf("unknown mood %q, try one of: %s", query, strings.Join(tmdb.Presets(), ", "))
		}
		movies, err = s.MoviesByMood(ctx, query, limit)
	default:
		query = strings.TrimSpace(o.keyword)
		if o.random {
			query = s.RandomKeyword()
			log.WithField("keyword", query).Info("Picked random keyword")
		}
		var keyword tmdb.Keyword
		keyword, err = s.ResolveKeyword(ctx, query)
		if err == nil {
			movies, err = s.MoviesByKeyword(ctx, keyword, limit)
		}
	}

	detail := fmt.Sprintf("%d movies", len(movies))
	oplog.LogOperation(oplog.OpSearch, query, detail, err)
	if err != nil {
		return query, nil, fmt.Errorf("searching %q: %w", query, err)
	}
	return query, movies, nil
}

// printSuggestions lists alternative keywords carried by err, plus extra.
func printSuggestions(out io.Writer, err error, extra ...string) {
	suggestions := extra
	var provErr *provider.ProviderError
	if errors.As(err, &provErr) {
		suggestions = slices.Concat(provErr.Suggestions, extra)
	}
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintf(out, "Try: %s\n", strings.Join(suggestions, ", "))
}
