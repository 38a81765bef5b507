package tmdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
)

const (
	// personCandidates is how many person search results are compared by
	// credit count.
	personCandidates = 8
	maxDiscoverPages = 25
	defaultCountry   = "US"
)

// ResolveKeyword finds the TMDB keyword for name, preferring an exact
// case-insensitive match over the first result.
func (c *Client) ResolveKeyword(ctx context.Context, name string) (Keyword, error) {
	name = strings.TrimSpace(name)
	return cached(c, "keyword:"+strings.ToLower(name), func() (Keyword, error) {
		if err := c.wait(ctx); err != nil {
			return Keyword{}, err
		}
		keywords, err := c.api.SearchKeyword(name, map[string]string{"page": "1"})
		if err != nil {
			return Keyword{}, mapError(err)
		}
		if len(keywords) == 0 {
			return Keyword{}, c.notFound("keyword", name)
		}
		for _, k := range keywords {
			if strings.EqualFold(k.Name, name) {
				return k, nil
			}
		}
		return keywords[0], nil
	})
}

// ResolvePerson finds the person named name. Among the top results the one
// with the most movie cast credits wins, which skips namesakes with a single
// minor role.
func (c *Client) ResolvePerson(ctx context.Context, name string) (Person, error) {
	name = strings.TrimSpace(name)
	return cached(c, "person:"+strings.ToLower(name), func() (Person, error) {
		if err := c.wait(ctx); err != nil {
			return Person{}, err
		}
		people, err := c.api.SearchPerson(name, map[string]string{"include_adult": "false"})
		if err != nil {
			return Person{}, mapError(err)
		}
		if len(people) == 0 {
			return Person{}, c.notFound("person", name)
		}
		if len(people) > personCandidates {
			people = people[:personCandidates]
		}

		best := people[0]
		best.Credits = -1
		for _, p := range people {
			if err := c.wait(ctx); err != nil {
				return Person{}, err
			}
			credits, err := c.api.PersonMovieCredits(p.ID, map[string]string{"language": c.language})
			if err != nil {
				return Person{}, mapError(err)
			}
			if len(credits) > best.Credits {
				best = p
				best.Credits = len(credits)
			}
		}
		return best, nil
	})
}

// MoviesByKeyword lists the most popular movies tagged with keyword.
func (c *Client) MoviesByKeyword(ctx context.Context, keyword Keyword, limit int) ([]media.MovieCandidate, error) {
	if limit <= 0 {
		return []media.MovieCandidate{}, nil
	}
	key := fmt.Sprintf("movies:keyword:%d:%d", keyword.ID, limit)
	return cached(c, key, func() ([]media.MovieCandidate, error) {
		opts := map[string]string{
			"with_keywords": strconv.Itoa(keyword.ID),
			"sort_by":       "popularity.desc",
			"include_adult": "false",
			"language":      c.language,
		}
		return c.discover(ctx, opts, limit, byPopularity)
	})
}

// MoviesByPerson lists the movies person appeared in, scored by popularity.
// Credits without a release date are dropped.
func (c *Client) MoviesByPerson(ctx context.Context, person Person, limit int) ([]media.MovieCandidate, error) {
	if limit <= 0 {
		return []media.MovieCandidate{}, nil
	}
	key := fmt.Sprintf("movies:person:%d:%d", person.ID, limit)
	return cached(c, key, func() ([]media.MovieCandidate, error) {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		credits, err := c.api.PersonMovieCredits(person.ID, map[string]string{"language": c.language})
		if err != nil {
			return nil, mapError(err)
		}

		seen := make(map[int]bool)
		var movies []media.MovieCandidate
		for _, credit := range credits {
			if len(movies) >= limit {
				break
			}
			if credit.ReleaseDate == "" || seen[credit.ID] {
				continue
			}
			seen[credit.ID] = true

			movie, err := c.Details(ctx, credit.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// details are enrichment; keep the credit with what we know
				movie = media.MovieCandidate{ID: credit.ID, Title: credit.Title, Year: media.FirstYear(credit.ReleaseDate), ReleaseDate: credit.ReleaseDate}
			}
			movies = append(movies, movie)
		}

		if len(movies) == 0 {
			return nil, c.notFound("movies for person", person.Name)
		}
		sortCandidates(movies)
		return movies, nil
	})
}

// MoviesByMood lists movies matching a mood preset, scored by vote average.
func (c *Client) MoviesByMood(ctx context.Context, mood string, limit int) ([]media.MovieCandidate, error) {
	preset, ok := Preset(mood)
	if !ok {
		return nil, &provider.ProviderError{
			Provider:    providerName,
			Code:        provider.CodeNotFound,
			Message:     fmt.Sprintf("unknown mood %q", mood),
			Suggestions: Presets(),
		}
	}
	if limit <= 0 {
		return []media.MovieCandidate{}, nil
	}

	key := fmt.Sprintf("movies:mood:%s:%d", normalizeMood(mood), limit)
	return cached(c, key, func() ([]media.MovieCandidate, error) {
		opts := map[string]string{
			"sort_by":        "popularity.desc",
			"vote_count.gte": "1000",
			"include_adult":  "false",
			"language":       c.language,
		}
		for k, v := range preset {
			opts[k] = v
		}
		return c.discover(ctx, opts, limit, byVoteAverage)
	})
}

// Details looks up a single movie.
func (c *Client) Details(ctx context.Context, id int) (media.MovieCandidate, error) {
	return cached(c, fmt.Sprintf("movie:%d", id), func() (media.MovieCandidate, error) {
		if err := c.wait(ctx); err != nil {
			return media.MovieCandidate{}, err
		}
		m, err := c.api.MovieInfo(id, map[string]string{"language": c.language})
		if err != nil {
			return media.MovieCandidate{}, mapError(err)
		}
		if m.ID == 0 {
			return media.MovieCandidate{}, provider.NotFound(providerName, "movie %d not found", id)
		}
		movie := media.MovieCandidate{
			ID:          m.ID,
			Title:       m.Title,
			Year:        media.FirstYear(m.ReleaseDate),
			ReleaseDate: m.ReleaseDate,
			Score:       m.Popularity,
			Rating:      m.VoteAverage,
			Overview:    m.Overview,
			ImdbID:      m.ImdbID,
			Runtime:     m.Runtime,
		}
		if len(m.Countries) > 0 {
			movie.Country = m.Countries[0]
		}
		return movie, nil
	})
}

// Certification returns the content rating (PG-13, R, ...) for the movie in
// country, defaulting to US. An empty string means TMDB has none on record.
func (c *Client) Certification(ctx context.Context, id int, country string) (string, error) {
	if country == "" {
		country = defaultCountry
	}
	country = strings.ToUpper(country)
	return cached(c, fmt.Sprintf("certification:%d:%s", id, country), func() (string, error) {
		if err := c.wait(ctx); err != nil {
			return "", err
		}
		certs, err := c.api.MovieCertifications(id)
		if err != nil {
			return "", mapError(err)
		}
		for _, cert := range certs {
			if strings.EqualFold(cert.Country, country) && cert.Rating != "" {
				return cert.Rating, nil
			}
		}
		return "", nil
	})
}

type scoreFunc func(MovieSummary) float64

func byPopularity(m MovieSummary) float64  { return m.Popularity }
func byVoteAverage(m MovieSummary) float64 { return m.VoteAverage }

// discover pages through /discover/movie until limit movies are collected.
func (c *Client) discover(ctx context.Context, opts map[string]string, limit int, score scoreFunc) ([]media.MovieCandidate, error) {
	seen := make(map[int]bool)
	var movies []media.MovieCandidate

	for page := 1; page <= maxDiscoverPages && len(movies) < limit; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		opts["page"] = strconv.Itoa(page)
		res, err := c.api.DiscoverMovie(opts)
		if err != nil {
			return nil, mapError(err)
		}

		for _, m := range res.Movies {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			movies = append(movies, media.MovieCandidate{
				ID:          m.ID,
				Title:       m.Title,
				Year:        media.FirstYear(m.ReleaseDate),
				ReleaseDate: m.ReleaseDate,
				Score:       score(m),
				Rating:      m.VoteAverage,
			})
		}
		if len(res.Movies) == 0 || page >= res.TotalPages {
			break
		}
	}

	if len(movies) == 0 {
		return nil, &provider.ProviderError{
			Provider:    providerName,
			Code:        provider.CodeNotFound,
			Message:     "no movies found",
			Suggestions: c.Suggestions(),
		}
	}

	sortCandidates(movies)
	if len(movies) > limit {
		movies = movies[:limit]
	}
	return movies, nil
}

// sortCandidates orders by descending score, then title.
func sortCandidates(movies []media.MovieCandidate) {
	sort.SliceStable(movies, func(i, j int) bool {
		if movies[i].Score != movies[j].Score {
			return movies[i].Score > movies[j].Score
		}
		return movies[i].Title < movies[j].Title
	})
}

func (c *Client) notFound(kind, name string) *provider.ProviderError {
	return &provider.ProviderError{
		Provider:    providerName,
		Code:        provider.CodeNotFound,
		Message:     fmt.Sprintf("no %s found for %q", kind, name),
		Suggestions: c.Suggestions(),
	}
}
