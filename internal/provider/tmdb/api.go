package tmdb

import (
	tmdb "github.com/ryanbradynd05/go-tmdb"
)

// MovieSummary is a movie as listed by discover.
type MovieSummary struct {
	ID          int
	Title       string
	ReleaseDate string
	Popularity  float64
	VoteAverage float64
}

// MoviePage is one page of discover results.
type MoviePage struct {
	Movies     []MovieSummary
	TotalPages int
}

// Credit is a movie a person appeared in.
type Credit struct {
	ID          int
	Title       string
	ReleaseDate string
}

// MovieDetails holds the fields read from /movie/{id}.
type MovieDetails struct {
	ID          int
	Title       string
	ReleaseDate string
	Overview    string
	ImdbID      string
	Runtime     int
	Popularity  float64
	VoteAverage float64
	Countries   []string // production countries, ISO 3166-1
}

// Certification is a movie's content rating in one country.
type Certification struct {
	Country string
	Rating  string
}

// TMDBClient is the subset of TMDB used for searching. It is satisfied by a
// thin adapter over *tmdb.TMDb and by fakes in tests.
type TMDBClient interface {
	SearchKeyword(name string, options map[string]string) ([]Keyword, error)
	SearchPerson(name string, options map[string]string) ([]Person, error)
	PersonMovieCredits(id int, options map[string]string) ([]Credit, error)
	DiscoverMovie(options map[string]string) (MoviePage, error)
	MovieInfo(id int, options map[string]string) (MovieDetails, error)
	MovieCertifications(id int) ([]Certification, error)
}

// goTMDB adapts go-tmdb responses to the local types.
type goTMDB struct {
	db *tmdb.TMDb
}

func newAPI(apiKey string) *goTMDB {
	return &goTMDB{db: tmdb.Init(tmdb.Config{
		APIKey:   apiKey,
		Proxies:  nil,
		UseProxy: false,
	})}
}

func (g *goTMDB) SearchKeyword(name string, options map[string]string) ([]Keyword, error) {
	res, err := g.db.SearchKeyword(name, options)
	if err != nil || res == nil {
		return nil, err
	}
	keywords := make([]Keyword, 0, len(res.Results))
	for _, r := range res.Results {
		keywords = append(keywords, Keyword{ID: r.ID, Name: r.Name})
	}
	return keywords, nil
}

func (g *goTMDB) SearchPerson(name string, options map[string]string) ([]Person, error) {
	res, err := g.db.SearchPerson(name, options)
	if err != nil || res == nil {
		return nil, err
	}
	people := make([]Person, 0, len(res.Results))
	for _, r := range res.Results {
		people = append(people, Person{ID: r.ID, Name: r.Name})
	}
	return people, nil
}

func (g *goTMDB) PersonMovieCredits(id int, options map[string]string) ([]Credit, error) {
	res, err := g.db.GetPersonMovieCredits(id, options)
	if err != nil || res == nil {
		return nil, err
	}
	credits := make([]Credit, 0, len(res.Cast))
	for _, c := range res.Cast {
		credits = append(credits, Credit{ID: c.ID, Title: c.Title, ReleaseDate: c.ReleaseDate})
	}
	return credits, nil
}

func (g *goTMDB) DiscoverMovie(options map[string]string) (MoviePage, error) {
	res, err := g.db.DiscoverMovie(options)
	if err != nil || res == nil {
		return MoviePage{}, err
	}
	page := MoviePage{TotalPages: int(res.TotalPages)}
	for _, m := range res.Results {
		page.Movies = append(page.Movies, MovieSummary{
			ID:          m.ID,
			Title:       m.Title,
			ReleaseDate: m.ReleaseDate,
			Popularity:  float64(m.Popularity),
			VoteAverage: float64(m.VoteAverage),
		})
	}
	return page, nil
}

func (g *goTMDB) MovieInfo(id int, options map[string]string) (MovieDetails, error) {
	m, err := g.db.GetMovieInfo(id, options)
	if err != nil || m == nil {
		return MovieDetails{}, err
	}
	details := MovieDetails{
		ID:          m.ID,
		Title:       m.Title,
		ReleaseDate: m.ReleaseDate,
		Overview:    m.Overview,
		ImdbID:      m.ImdbID,
		Runtime:     int(m.Runtime),
		Popularity:  float64(m.Popularity),
		VoteAverage: float64(m.VoteAverage),
	}
	for _, pc := range m.ProductionCountries {
		details.Countries = append(details.Countries, pc.Iso3166_1)
	}
	return details, nil
}

// MovieCertifications reads /movie/{id}/releases, which lists one
// certification per country.
func (g *goTMDB) MovieCertifications(id int) ([]Certification, error) {
	res, err := g.db.GetMovieReleases(id, nil)
	if err != nil || res == nil {
		return nil, err
	}
	certs := make([]Certification, 0, len(res.Countries))
	for _, c := range res.Countries {
		certs = append(certs, Certification{Country: c.Iso3166_1, Rating: c.Certification})
	}
	return certs, nil
}
