package tmdb

import (
	"sort"
	"strings"
)

// GenreKeywords and ThemeKeywords seed --random and zero-result suggestions.
var (
	GenreKeywords = []string{
		"horror", "comedy", "drama", "adventure", "fantasy",
		"mystery", "crime", "thriller", "romance", "animation",
		"documentary", "family", "western", "history",
		"biography", "sport", "reality",
	}

	ThemeKeywords = []string{
		"antihero", "female protagonist", "superhero", "mcu",
		"disaster", "live action", "based on young adult novel",
		"based on video game", "based on comic", "based on novel",
		"based on true story", "time travel", "space", "alien",
		"zombie", "vampire", "werewolf", "robot", "dystopia",
		"post-apocalyptic", "heist", "con artist", "spy",
		"mafia", "gangster", "interspecies romance",
	}
)

// Discover parameters per mood. Genre ids are TMDB's.
var presets = map[string]map[string]string{
	"nostalgia": {
		"primary_release_date.gte": "1980-01-01",
		"primary_release_date.lte": "1999-12-31",
		"vote_average.gte":         "7.0",
		"with_genres":              "10751|35", // family, comedy
		"sort_by":                  "vote_average.desc",
	},
	"date night": {
		"with_genres":      "10749", // romance
		"without_genres":   "27",    // horror
		"vote_average.gte": "7.0",
		"sort_by":          "popularity.desc",
	},
	"mind bending": {
		"with_genres":      "878|53", // sci-fi, thriller
		"with_keywords":    "5391",   // plot twist
		"vote_average.gte": "7.5",
		"sort_by":          "vote_count.desc",
	},
	"hidden gems": {
		"vote_average.gte": "7.5",
		"vote_count.gte":   "1000",
		"vote_count.lte":   "5000",
		"sort_by":          "vote_average.desc",
	},
	"critically acclaimed": {
		"vote_average.gte": "8.0",
		"vote_count.gte":   "5000",
		"sort_by":          "vote_average.desc",
	},
	"cult classics": {
		"with_keywords":  "1701", // cult film
		"vote_count.gte": "500",
		"vote_count.lte": "2000",
		"sort_by":        "vote_average.desc",
	},
	"80s action": {
		"primary_release_date.gte": "1980-01-01",
		"primary_release_date.lte": "1989-12-31",
		"with_genres":              "28", // action
		"vote_average.gte":         "6.5",
		"sort_by":                  "popularity.desc",
	},
	"family fun": {
		"with_genres":      "10751",
		"vote_average.gte": "6.0",
		"sort_by":          "popularity.desc",
	},
	"oscar winners": {
		"with_keywords":    "155570", // oscar (academy award) winner
		"vote_average.gte": "7.0",
		"sort_by":          "vote_average.desc",
	},
	"indie films": {
		"vote_count.gte":   "200",
		"vote_count.lte":   "2000",
		"vote_average.gte": "7.0",
		"sort_by":          "vote_average.desc",
	},
	"blockbusters": {
		"vote_count.gte": "10000",
		"sort_by":        "revenue.desc",
	},
	"foreign films": {
		"with_original_language": "ja|fr|de|es|ko|it",
		"vote_average.gte":       "6.5",
		"sort_by":                "vote_average.desc",
	},
}

// Presets returns the mood names in alphabetical order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the discover options for mood. Names match
// case-insensitively and treat '_' and '-' as spaces.
func Preset(mood string) (map[string]string, bool) {
	p, ok := presets[normalizeMood(mood)]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, true
}

func normalizeMood(mood string) string {
	mood = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(mood))
	return strings.Join(strings.Fields(mood), " ")
}

// Suggestions returns one theme keyword and one genre keyword to try when a
// search comes back empty.
func (c *Client) Suggestions() []string {
	return []string{
		ThemeKeywords[c.pick(len(ThemeKeywords))],
		GenreKeywords[c.pick(len(GenreKeywords))],
	}
}

// RandomKeyword picks a keyword from the genre and theme lists.
func (c *Client) RandomKeyword() string {
	all := len(GenreKeywords) + len(ThemeKeywords)
	i := c.pick(all)
	if i < len(GenreKeywords) {
		return GenreKeywords[i]
	}
	return ThemeKeywords[i-len(GenreKeywords)]
}
