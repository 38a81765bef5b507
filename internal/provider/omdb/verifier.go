package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
)

const providerName = "omdb"

// yearTolerance absorbs festival versus theatrical release years.
const yearTolerance = 1

// Verdict is the outcome of cross-checking a candidate against OMDb.
type Verdict struct {
	Match      bool
	Year       string
	ImdbID     string
	ImdbRating float64
	Reason     string
}

// Verifier cross-checks TMDB candidates against OMDb.
type Verifier struct {
	client *omdb.Client
}

// NewVerifier creates a verifier. A nil httpClient gets a 10s timeout client.
func NewVerifier(apiKey string, httpClient *http.Client) (*Verifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("omdb api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{client: omdb.NewClient(apiKey, httpClient)}, nil
}

// Verify looks the candidate up by IMDb id when known, else by title and
// year. Candidates OMDb does not know, or whose year is off by more than one,
// do not match.
func (v *Verifier) Verify(ctx context.Context, movie media.MovieCandidate) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	var result any
	var err error
	if movie.ImdbID != "" {
		result, err = v.client.SearchByImdbID(omdb.QueryData{ImdbID: movie.ImdbID})
	} else {
		result, err = v.client.SearchByTitle(omdb.QueryData{
			Title:      movie.Title,
			Year:       movie.Year,
			SearchType: "movie",
		})
	}
	if err != nil {
		mapped := mapError(err)
		if provider.IsCode(mapped, provider.CodeNotFound) {
			return Verdict{Reason: "not found on OMDb"}, nil
		}
		return Verdict{}, mapped
	}

	var found omdb.MovieResult
	switch m := result.(type) {
	case omdb.MovieResult:
		found = m
	case *omdb.MovieResult:
		found = *m
	default:
		return Verdict{Reason: "OMDb record is not a movie"}, nil
	}

	verdict := Verdict{
		Year:       omdb.FirstYear(found.Year),
		ImdbID:     found.ImdbID,
		ImdbRating: float64(omdb.ParseRating(found.ImdbRating)),
		Match:      true,
	}
	if !yearsAgree(movie.Year, verdict.Year) {
		verdict.Match = false
		verdict.Reason = fmt.Sprintf("year %s does not match OMDb year %s", movie.Year, verdict.Year)
	}
	return verdict, nil
}

// yearsAgree is lenient when either side has no parseable year.
func yearsAgree(a, b string) bool {
	ya, errA := strconv.Atoi(a)
	yb, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return true
	}
	diff := ya - yb
	return diff >= -yearTolerance && diff <= yearTolerance
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
		}
	case strings.Contains(lower, "not found"):
		return provider.NotFound(providerName, "%s", msg)
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
		}
	}
}
