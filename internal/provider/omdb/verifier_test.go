package omdb

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

const alienJSON = `{
    "Title": "Alien",
    "Year": "1979",
    "Runtime": "117 min",
    "Genre": "Horror, Sci-Fi",
    "imdbRating": "8.5",
    "imdbID": "tt0078748",
    "Type": "movie",
    "Response": "True"
}`

func TestNewVerifierRequiresAPIKey(t *testing.T) {
	if _, err := NewVerifier("  ", nil); err == nil {
		t.Fatal("NewVerifier() error = nil, want error for empty key")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name      string
		movie     media.MovieCandidate
		wantMatch bool
	}{
		{
			name:      "by_imdb_id",
			movie:     media.MovieCandidate{Title: "Alien", Year: "1979", ImdbID: "tt0078748"},
			wantMatch: true,
		},
		{
			name:      "by_title_within_tolerance",
			movie:     media.MovieCandidate{Title: "Alien", Year: "1980"},
			wantMatch: true,
		},
		{
			name:      "year_mismatch",
			movie:     media.MovieCandidate{Title: "Alien", Year: "2003"},
			wantMatch: false,
		},
		{
			name:      "unknown_year_is_lenient",
			movie:     media.MovieCandidate{Title: "Alien"},
			wantMatch: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var query string
			v, err := NewVerifier("testing", newTestClient(func(req *http.Request) (*http.Response, error) {
				query = req.URL.RawQuery
				return jsonResponse(200, alienJSON), nil
			}))
			if err != nil {
				t.Fatalf("NewVerifier() error = %v", err)
			}

			verdict, err := v.Verify(context.Background(), tc.movie)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if verdict.Match != tc.wantMatch {
				t.Errorf("Verify().Match = %v, want %v (reason %q)", verdict.Match, tc.wantMatch, verdict.Reason)
			}
			if !tc.wantMatch && verdict.Reason == "" {
				t.Error("mismatch without a reason")
			}
			if verdict.ImdbID != "tt0078748" || verdict.Year != "1979" {
				t.Errorf("verdict = %+v", verdict)
			}
			if verdict.ImdbRating != 8.5 {
				t.Errorf("Verify().ImdbRating = %v, want 8.5", verdict.ImdbRating)
			}
			if tc.movie.ImdbID != "" && !strings.Contains(query, "tt0078748") {
				t.Errorf("query %q does not use the IMDb id", query)
			}
		})
	}
}

func TestVerifyNotFound(t *testing.T) {
	v, err := NewVerifier("testing", newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"Response": "False", "Error": "Movie not found!"}`), nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	verdict, err := v.Verify(context.Background(), media.MovieCandidate{Title: "Nope", Year: "2001"})
	if err != nil && !provider.IsCode(err, provider.CodeNotFound) {
		t.Fatalf("Verify() error = %v, want nil or NOT_FOUND", err)
	}
	if verdict.Match {
		t.Error("Verify().Match = true for unknown movie")
	}
}

func TestVerifyCanceled(t *testing.T) {
	v, err := NewVerifier("testing", newTestClient(func(*http.Request) (*http.Response, error) {
		t.Fatal("request made after cancel")
		return nil, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Verify(ctx, media.MovieCandidate{Title: "Alien"}); err == nil {
		t.Error("Verify() error = nil, want context error")
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		msg  string
		code string
	}{
		{"Invalid API key!", provider.CodeAuthFailed},
		{"Movie not found!", provider.CodeNotFound},
		{"Request limit reached!", provider.CodeRateLimited},
		{"something else", provider.CodeUnknown},
	}
	for _, tc := range tests {
		if got := provider.CodeOf(mapError(errString(tc.msg))); got != tc.code {
			t.Errorf("mapError(%q) code = %s, want %s", tc.msg, got, tc.code)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
