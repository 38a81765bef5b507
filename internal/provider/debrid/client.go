package debrid

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/ratelimit"
)

const providerName = "realdebrid"

// DefaultBaseURL is the Real-Debrid REST root.
const DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"

// Config holds the Real-Debrid connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
}

// User is the authenticated account.
type User struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Type       string `json:"type"`
	Seconds    int64  `json:"premium"`
	Expiration string `json:"expiration"`
}

// Premium reports whether the account can cache torrents.
func (u User) Premium() bool {
	return u.Type == "premium"
}

// DaysLeft is the remaining premium time in whole days.
func (u User) DaysLeft() int {
	return int(u.Seconds / 86400)
}

// Torrent is a torrent held by the account.
type Torrent struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Bytes    int64    `json:"bytes"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Added    string   `json:"added"`
	Links    []string `json:"links"`
}

// AddResult is returned after a magnet is accepted.
type AddResult struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// Duplicate is a torrent whose hash was already held under another id.
type Duplicate struct {
	Name        string
	Hash        string
	OriginalID  string
	DuplicateID string
}

// Client talks to the Real-Debrid REST API.
type Client struct {
	rest *provider.REST
}

// NewClient creates a client. Every request waits on the limiter, which
// defaults to one request per two seconds.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.Debrid()
	}
	key := cfg.APIKey
	return &Client{rest: provider.NewREST(provider.RESTConfig{
		Provider:   providerName,
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Limiter:    cfg.Limiter,
		Authorize: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+key)
		},
	})}
}

func (c *Client) User(ctx context.Context) (User, error) {
	var u User
	err := c.rest.Do(ctx, provider.Request{Path: "/user"}, &u)
	return u, err
}

func (c *Client) Torrents(ctx context.Context) ([]Torrent, error) {
	var torrents []Torrent
	err := c.rest.Do(ctx, provider.Request{
		Path:  "/torrents",
		Query: url.Values{"limit": {"5000"}},
	}, &torrents)
	return torrents, err
}

func (c *Client) AddMagnet(ctx context.Context, magnet string) (AddResult, error) {
	var res AddResult
	err := c.rest.Do(ctx, provider.Request{
		Method: http.MethodPost,
		Path:   "/torrents/addMagnet",
		Form:   url.Values{"magnet": {magnet}},
	}, &res)
	return res, err
}

// SelectFiles starts the download of files, a comma separated id list or "all".
func (c *Client) SelectFiles(ctx context.Context, id, files string) error {
	if files == "" {
		files = "all"
	}
	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodPost,
		Path:   "/torrents/selectFiles/" + url.PathEscape(id),
		Form:   url.Values{"files": {files}},
	}, nil)
}

func (c *Client) Info(ctx context.Context, id string) (Torrent, error) {
	var t Torrent
	err := c.rest.Do(ctx, provider.Request{Path: "/torrents/info/" + url.PathEscape(id)}, &t)
	return t, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodDelete,
		Path:   "/torrents/delete/" + url.PathEscape(id),
	}, nil)
}

// Duplicates lists torrents that repeat a hash seen earlier in the account
// listing. The first torrent per hash is the original.
func (c *Client) Duplicates(ctx context.Context) ([]Duplicate, error) {
	torrents, err := c.Torrents(ctx)
	if err != nil {
		return nil, err
	}
	return findDuplicates(torrents), nil
}

func findDuplicates(torrents []Torrent) []Duplicate {
	first := make(map[string]string, len(torrents))
	var dups []Duplicate
	for _, t := range torrents {
		hash := strings.ToLower(t.Hash)
		if hash == "" {
			continue
		}
		if orig, ok := first[hash]; ok {
			dups = append(dups, Duplicate{
				Name:        t.Filename,
				Hash:        hash,
				OriginalID:  orig,
				DuplicateID: t.ID,
			})
			continue
		}
		first[hash] = t.ID
	}
	return dups
}
