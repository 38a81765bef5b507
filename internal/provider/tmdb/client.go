package tmdb

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/ratelimit"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

const providerName = "tmdb"

var ErrInvalidAPIKey = errors.New("tmdb api key is required")

func init() {
	// go-cache persists values as interfaces; gob needs the concrete types
	// before a cache file written by an earlier run can be decoded.
	gob.Register([]media.MovieCandidate{})
	gob.Register(media.MovieCandidate{})
	gob.Register(Keyword{})
	gob.Register(Person{})
}

// Keyword is a TMDB keyword.
type Keyword struct {
	ID   int
	Name string
}

// Person is a TMDB person with the number of movie cast credits found while
// resolving them.
type Person struct {
	ID      int
	Name    string
	Credits int
}

// Config controls the search client.
type Config struct {
	APIKey   string
	Language string
	// CacheFile is where responses persist between runs. Empty disables
	// persistence but keeps the in-memory cache.
	CacheFile  string
	CacheHours int
	Limiter    *ratelimit.Limiter
}

// Client searches TMDB for movies by keyword, person or mood.
type Client struct {
	api       TMDBClient
	cache     *cache.Cache
	cacheFile string
	language  string
	limiter   *ratelimit.Limiter
	pick      func(n int) int
}

// New creates a search client backed by go-tmdb.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrInvalidAPIKey
	}
	return newClient(cfg, newAPI(cfg.APIKey)), nil
}

func newClient(cfg Config, api TMDBClient) *Client {
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	hours := cfg.CacheHours
	if hours <= 0 {
		hours = 168
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.TMDB()
	}

	c := &Client{
		api:       api,
		cache:     cache.New(time.Duration(hours)*time.Hour, 10*time.Minute),
		cacheFile: cfg.CacheFile,
		language:  language,
		limiter:   limiter,
		pick:      rand.IntN,
	}

	if c.cacheFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.cacheFile), 0755); err != nil {
			log.WithFields(log.Fields{"path": c.cacheFile, "err": err}).Warn("Creating TMDB cache directory")
		} else if _, err := os.Stat(c.cacheFile); err == nil {
			if err := c.cache.LoadFile(c.cacheFile); err != nil {
				log.WithFields(log.Fields{"path": c.cacheFile, "err": err}).Warn("Loading TMDB cache")
			}
		}
	}
	return c
}

// SaveCache persists the cache to disk
func (c *Client) SaveCache() error {
	if c.cache == nil || c.cacheFile == "" {
		return nil
	}
	return c.cache.SaveFile(c.cacheFile)
}

// cached runs fetch unless key is already cached.
func cached[T any](c *Client, key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.cache.Set(key, v, cache.DefaultExpiration)
	return v, nil
}

// wait blocks for the shared limiter.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// mapError maps go-tmdb errors, which only carry the status in their text,
// to provider errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
		}
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	case strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}
	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  fmt.Sprintf("TMDB error: %v", err),
	}
}
