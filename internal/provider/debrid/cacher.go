package debrid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/store"
	log "github.com/sirupsen/logrus"
)

// Torrent statuses reported by Real-Debrid.
const (
	StatusDownloaded   = "downloaded"
	StatusWaitingFiles = "waiting_files_selection"
	StatusMagnetError  = "magnet_error"
	StatusError        = "error"
	StatusVirus        = "virus"
	StatusDead         = "dead"
)

func failed(status string) bool {
	switch status {
	case StatusMagnetError, StatusError, StatusVirus, StatusDead:
		return true
	}
	return false
}

// API is the subset of the Real-Debrid client the cacher drives.
type API interface {
	Torrents(ctx context.Context) ([]Torrent, error)
	AddMagnet(ctx context.Context, magnet string) (AddResult, error)
	SelectFiles(ctx context.Context, id, files string) error
	Info(ctx context.Context, id string) (Torrent, error)
	Delete(ctx context.Context, id string) error
}

// CacherConfig tunes polling.
type CacherConfig struct {
	PollInterval time.Duration
	PollAttempts int
}

// Cacher submits releases to Real-Debrid and waits until one is cached.
type Cacher struct {
	api      API
	ledger   *store.Ledger
	interval time.Duration
	attempts int
}

// NewCacher creates a cacher. A nil ledger gives a memory-only one.
func NewCacher(api API, ledger *store.Ledger, cfg CacherConfig) *Cacher {
	if ledger == nil {
		ledger = store.Memory()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 12
	}
	return &Cacher{api: api, ledger: ledger, interval: cfg.PollInterval, attempts: cfg.PollAttempts}
}

// Seed marks every hash already on the account so it is never re-submitted.
func (c *Cacher) Seed(ctx context.Context) error {
	torrents, err := c.api.Torrents(ctx)
	if err != nil {
		return fmt.Errorf("listing remote torrents: %w", err)
	}
	for _, t := range torrents {
		c.ledger.Mark(t.Hash)
	}
	log.WithField("count", len(torrents)).Debug("Seeded ledger from Real-Debrid")
	return nil
}

// Submit tries torrents in order until one is cached. Hashes already claimed
// or present remotely are skipped.
func (c *Cacher) Submit(ctx context.Context, movie media.MovieCandidate, torrents []media.TorrentResult) (media.CachedItem, error) {
	var (
		lastErr error
		tried   int
	)
	for _, t := range torrents {
		if err := ctx.Err(); err != nil {
			return media.CachedItem{}, err
		}
		if !c.ledger.Claim(t.InfoHash, movie.Label()) {
			log.WithFields(log.Fields{"movie": movie.Label(), "hash": t.InfoHash}).Debug("Skipping known hash")
			continue
		}
		tried++

		item, err := c.cache(ctx, t)
		if err == nil {
			item.Movie = movie
			return item, nil
		}
		if ctx.Err() != nil {
			return media.CachedItem{}, ctx.Err()
		}
		lastErr = err
		log.WithFields(log.Fields{"movie": movie.Label(), "torrent": t.Name, "err": err}).Warn("Caching release failed")
	}

	if tried == 0 {
		return media.CachedItem{}, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeCacheFailed,
			Message:  fmt.Sprintf("every release for %s was already submitted", movie.Label()),
		}
	}
	return media.CachedItem{}, &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeCacheFailed,
		Message:  fmt.Sprintf("caching %s failed after %d release(s): %v", movie.Label(), tried, lastErr),
	}
}

// cache adds one release and polls it. A claim stays held while the torrent
// may still complete remotely.
func (c *Cacher) cache(ctx context.Context, t media.TorrentResult) (media.CachedItem, error) {
	added, err := c.api.AddMagnet(ctx, t.Magnet)
	if err != nil {
		c.release(t.InfoHash)
		return media.CachedItem{}, fmt.Errorf("adding magnet: %w", err)
	}
	if err := c.api.SelectFiles(ctx, added.ID, "all"); err != nil {
		c.discard(ctx, added.ID, t.InfoHash)
		return media.CachedItem{}, fmt.Errorf("selecting files: %w", err)
	}

	info, err := c.poll(ctx, added.ID)
	if err != nil {
		var dead *deadError
		if errors.As(err, &dead) {
			c.discard(ctx, added.ID, t.InfoHash)
		}
		return media.CachedItem{}, err
	}

	return media.CachedItem{
		Hash:      t.InfoHash,
		TorrentID: info.ID,
		Filename:  info.Filename,
		Status:    info.Status,
		Links:     info.Links,
	}, nil
}

type deadError struct {
	status string
}

func (e *deadError) Error() string {
	return "torrent ended with status " + e.status
}

func (c *Cacher) poll(ctx context.Context, id string) (Torrent, error) {
	for attempt := 0; attempt < c.attempts; attempt++ {
		info, err := c.api.Info(ctx, id)
		if err != nil {
			return Torrent{}, fmt.Errorf("polling %s: %w", id, err)
		}
		if info.ID == "" {
			info.ID = id
		}

		switch {
		case info.Status == StatusDownloaded:
			return info, nil
		case failed(info.Status):
			return Torrent{}, &deadError{status: info.Status}
		case info.Status == StatusWaitingFiles:
			if err := c.api.SelectFiles(ctx, id, "all"); err != nil {
				return Torrent{}, fmt.Errorf("selecting files: %w", err)
			}
		}

		if attempt == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Torrent{}, ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return Torrent{}, fmt.Errorf("torrent %s not cached after %d polls", id, c.attempts)
}

// discard removes a failed torrent and frees its hash for a later run.
func (c *Cacher) discard(ctx context.Context, id, hash string) {
	if err := c.api.Delete(ctx, id); err != nil {
		log.WithFields(log.Fields{"id": id, "err": err}).Warn("Removing failed torrent")
	}
	c.release(hash)
}

func (c *Cacher) release(hash string) {
	if err := c.ledger.Release(hash); err != nil {
		log.WithFields(log.Fields{"hash": hash, "err": err}).Warn("Releasing ledger claim")
	}
}
