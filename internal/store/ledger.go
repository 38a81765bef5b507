package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mhmtszr/concurrent-swiss-map"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
)

// Entry records a hash submitted to the debrid service.
type Entry struct {
	Hash      string
	Title     string
	Submitted time.Time
}

// Ledger is the deduplication set of submitted info hashes. It is safe for
// concurrent use by pipeline workers. When opened with a path, claims are
// persisted so later runs skip hashes submitted before.
type Ledger struct {
	mu    sync.Mutex
	seen  *csmap.CsMap[string, Entry]
	store *bolthold.Store
	now   func() time.Time
}

// Memory returns a ledger that lives only for the current run.
func Memory() *Ledger {
	return &Ledger{
		seen: csmap.Create[string, Entry](),
		now:  time.Now,
	}
}

// Open loads (or creates) a persisted ledger. An empty path yields Memory().
func Open(path string) (*Ledger, error) {
	if path == "" {
		return Memory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := bolthold.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := Memory()
	l.store = db

	var entries []Entry
	if err := db.Find(&entries, &bolthold.Query{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	for _, e := range entries {
		l.seen.Store(e.Hash, e)
	}
	return l, nil
}

// Claim marks hash as submitted. It returns false if the hash was already
// claimed, in this run or a persisted earlier one.
func (l *Ledger) Claim(hash, title string) bool {
	hash = normalize(hash)
	if hash == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.seen.Load(hash); exists {
		return false
	}
	entry := Entry{Hash: hash, Title: title, Submitted: l.now()}
	l.seen.Store(hash, entry)

	if l.store != nil {
		if err := l.store.Insert(hash, entry); err != nil && !errors.Is(err, bolthold.ErrKeyExists) {
			// the in-memory claim still holds for this run
			log.WithFields(log.Fields{"hash": hash, "err": err}).Warn("Persisting ledger claim")
		}
	}
	return true
}

// Mark records a hash known to be present remotely without persisting it.
func (l *Ledger) Mark(hash string) {
	hash = normalize(hash)
	if hash == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.seen.Load(hash); !exists {
		l.seen.Store(hash, Entry{Hash: hash, Submitted: l.now()})
	}
}

// Release removes a claim, typically after the submission failed.
func (l *Ledger) Release(hash string) error {
	hash = normalize(hash)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen.Delete(hash)
	if l.store == nil {
		return nil
	}
	if err := l.store.Delete(hash, Entry{}); err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return fmt.Errorf("releasing %s: %w", hash, err)
	}
	return nil
}

// Contains reports whether hash has been claimed or marked.
func (l *Ledger) Contains(hash string) bool {
	_, ok := l.seen.Load(normalize(hash))
	return ok
}

// Len returns the number of known hashes.
func (l *Ledger) Len() int {
	return l.seen.Count()
}

// Entries returns the known hashes ordered by submission time.
func (l *Ledger) Entries() []Entry {
	entries := make([]Entry, 0, l.seen.Count())
	l.seen.Range(func(_ string, e Entry) bool {
		entries = append(entries, e)
		return false
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Submitted.Equal(entries[j].Submitted) {
			return entries[i].Hash < entries[j].Hash
		}
		return entries[i].Submitted.Before(entries[j].Submitted)
	})
	return entries
}

// Close releases the underlying store. Closing twice is a no-op.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

func normalize(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
