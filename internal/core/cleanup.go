package core

import (
	"context"
	"fmt"
	"sync"

	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/Digital-Shane/reelrunner/internal/provider/debrid"
	"github.com/Digital-Shane/reelrunner/internal/provider/jellyfin"
	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// LibraryCleaner finds and removes duplicate media server entries.
type LibraryCleaner interface {
	Duplicates(ctx context.Context) ([]jellyfin.Duplicate, error)
	Delete(ctx context.Context, id string) error
}

// DebridCleaner finds and removes duplicate account torrents.
type DebridCleaner interface {
	Duplicates(ctx context.Context) ([]debrid.Duplicate, error)
	Delete(ctx context.Context, id string) error
}

// CleanupReport lists the ids removed on each side.
type CleanupReport struct {
	LibraryDeleted []string
	DebridDeleted  []string
	Errors         []error
}

// Cleanup deletes every duplicate beyond the first in the library and the
// debrid account. Either side may be nil.
func Cleanup(ctx context.Context, library LibraryCleaner, account DebridCleaner, workers int) (CleanupReport, error) {
	if workers <= 0 {
		workers = 10
	}
	var (
		report CleanupReport
		mu     sync.Mutex
	)
	fail := func(err error) {
		mu.Lock()
		report.Errors = append(report.Errors, err)
		mu.Unlock()
	}

	if library != nil {
		dups, err := library.Duplicates(ctx)
		if err != nil {
			return report, fmt.Errorf("listing library duplicates: %w", err)
		}
		log.WithField("count", len(dups)).Info("Library duplicates found")

		p := pool.New().WithMaxGoroutines(workers)
		for _, d := range dups {
			p.Go(func() {
				err := library.Delete(ctx, d.DuplicateID)
				oplog.LogOperation(oplog.OpDelete, d.Name, "jellyfin:"+d.DuplicateID, err)
				if err != nil {
					fail(fmt.Errorf("deleting %s (%s): %w", d.Name, d.DuplicateID, err))
					return
				}
				mu.Lock()
				report.LibraryDeleted = append(report.LibraryDeleted, d.DuplicateID)
				mu.Unlock()
			})
		}
		p.Wait()
	}

	if account != nil && ctx.Err() == nil {
		dups, err := account.Duplicates(ctx)
		if err != nil {
			return report, fmt.Errorf("listing debrid duplicates: %w", err)
		}
		log.WithField("count", len(dups)).Info("Debrid duplicates found")

		// deletes still pass through the account limiter one at a time
		p := pool.New().WithMaxGoroutines(workers)
		for _, d := range dups {
			p.Go(func() {
				err := account.Delete(ctx, d.DuplicateID)
				oplog.LogOperation(oplog.OpDelete, d.Name, "realdebrid:"+d.DuplicateID, err)
				if err != nil {
					fail(fmt.Errorf("deleting %s (%s): %w", d.Name, d.DuplicateID, err))
					return
				}
				mu.Lock()
				report.DebridDeleted = append(report.DebridDeleted, d.DuplicateID)
				mu.Unlock()
			})
		}
		p.Wait()
	}

	return report, ctx.Err()
}
