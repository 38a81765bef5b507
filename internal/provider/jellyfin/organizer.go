package jellyfin

import (
	"context"
	"fmt"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	log "github.com/sirupsen/logrus"
)

// Report summarizes one Organize call.
type Report struct {
	Collection media.Collection
	Added      []media.MovieCandidate
	Present    []media.MovieCandidate
	Missing    []media.MovieCandidate
	Errors     []error
}

// Organizer fills a collection once the library has picked up new movies.
type Organizer struct {
	client *Client
	settle time.Duration
}

// NewOrganizer creates an organizer that waits settle after each rescan.
func NewOrganizer(client *Client, settle time.Duration) *Organizer {
	return &Organizer{client: client, settle: settle}
}

// Organize ensures the named collection exists, rescans the library, waits
// for the scan to settle and adds every movie not yet a member. Movies the
// library does not hold are reported as CATALOG_MISMATCH.
func (o *Organizer) Organize(ctx context.Context, name string, movies []media.MovieCandidate) (Report, error) {
	collection, err := o.client.EnsureCollection(ctx, name)
	if err != nil {
		return Report{}, err
	}
	report := Report{Collection: collection}

	if err := o.client.Rescan(ctx); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log.WithField("err", err).Warn("Library rescan failed, organizing current library")
	} else if o.settle > 0 {
		log.WithField("wait", o.settle).Info("Waiting for library scan to settle")
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(o.settle):
		}
	}

	members, err := o.client.CollectionItems(ctx, collection.ID)
	if err != nil {
		return report, fmt.Errorf("listing collection %q: %w", name, err)
	}
	inCollection := make(map[string]bool, len(members))
	for _, m := range members {
		inCollection[m.ID] = true
	}

	var ids []string
	var toAdd []media.MovieCandidate
	for _, movie := range movies {
		item, err := o.client.FindMovie(ctx, movie.Title, movie.Year)
		switch {
		case provider.IsCode(err, provider.CodeNotFound):
			report.Missing = append(report.Missing, movie)
			report.Errors = append(report.Errors, &provider.ProviderError{
				Provider: providerName,
				Code:     provider.CodeCatalogMismatch,
				Message:  fmt.Sprintf("%s is not in the library yet", movie.Label()),
			})
			continue
		case err != nil:
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Errors = append(report.Errors, fmt.Errorf("finding %s: %w", movie.Label(), err))
			continue
		}

		if inCollection[item.ID] {
			report.Present = append(report.Present, movie)
			continue
		}
		inCollection[item.ID] = true
		ids = append(ids, item.ID)
		toAdd = append(toAdd, movie)
	}

	if err := o.client.AddToCollection(ctx, collection.ID, ids...); err != nil {
		return report, fmt.Errorf("adding to collection %q: %w", name, err)
	}
	report.Added = toAdd

	for _, m := range members {
		report.Collection.ItemIDs = append(report.Collection.ItemIDs, m.ID)
	}
	report.Collection.ItemIDs = append(report.Collection.ItemIDs, ids...)
	return report, nil
}
