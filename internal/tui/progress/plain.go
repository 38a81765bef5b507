package progress

import (
	"github.com/Digital-Shane/reelrunner/internal/core"
	log "github.com/sirupsen/logrus"
)

// LogEvents drains events, logging one line per finished movie, and returns
// the final summary. It is used when stdout is not a terminal.
func LogEvents(events <-chan core.Event) core.Summary {
	var last core.Summary
	for evt := range events {
		last = evt.Summary
		res := evt.Result
		if res == nil {
			continue
		}

		entry := log.WithFields(log.Fields{
			"movie":    res.Movie.Label(),
			"outcome":  res.Outcome,
			"progress": last.Processed,
			"total":    last.Total,
		})
		switch {
		case res.Err != nil:
			entry.WithFields(log.Fields{"stage": res.Stage, "err": res.Err}).Warn("Movie not cached")
		case res.Outcome == core.OutcomeSkipped:
			entry.Info("Already in library")
		case res.Torrent.Name != "":
			entry.WithFields(log.Fields{"torrent": res.Torrent.Name, "seeders": res.Torrent.Seeders}).Info("Movie done")
		default:
			entry.Info("Movie done")
		}
	}
	return last
}
