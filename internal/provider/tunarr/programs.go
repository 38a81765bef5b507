package tunarr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	log "github.com/sirupsen/logrus"
)

const sourceName = "Jellyfin"

// Entry is a movie to schedule, sourced from the media server.
type Entry struct {
	Title       string
	Summary     string
	Year        string
	ReleaseDate string // YYYY-MM-DD
	Runtime     time.Duration
	TMDBID      int
	ImdbID      string
	Rating      string
	ExternalKey string // media server item id
}

// Program is a scheduled program as listed by Tunarr.
type Program struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Report summarizes one Provision call.
type Report struct {
	Channel media.Channel
	Created bool
	Added   []string
	Skipped []string
}

// Programs lists the programs scheduled on a channel.
func (c *Client) Programs(ctx context.Context, channelID string) ([]Program, error) {
	var programs []Program
	err := c.rest.Do(ctx, provider.Request{Path: "/channels/" + url.PathEscape(channelID) + "/programs"}, &programs)
	return programs, err
}

// AddPrograms appends entries to the channel lineup.
func (c *Client) AddPrograms(ctx context.Context, channelID string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	lineup := make([]map[string]any, 0, len(entries))
	programs := make([]map[string]any, 0, len(entries))
	for i, e := range entries {
		ms := e.Runtime.Milliseconds()
		lineup = append(lineup, map[string]any{"duration": ms, "index": i})
		programs = append(programs, e.program(i))
	}

	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodPost,
		Path:   "/channels/" + url.PathEscape(channelID) + "/programming",
		JSON: map[string]any{
			"type":     "manual",
			"lineup":   lineup,
			"programs": programs,
			"append":   true,
		},
	}, nil)
}

func (e Entry) program(index int) map[string]any {
	source := strings.ToLower(sourceName)
	uniqueID := source + "|" + sourceName + "|" + e.ExternalKey
	rating := e.Rating
	if rating == "" {
		rating = "NR"
	}
	year, _ := strconv.Atoi(e.Year)

	ids := []map[string]any{{
		"type":     "multi",
		"id":       e.ExternalKey,
		"source":   source,
		"sourceId": sourceName,
	}}
	if e.TMDBID != 0 {
		ids = append(ids, map[string]any{"id": strconv.Itoa(e.TMDBID), "source": "tmdb", "type": "single"})
	}
	if e.ImdbID != "" {
		ids = append(ids, map[string]any{"id": e.ImdbID, "source": "imdb", "type": "single"})
	}

	program := map[string]any{
		"externalSourceType": source,
		"duration":           e.Runtime.Milliseconds(),
		"externalSourceId":   sourceName,
		"externalKey":        e.ExternalKey,
		"rating":             rating,
		"summary":            e.Summary,
		"title":              e.Title,
		"type":               "content",
		"subtype":            "movie",
		"year":               year,
		"parent":             map[string]any{"externalIds": []any{}},
		"grandparent":        map[string]any{"externalIds": []any{}},
		"externalIds":        ids,
		"uniqueId":           uniqueID,
		"id":                 uniqueID,
		"externalSourceName": sourceName,
		"persisted":          false,
		"originalIndex":      index,
		"startTimeOffset":    0,
	}
	if e.ReleaseDate != "" {
		program["date"] = e.ReleaseDate + "T00:00:00.0000000Z"
	}
	return program
}

// Provision normalizes numbering, finds or creates the channel for name and
// appends every entry whose title is not already scheduled.
func (c *Client) Provision(ctx context.Context, name, group string, entries []Entry) (Report, error) {
	if err := c.Normalize(ctx); err != nil {
		return Report{}, fmt.Errorf("normalizing channels: %w", err)
	}

	var report Report
	channel, err := c.ChannelByName(ctx, name)
	switch {
	case provider.IsCode(err, provider.CodeNotFound):
		channel, err = c.CreateChannel(ctx, name, group)
		if err != nil {
			return report, err
		}
		report.Created = true
		log.WithFields(log.Fields{"channel": channel.Name, "number": channel.Number}).Info("Created channel")
	case err != nil:
		return report, err
	}
	report.Channel = channel

	scheduled := map[string]bool{}
	if !report.Created {
		programs, err := c.Programs(ctx, channel.ID)
		if err != nil {
			return report, fmt.Errorf("listing programs on %s: %w", channel.Name, err)
		}
		for _, p := range programs {
			scheduled[p.Title] = true
		}
	}

	var add []Entry
	for _, e := range entries {
		if scheduled[e.Title] {
			report.Skipped = append(report.Skipped, e.Title)
			continue
		}
		scheduled[e.Title] = true
		add = append(add, e)
	}
	if err := c.AddPrograms(ctx, channel.ID, add); err != nil {
		return report, fmt.Errorf("adding programs to %s: %w", channel.Name, err)
	}
	for _, e := range add {
		report.Added = append(report.Added, e.Title)
	}
	return report, nil
}
