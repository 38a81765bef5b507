package tunarr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/google/uuid"
)

const providerName = "tunarr"

// Channel groups.
const (
	GroupMovies      = "Movies"
	GroupFilmography = "Filmography"
)

// Config holds the Tunarr connection settings.
type Config struct {
	Server            string
	TranscodeConfigID string
	HTTPClient        *http.Client
}

// Client talks to the Tunarr API.
type Client struct {
	rest        *provider.REST
	transcodeID string
	now         func() time.Time
	newID       func() string
}

func NewClient(cfg Config) *Client {
	return &Client{
		rest: provider.NewREST(provider.RESTConfig{
			Provider:   providerName,
			BaseURL:    strings.TrimRight(cfg.Server, "/") + "/api",
			HTTPClient: cfg.HTTPClient,
			Authorize: func(req *http.Request) {
				req.Header.Set("User-Agent", "Mozilla/5.0")
			},
		}),
		transcodeID: cfg.TranscodeConfigID,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ChannelName is the display name of the 24/7 channel for name.
func ChannelName(name string) string {
	return "24/7 " + strings.ToUpper(strings.TrimSpace(name))
}

type channelJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Number     int    `json:"number"`
	GroupTitle string `json:"groupTitle"`
}

func (ch channelJSON) channel() media.Channel {
	return media.Channel{ID: ch.ID, Number: ch.Number, Name: ch.Name, Group: ch.GroupTitle}
}

var globalTranscoding = map[string]any{
	"targetResolution": "global",
	"videoBitrate":     "global",
	"videoBufferSize":  "global",
}

// Channels lists every channel ordered by number.
func (c *Client) Channels(ctx context.Context) ([]media.Channel, error) {
	var raw []channelJSON
	if err := c.rest.Do(ctx, provider.Request{Path: "/channels"}, &raw); err != nil {
		return nil, err
	}
	channels := make([]media.Channel, 0, len(raw))
	for _, ch := range raw {
		channels = append(channels, ch.channel())
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Number < channels[j].Number
	})
	return channels, nil
}

// CreateChannel adds a 24/7 channel numbered after the highest existing one.
func (c *Client) CreateChannel(ctx context.Context, name, group string) (media.Channel, error) {
	existing, err := c.Channels(ctx)
	if err != nil {
		return media.Channel{}, err
	}
	number := 1
	for _, ch := range existing {
		if ch.Number >= number {
			number = ch.Number + 1
		}
	}
	if group == "" {
		group = GroupMovies
	}

	payload := map[string]any{
		"disableFillerOverlay": true,
		"duration":             0,
		"fillerRepeatCooldown": 30000,
		"groupTitle":           group,
		"guideMinimumDuration": 30000,
		"icon": map[string]any{
			"path":     "",
			"width":    0,
			"duration": 0,
			"position": "bottom-right",
		},
		"id":     c.newID(),
		"name":   ChannelName(name),
		"number": number,
		"offline": map[string]any{
			"picture":    "",
			"soundtrack": "",
			"mode":       "pic",
		},
		"startTime":         c.now().UnixMilli(),
		"stealth":           false,
		"transcoding":       globalTranscoding,
		"onDemand":          map[string]any{"enabled": false},
		"streamMode":        "hls",
		"transcodeConfigId": c.transcodeID,
	}

	var created channelJSON
	if err := c.rest.Do(ctx, provider.Request{Method: http.MethodPost, Path: "/channels", JSON: payload}, &created); err != nil {
		return media.Channel{}, fmt.Errorf("creating channel %q: %w", ChannelName(name), err)
	}
	if created.ID == "" {
		created = channelJSON{ID: payload["id"].(string), Name: ChannelName(name), Number: number, GroupTitle: group}
	}
	return created.channel(), nil
}

// UpdateChannel merges updates into the stored channel and writes it back.
func (c *Client) UpdateChannel(ctx context.Context, id string, updates map[string]any) error {
	path := "/channels/" + url.PathEscape(id)
	var current map[string]any
	if err := c.rest.Do(ctx, provider.Request{Path: path}, &current); err != nil {
		return err
	}
	if current == nil {
		current = map[string]any{}
	}
	current["transcoding"] = globalTranscoding
	for k, v := range updates {
		current[k] = v
	}
	return c.rest.Do(ctx, provider.Request{Method: http.MethodPut, Path: path, JSON: current}, nil)
}

func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodDelete,
		Path:   "/channels/" + url.PathEscape(id),
	}, nil)
}

// Normalize renumbers channels 1..n keeping their current order.
func (c *Client) Normalize(ctx context.Context) error {
	channels, err := c.Channels(ctx)
	if err != nil {
		return err
	}
	for i, ch := range channels {
		if ch.Number == i+1 {
			continue
		}
		if err := c.UpdateChannel(ctx, ch.ID, map[string]any{"number": i + 1}); err != nil {
			return fmt.Errorf("renumbering %s: %w", ch.Name, err)
		}
	}
	return nil
}

// ChannelByName finds the 24/7 channel for name.
func (c *Client) ChannelByName(ctx context.Context, name string) (media.Channel, error) {
	channels, err := c.Channels(ctx)
	if err != nil {
		return media.Channel{}, err
	}
	want := ChannelName(name)
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, want) {
			return ch, nil
		}
	}
	return media.Channel{}, provider.NotFound(providerName, "no channel named %q", want)
}
