package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/provider"
)

const providerName = "jellyfin"

// Config holds the media server connection settings.
type Config struct {
	Server     string
	APIKey     string
	HTTPClient *http.Client
}

// Item is a library entry.
type Item struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	Type           string `json:"Type"`
	ProductionYear int    `json:"ProductionYear,omitempty"`
}

// Duplicate is a movie whose name already appeared under another id.
type Duplicate struct {
	Name        string
	OriginalID  string
	DuplicateID string
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

type scheduledTask struct {
	ID    string `json:"Id"`
	Key   string `json:"Key"`
	Name  string `json:"Name"`
	State string `json:"State"`
}

// Client talks to the Jellyfin HTTP API.
type Client struct {
	rest *provider.REST
}

func NewClient(cfg Config) *Client {
	token := "Mediabrowser Token=" + cfg.APIKey
	return &Client{rest: provider.NewREST(provider.RESTConfig{
		Provider:   providerName,
		BaseURL:    cfg.Server,
		HTTPClient: cfg.HTTPClient,
		Authorize: func(req *http.Request) {
			req.Header.Set("Authorization", token)
		},
	})}
}

func (c *Client) items(ctx context.Context, query url.Values) ([]Item, error) {
	query.Set("recursive", "true")
	var resp itemsResponse
	if err := c.rest.Do(ctx, provider.Request{Path: "/Items", Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FindMovie returns the movie whose name matches title exactly, ignoring
// case. When several match, the one released in year wins.
func (c *Client) FindMovie(ctx context.Context, title, year string) (Item, error) {
	found, err := c.items(ctx, url.Values{
		"includeItemTypes": {"Movie"},
		"searchTerm":       {title},
		"fields":           {"ProductionYear"},
	})
	if err != nil {
		return Item{}, err
	}

	var matches []Item
	for _, item := range found {
		if strings.EqualFold(item.Name, title) {
			matches = append(matches, item)
		}
	}
	if len(matches) == 0 {
		return Item{}, provider.NotFound(providerName, "no movie named %q in library", title)
	}
	if y, err := strconv.Atoi(year); err == nil {
		for _, item := range matches {
			if item.ProductionYear == y {
				return item, nil
			}
		}
	}
	return matches[0], nil
}

// HasMovie reports whether the library already holds movie.
func (c *Client) HasMovie(ctx context.Context, movie media.MovieCandidate) (bool, error) {
	_, err := c.FindMovie(ctx, movie.Title, movie.Year)
	if provider.IsCode(err, provider.CodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Collection looks up a collection by exact name, ignoring case.
func (c *Client) Collection(ctx context.Context, name string) (media.Collection, error) {
	found, err := c.items(ctx, url.Values{
		"includeItemTypes": {"BoxSet"},
		"searchTerm":       {name},
	})
	if err != nil {
		return media.Collection{}, err
	}
	for _, item := range found {
		if strings.EqualFold(item.Name, name) {
			return media.Collection{ID: item.ID, Name: item.Name}, nil
		}
	}
	return media.Collection{}, provider.NotFound(providerName, "no collection named %q", name)
}

// EnsureCollection returns the named collection, creating it when absent.
func (c *Client) EnsureCollection(ctx context.Context, name string) (media.Collection, error) {
	existing, err := c.Collection(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !provider.IsCode(err, provider.CodeNotFound) {
		return media.Collection{}, err
	}

	var created struct {
		ID string `json:"Id"`
	}
	err = c.rest.Do(ctx, provider.Request{
		Method: http.MethodPost,
		Path:   "/Collections",
		Query:  url.Values{"Name": {name}},
	}, &created)
	if err != nil {
		return media.Collection{}, fmt.Errorf("creating collection %q: %w", name, err)
	}
	if created.ID == "" {
		return media.Collection{}, fmt.Errorf("creating collection %q: server returned no id", name)
	}
	return media.Collection{ID: created.ID, Name: name}, nil
}

// CollectionItems lists the members of a collection.
func (c *Client) CollectionItems(ctx context.Context, id string) ([]Item, error) {
	return c.items(ctx, url.Values{"parentId": {id}})
}

func (c *Client) AddToCollection(ctx context.Context, collectionID string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodPost,
		Path:   "/Collections/" + url.PathEscape(collectionID) + "/Items",
		Query:  url.Values{"ids": {strings.Join(itemIDs, ",")}},
	}, nil)
}

// Rescan starts the RefreshLibrary scheduled task.
func (c *Client) Rescan(ctx context.Context) error {
	var tasks []scheduledTask
	if err := c.rest.Do(ctx, provider.Request{Path: "/ScheduledTasks"}, &tasks); err != nil {
		return err
	}
	for _, task := range tasks {
		if task.Key == "RefreshLibrary" {
			return c.rest.Do(ctx, provider.Request{
				Method: http.MethodPost,
				Path:   "/ScheduledTasks/Running/" + url.PathEscape(task.ID),
			}, nil)
		}
	}
	return provider.NotFound(providerName, "no RefreshLibrary scheduled task")
}

// Duplicates lists movies sharing a name with an earlier library entry.
func (c *Client) Duplicates(ctx context.Context) ([]Duplicate, error) {
	movies, err := c.items(ctx, url.Values{"includeItemTypes": {"Movie"}})
	if err != nil {
		return nil, err
	}

	first := make(map[string]string, len(movies))
	var dups []Duplicate
	for _, m := range movies {
		if orig, ok := first[m.Name]; ok {
			dups = append(dups, Duplicate{Name: m.Name, OriginalID: orig, DuplicateID: m.ID})
			continue
		}
		first[m.Name] = m.ID
	}
	return dups, nil
}

// Delete removes an item from the library.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.rest.Do(ctx, provider.Request{
		Method: http.MethodDelete,
		Path:   "/Items/" + url.PathEscape(id),
	}, nil)
}
