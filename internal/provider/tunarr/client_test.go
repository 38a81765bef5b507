package tunarr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

// fakeTunarr keeps channels as raw JSON objects, like the real API.
type fakeTunarr struct {
	t *testing.T

	mu       sync.Mutex
	channels map[string]map[string]any
	programs map[string][]Program
	posted   []map[string]any // programming payloads
	requests []string
}

func newFakeTunarr(t *testing.T, channels ...media.Channel) *fakeTunarr {
	f := &fakeTunarr{t: t, channels: map[string]map[string]any{}, programs: map[string][]Program{}}
	for _, ch := range channels {
		f.channels[ch.ID] = map[string]any{
			"id":         ch.ID,
			"name":       ch.Name,
			"number":     float64(ch.Number),
			"groupTitle": ch.Group,
			"stealth":    false,
		}
	}
	return f
}

func (f *fakeTunarr) client() *Client {
	c := NewClient(Config{
		Server:            "http://tunarr.local:8000/",
		TranscodeConfigID: "tc-1",
		HTTPClient:        &http.Client{Transport: roundTripFunc(f.roundTrip)},
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	c.newID = func() string { return "new-uuid" }
	return c
}

func (f *fakeTunarr) roundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req.Method+" "+req.URL.Path)
	path := strings.TrimPrefix(req.URL.Path, "/api")

	var body map[string]any
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				f.t.Fatalf("bad request body: %v", err)
			}
		}
	}

	marshal := func(v any) *http.Response {
		data, _ := json.Marshal(v)
		return jsonResponse(200, string(data))
	}

	switch {
	case req.Method == http.MethodGet && path == "/channels":
		list := make([]map[string]any, 0, len(f.channels))
		for _, ch := range f.channels {
			list = append(list, ch)
		}
		sort.Slice(list, func(i, j int) bool { return list[i]["id"].(string) < list[j]["id"].(string) })
		return marshal(list), nil

	case req.Method == http.MethodPost && path == "/channels":
		f.channels[body["id"].(string)] = body
		return marshal(body), nil

	case strings.HasSuffix(path, "/programs"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/channels/"), "/programs")
		return marshal(f.programs[id]), nil

	case strings.HasSuffix(path, "/programming"):
		f.posted = append(f.posted, body)
		return marshal(map[string]any{}), nil

	case strings.HasPrefix(path, "/channels/"):
		id := strings.TrimPrefix(path, "/channels/")
		switch req.Method {
		case http.MethodGet:
			return marshal(f.channels[id]), nil
		case http.MethodPut:
			f.channels[id] = body
			return marshal(body), nil
		case http.MethodDelete:
			delete(f.channels, id)
			return jsonResponse(200, "{}"), nil
		}
	}

	f.t.Errorf("unexpected request %s %s", req.Method, req.URL)
	return jsonResponse(404, ""), nil
}

func (f *fakeTunarr) numbers() map[string]int {
	out := map[string]int{}
	for id, ch := range f.channels {
		out[id] = int(ch["number"].(float64))
	}
	return out
}

func TestChannelName(t *testing.T) {
	if got := ChannelName(" Horror "); got != "24/7 HORROR" {
		t.Errorf("ChannelName() = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	fake := newFakeTunarr(t,
		media.Channel{ID: "a", Name: "24/7 A", Number: 4},
		media.Channel{ID: "b", Name: "24/7 B", Number: 9},
		media.Channel{ID: "c", Name: "24/7 C", Number: 1},
		media.Channel{ID: "d", Name: "24/7 D", Number: 4},
	)
	if err := fake.client().Normalize(context.Background()); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := map[string]int{"c": 1, "a": 2, "d": 3, "b": 4}
	if diff := cmp.Diff(want, fake.numbers()); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
	// untouched fields survive the merge
	if fake.channels["b"]["stealth"] != false || fake.channels["b"]["transcoding"] == nil {
		t.Errorf("channel b after update = %v", fake.channels["b"])
	}
}

func TestNormalizeIsGapFree(t *testing.T) {
	for _, numbers := range [][]int{{}, {1}, {3}, {2, 2, 2}, {10, 20, 30, 40}, {5, 1, 3}} {
		var channels []media.Channel
		for i, n := range numbers {
			id := string(rune('a' + i))
			channels = append(channels, media.Channel{ID: id, Name: "24/7 " + id, Number: n})
		}
		fake := newFakeTunarr(t, channels...)
		if err := fake.client().Normalize(context.Background()); err != nil {
			t.Fatalf("Normalize(%v) error = %v", numbers, err)
		}

		var got []int
		for _, n := range fake.numbers() {
			got = append(got, n)
		}
		sort.Ints(got)
		for i, n := range got {
			if n != i+1 {
				t.Errorf("Normalize(%v) numbers = %v, want 1..%d", numbers, got, len(numbers))
				break
			}
		}
	}
}

func TestCreateChannel(t *testing.T) {
	fake := newFakeTunarr(t,
		media.Channel{ID: "a", Name: "24/7 A", Number: 1},
		media.Channel{ID: "b", Name: "24/7 B", Number: 2},
	)
	got, err := fake.client().CreateChannel(context.Background(), "Tom Hanks", GroupFilmography)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	want := media.Channel{ID: "new-uuid", Number: 3, Name: "24/7 TOM HANKS", Group: GroupFilmography}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CreateChannel() mismatch (-want +got):\n%s", diff)
	}

	stored := fake.channels["new-uuid"]
	if stored["transcodeConfigId"] != "tc-1" || stored["streamMode"] != "hls" || stored["startTime"] != float64(1700000000000) {
		t.Errorf("stored channel = %v", stored)
	}
}

func TestDeleteChannel(t *testing.T) {
	fake := newFakeTunarr(t, media.Channel{ID: "a", Name: "24/7 A", Number: 1})
	if err := fake.client().DeleteChannel(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteChannel() error = %v", err)
	}
	if len(fake.channels) != 0 {
		t.Errorf("channels left = %v", fake.channels)
	}
}

var entries = []Entry{
	{Title: "Halloween", Year: "1978", ReleaseDate: "1978-10-25", Runtime: 91 * time.Minute, TMDBID: 948, ImdbID: "tt0077651", ExternalKey: "jf1"},
	{Title: "The Thing", Year: "1982", ReleaseDate: "1982-06-25", Runtime: 109 * time.Minute, TMDBID: 1091, ExternalKey: "jf2", Rating: "R"},
}

func TestProvisionCreatesChannel(t *testing.T) {
	fake := newFakeTunarr(t, media.Channel{ID: "a", Name: "24/7 DRAMA", Number: 7})

	report, err := fake.client().Provision(context.Background(), "horror", GroupMovies, entries)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if !report.Created || report.Channel.Number != 2 || report.Channel.Name != "24/7 HORROR" {
		t.Errorf("report = %+v", report)
	}
	if diff := cmp.Diff([]string{"Halloween", "The Thing"}, report.Added); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
	if fake.numbers()["a"] != 1 {
		t.Errorf("existing channel not normalized: %v", fake.numbers())
	}

	if len(fake.posted) != 1 {
		t.Fatalf("programming posts = %d, want 1", len(fake.posted))
	}
	payload := fake.posted[0]
	if payload["append"] != true || payload["type"] != "manual" {
		t.Errorf("payload = %v", payload)
	}
	programs := payload["programs"].([]any)
	first := programs[0].(map[string]any)
	if first["title"] != "Halloween" || first["duration"] != float64(91*60*1000) || first["rating"] != "NR" ||
		first["date"] != "1978-10-25T00:00:00.0000000Z" || first["uniqueId"] != "jellyfin|Jellyfin|jf1" {
		t.Errorf("first program = %v", first)
	}
	if ids := first["externalIds"].([]any); len(ids) != 3 {
		t.Errorf("externalIds = %v", ids)
	}
	second := programs[1].(map[string]any)
	if second["rating"] != "R" || len(second["externalIds"].([]any)) != 2 {
		t.Errorf("second program = %v", second)
	}
}

func TestProvisionSkipsScheduledTitles(t *testing.T) {
	fake := newFakeTunarr(t, media.Channel{ID: "h", Name: "24/7 HORROR", Number: 1, Group: GroupMovies})
	fake.programs["h"] = []Program{{ID: "p1", Title: "Halloween"}}

	report, err := fake.client().Provision(context.Background(), "Horror", GroupMovies, entries)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if report.Created {
		t.Error("existing channel recreated")
	}
	if diff := cmp.Diff([]string{"Halloween"}, report.Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"The Thing"}, report.Added); diff != "" {
		t.Errorf("Added mismatch (-want +got):\n%s", diff)
	}
}

func TestProvisionNothingToAdd(t *testing.T) {
	fake := newFakeTunarr(t, media.Channel{ID: "h", Name: "24/7 HORROR", Number: 1})
	fake.programs["h"] = []Program{{Title: "Halloween"}, {Title: "The Thing"}}

	if _, err := fake.client().Provision(context.Background(), "horror", GroupMovies, entries); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(fake.posted) != 0 {
		t.Errorf("programming posted with nothing to add: %v", fake.posted)
	}
}
