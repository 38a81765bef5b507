package debrid

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/provider"
	"github.com/Digital-Shane/reelrunner/internal/ratelimit"
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

func newTestClient(fn roundTripFunc) *Client {
	return NewClient(Config{
		BaseURL:    "https://rd.example.com/rest/1.0",
		APIKey:     "rd-key",
		HTTPClient: &http.Client{Transport: fn},
		Limiter:    ratelimit.New(1000, time.Second),
	})
}

func TestUser(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/rest/1.0/user" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer rd-key" {
			t.Errorf("Authorization = %q", got)
		}
		return jsonResponse(200, `{"username":"reel","type":"premium","premium":864000}`), nil
	})

	u, err := client.User(context.Background())
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if !u.Premium() || u.DaysLeft() != 10 {
		t.Errorf("User() = %+v, premium %v, days %d", u, u.Premium(), u.DaysLeft())
	}
}

func TestUserFreeAccount(t *testing.T) {
	u := User{Type: "free", Seconds: 0}
	if u.Premium() {
		t.Error("free account reported premium")
	}
}

func TestTorrentsQuery(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("limit"); got != "5000" {
			t.Errorf("limit = %q, want 5000", got)
		}
		return jsonResponse(200, `[{"id":"A1","filename":"Alien.1979.1080p","hash":"ABC","status":"downloaded"}]`), nil
	})

	got, err := client.Torrents(context.Background())
	if err != nil {
		t.Fatalf("Torrents() error = %v", err)
	}
	want := []Torrent{{ID: "A1", Filename: "Alien.1979.1080p", Hash: "ABC", Status: "downloaded"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Torrents() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddMagnetAndSelectFiles(t *testing.T) {
	var calls []string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		calls = append(calls, req.Method+" "+req.URL.Path+" "+req.PostForm.Encode())
		if strings.HasSuffix(req.URL.Path, "/addMagnet") {
			return jsonResponse(201, `{"id":"T9","uri":"https://rd.example.com/rest/1.0/torrents/info/T9"}`), nil
		}
		return jsonResponse(204, ""), nil
	})

	res, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	if err != nil {
		t.Fatalf("AddMagnet() error = %v", err)
	}
	if res.ID != "T9" {
		t.Errorf("AddMagnet() id = %q", res.ID)
	}
	if err := client.SelectFiles(context.Background(), "T9", ""); err != nil {
		t.Fatalf("SelectFiles() error = %v", err)
	}

	want := []string{
		"POST /rest/1.0/torrents/addMagnet magnet=magnet%3A%3Fxt%3Durn%3Abtih%3Aabc",
		"POST /rest/1.0/torrents/selectFiles/T9 files=all",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAddMagnetSentOnce(t *testing.T) {
	calls := 0
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(503, `{"error":"service_unavailable"}`), nil
	})

	_, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	if !provider.IsCode(err, provider.CodeUnavailable) {
		t.Fatalf("AddMagnet() error = %v, want %s", err, provider.CodeUnavailable)
	}
	if calls != 1 {
		t.Errorf("addMagnet calls = %d, want 1", calls)
	}
}

func TestDelete(t *testing.T) {
	var method, path string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		method, path = req.Method, req.URL.Path
		return jsonResponse(204, ""), nil
	})
	if err := client.Delete(context.Background(), "T9"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if method != http.MethodDelete || path != "/rest/1.0/torrents/delete/T9" {
		t.Errorf("Delete() sent %s %s", method, path)
	}
}

func TestInfoNotFound(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(404, `{"error":"unknown_ressource"}`), nil
	})
	_, err := client.Info(context.Background(), "missing")
	if !provider.IsCode(err, provider.CodeNotFound) {
		t.Errorf("Info() error = %v, want NOT_FOUND", err)
	}
}

func TestDuplicates(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `[
			{"id":"1","filename":"Alien.1979","hash":"AAA"},
			{"id":"2","filename":"Heat.1995","hash":"bbb"},
			{"id":"3","filename":"Alien.1979.copy","hash":"aaa"},
			{"id":"4","filename":"Alien.1979.again","hash":"AAA"},
			{"id":"5","filename":"nohash","hash":""}
		]`), nil
	})

	got, err := client.Duplicates(context.Background())
	if err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}
	want := []Duplicate{
		{Name: "Alien.1979.copy", Hash: "aaa", OriginalID: "1", DuplicateID: "3"},
		{Name: "Alien.1979.again", Hash: "aaa", OriginalID: "1", DuplicateID: "4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Duplicates() mismatch (-want +got):\n%s", diff)
	}
}
