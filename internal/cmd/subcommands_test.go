package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/reelrunner/internal/config"
	oplog "github.com/Digital-Shane/reelrunner/internal/log"
)

// execute runs the root command with args against a temporary home.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func tempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"TMDB_API_KEY", "OMDB_API_KEY", "REAL_DEBRID_API_KEY", "JELLYFIN_API_KEY", "JELLYFIN_SERVER"} {
		t.Setenv(key, "")
	}
	return home
}

func TestConfigPathCommand(t *testing.T) {
	home := tempHome(t)
	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if got, want := strings.TrimSpace(out), filepath.Join(home, ".reelrunner", "config.json"); got != want {
		t.Errorf("config path = %q, want %q", got, want)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	home := tempHome(t)
	configInitForce = false

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("first config init error = %v", err)
	}
	path := filepath.Join(home, ".reelrunner", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, err := execute(t, "config", "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second config init error = %v, want already exists", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	home := tempHome(t)
	cfg := config.DefaultConfig()
	cfg.TMDBAPIKey = "abcdef123456"
	cfg.RealDebridAPIKey = "rdsecretkey9876"
	if err := cfg.SaveFile(filepath.Join(home, ".reelrunner", "config.json")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "abcdef123456") || strings.Contains(out, "rdsecretkey9876") {
		t.Errorf("config show leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, `"tmdb_api_key": "********3456"`) {
		t.Errorf("config show missing masked key:\n%s", out)
	}
}

func TestMoodsCommandListsPresets(t *testing.T) {
	out, err := execute(t, "moods")
	if err != nil {
		t.Fatalf("moods error = %v", err)
	}
	for _, want := range []string{"date night", "nostalgia", "with_genres=10749"} {
		if !strings.Contains(out, want) {
			t.Errorf("moods output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	tempHome(t)

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "No sessions recorded yet.") {
		t.Errorf("history output = %q", out)
	}

	session := &oplog.LogSession{Metadata: oplog.SessionMetadata{
		CommandArgs:   []string{"run", "-k", "horror"},
		Timestamp:     time.Now().Add(-2 * time.Hour),
		SessionID:     "s1",
		SuccessfulOps: 7,
		FailedOps:     2,
	}}
	if err := oplog.WriteSession(session); err != nil {
		t.Fatalf("WriteSession() error = %v", err)
	}

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "run -k horror") || !strings.Contains(out, "2h ago") {
		t.Errorf("history output missing session:\n%s", out)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := map[time.Duration]string{
		10 * time.Second:    "just now",
		5 * time.Minute:     "5m ago",
		3 * time.Hour:       "3h ago",
		50 * time.Hour:      "2d ago",
		10 * 24 * time.Hour: "2025-02-28",
	}
	for age, want := range tests {
		if got := relativeTime(now, now.Add(-age)); got != want {
			t.Errorf("relativeTime(%s) = %q, want %q", age, got, want)
		}
	}
}

func TestRootRequiresSearchMode(t *testing.T) {
	tempHome(t)
	opts = options{}
	t.Cleanup(func() { opts = options{} })

	_, err := execute(t)
	if err == nil || !strings.Contains(err.Error(), "one of --keyword") {
		t.Errorf("root without flags error = %v", err)
	}
}
