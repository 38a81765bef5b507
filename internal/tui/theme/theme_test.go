package theme

import (
	"runtime"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
)

func TestWithIconSetCopies(t *testing.T) {
	icons := IconSet{"movie": "🎬"}
	theme := New(WithIconSet(icons))

	icons["movie"] = "mutated"

	if got, want := theme.Icon("movie"), "🎬"; got != want {
		t.Errorf("WithIconSet(%v) Icon(%q) = %q, want %q", icons, "movie", got, want)
	}
}

func TestIconLookupOrder(t *testing.T) {
	theme := Theme{
		icons:    IconSet{"primary": "icon"},
		fallback: IconSet{"fallback": "fallback-icon"},
	}

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "primary", key: "primary", want: "icon"},
		{name: "fallback", key: "fallback", want: "fallback-icon"},
		{name: "missing", key: "missing", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := theme.Icon(tc.key); got != tc.want {
				t.Errorf("Theme.Icon(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestNewRestoresNilIconSet(t *testing.T) {
	theme := New(WithIconSet(nil))
	want := defaultIconSet()["channel"]

	if got := theme.Icon("channel"); got != want {
		t.Errorf("New(WithIconSet(nil)) Icon(%q) = %q, want %q", "channel", got, want)
	}
}

func TestIconSetsCoverSameNames(t *testing.T) {
	for name := range emojiIcons {
		if _, ok := asciiIcons[name]; !ok {
			t.Errorf("asciiIcons missing %q", name)
		}
	}
	if len(emojiIcons) != len(asciiIcons) {
		t.Errorf("len(emojiIcons) = %d, len(asciiIcons) = %d", len(emojiIcons), len(asciiIcons))
	}
}

func TestDefaultIconSetLimitedTerminal(t *testing.T) {
	t.Setenv("SSH_CLIENT", "1")
	t.Setenv("SSH_TTY", "")
	t.Setenv("SSH_CONNECTION", "")

	if diff := cmp.Diff(asciiIcons, defaultIconSet()); diff != "" {
		t.Errorf("defaultIconSet() in limited terminal mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultIconSetEmojiWhenNotLimited(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("defaultIconSet prefers ASCII on Windows")
	}
	t.Setenv("SSH_CLIENT", "")
	t.Setenv("SSH_TTY", "")
	t.Setenv("SSH_CONNECTION", "")

	if diff := cmp.Diff(emojiIcons, defaultIconSet()); diff != "" {
		t.Errorf("defaultIconSet() mismatch (-want +got):\n%s", diff)
	}
}

func TestBadgeStyleVariants(t *testing.T) {
	theme := New()
	colors := theme.Colors()

	tests := []struct {
		name string
		kind BadgeKind
		want lipgloss.Color
	}{
		{name: "info", kind: BadgeInfo, want: colors.Accent},
		{name: "success", kind: BadgeSuccess, want: colors.Success},
		{name: "warning", kind: BadgeWarning, want: colors.Warning},
		{name: "error", kind: BadgeError, want: colors.Error},
		{name: "muted", kind: BadgeMuted, want: colors.Muted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			style := theme.BadgeStyle(tc.kind)
			if bg, ok := style.GetBackground().(lipgloss.Color); !ok || bg != tc.want {
				t.Errorf("BadgeStyle(%v) background = %v, want %v", tc.kind, style.GetBackground(), tc.want)
			}
			if fg, ok := style.GetForeground().(lipgloss.Color); !ok || fg != colors.Background {
				t.Errorf("BadgeStyle(%v) foreground = %v, want %v", tc.kind, style.GetForeground(), colors.Background)
			}
		})
	}
}

func TestHeaderStyleProperties(t *testing.T) {
	theme := New()
	colors := theme.Colors()
	style := theme.HeaderStyle()

	if !style.GetBold() {
		t.Error("HeaderStyle() bold = false, want true")
	}
	if bg, ok := style.GetBackground().(lipgloss.Color); !ok || bg != colors.Primary {
		t.Errorf("HeaderStyle() background = %v, want %v", style.GetBackground(), colors.Primary)
	}
	if got, want := style.GetAlignHorizontal(), lipgloss.Center; got != want {
		t.Errorf("HeaderStyle() alignment = %v, want %v", got, want)
	}
}

func TestProgressGradient(t *testing.T) {
	theme := New(WithColors(Colors{Primary: "#111111", Accent: "#222222"}))
	from, to := theme.ProgressGradient()
	if from != "#111111" || to != "#222222" {
		t.Errorf("ProgressGradient() = %q, %q", from, to)
	}
}
