package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/logtail"
	"github.com/five82/wcpms/internal/state"
)

func TestGetThemeFallback(t *testing.T) {
	if got := GetTheme("Kanagawa").Name; got != "Kanagawa" {
		t.Fatalf("GetTheme(Kanagawa).Name = %q", got)
	}
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(missing).Name = %q, want Nightfox", got)
	}
}

func TestNextThemeCycles(t *testing.T) {
	names := ThemeNames()
	current := names[0]
	for i := 0; i < len(names); i++ {
		current = NextTheme(current)
	}
	if current != names[0] {
		t.Fatalf("cycling %d times ended on %q, want %q", len(names), current, names[0])
	}
	if got := NextTheme("unknown"); got != names[0] {
		t.Fatalf("NextTheme(unknown) = %q, want %q", got, names[0])
	}
}

func TestThemesDefineKindColors(t *testing.T) {
	for _, name := range ThemeNames() {
		theme := GetTheme(name)
		for _, kind := range []state.Kind{state.KindPoint, state.KindRegion, state.KindCollections, state.KindDescribe} {
			if theme.KindColors[kind] == "" {
				t.Fatalf("theme %s has no color for %s", name, kind)
			}
		}
		if theme.ChartFill == "" || theme.ChartBand == "" || theme.ChartGuide == "" {
			t.Fatalf("theme %s is missing chart colors", name)
		}
	}
}

func TestKindBadgeFallsBackToMuted(t *testing.T) {
	theme := GetTheme("Nightfox")
	styles := theme.Styles()

	if got := styles.KindBadge(state.KindRegion).GetBackground(); got != lipgloss.Color(theme.KindColors[state.KindRegion]) {
		t.Fatalf("KindBadge(region) background = %v, want %v", got, theme.KindColors[state.KindRegion])
	}
	if got := styles.KindBadge(state.Kind("other")).GetBackground(); got != lipgloss.Color(theme.Muted) {
		t.Fatalf("KindBadge(other) background = %v, want %v", got, theme.Muted)
	}
}

func TestLevelStyle(t *testing.T) {
	theme := GetTheme("Slate")
	styles := theme.Styles()

	tests := []struct {
		level logtail.Level
		want  string
	}{
		{logtail.LevelError, theme.Danger},
		{logtail.LevelWarn, theme.Warning},
		{logtail.LevelInfo, theme.Success},
		{logtail.LevelDebug, theme.Info},
		{logtail.LevelUnknown, theme.Text},
	}
	for _, tt := range tests {
		if got := styles.LevelStyle(tt.level).GetForeground(); got != lipgloss.Color(tt.want) {
			t.Fatalf("LevelStyle(%v) foreground = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestWithBackground(t *testing.T) {
	styles := GetTheme("Nightfox").Styles().WithBackground("#000000")
	if got := styles.AccentText.GetBackground(); got != lipgloss.Color("#000000") {
		t.Fatalf("AccentText background = %v, want #000000", got)
	}
}
