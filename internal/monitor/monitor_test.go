package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"blank", "  \n\t", 0},
		{"short", "ab", 0},
		{"nine chars", "abcdefghi", 3},
		{"runes", strings.Repeat("é", 6), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens_Capped(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", maxEstimateChars+300)
	if got := EstimateTokens(huge); got != maxEstimateChars/charsPerToken {
		t.Errorf("got %d, want %d", got, maxEstimateChars/charsPerToken)
	}
	if got := EstimateTokens(huge); got > maxTokens {
		t.Errorf("got %d above cap %d", got, maxTokens)
	}
}

func TestAnalyzeConfig(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".cursorrules"), strings.Repeat("a", 30))
	writeFile(t, filepath.Join(root, ".cursor", "config.md"), strings.Repeat("b", 60))
	writeFile(t, filepath.Join(root, ".cursor", "rules", "b.mdc"), strings.Repeat("c", 9))
	writeFile(t, filepath.Join(root, ".cursor", "rules", "a.mdc"), strings.Repeat("d", 12))
	writeFile(t, filepath.Join(root, ".cursor", "rules", "ignored.txt"), strings.Repeat("e", 300))

	u, err := AnalyzeConfig(root)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if u.ByKey[".cursorrules"] != 10 {
		t.Errorf(".cursorrules = %d, want 10", u.ByKey[".cursorrules"])
	}
	if u.ByKey[".cursor/config.md"] != 20 {
		t.Errorf("config.md = %d, want 20", u.ByKey[".cursor/config.md"])
	}
	if u.ByKey[RulesTotalKey] != 7 {
		t.Errorf("rules_total = %d, want 7", u.ByKey[RulesTotalKey])
	}
	if u.Total() != 37 {
		t.Errorf("total = %d, want 37", u.Total())
	}

	var names []string
	for _, r := range u.Rules {
		names = append(names, r.Path)
	}
	want := []string{".cursor/rules/a.mdc", ".cursor/rules/b.mdc"}
	if !slices.Equal(names, want) {
		t.Errorf("rules = %v, want %v", names, want)
	}
}

func TestAnalyzeConfig_RootWithGlobMeta(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "proj[1]")
	writeFile(t, filepath.Join(root, ".cursor", "rules", "a.mdc"), strings.Repeat("d", 12))

	u, err := AnalyzeConfig(root)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(u.Rules) != 1 || u.Rules[0].Path != ".cursor/rules/a.mdc" {
		t.Errorf("rules = %+v", u.Rules)
	}
	if u.ByKey[RulesTotalKey] != 4 {
		t.Errorf("rules_total = %d, want 4", u.ByKey[RulesTotalKey])
	}
}

func TestAnalyzeConfig_Empty(t *testing.T) {
	t.Parallel()

	u, err := AnalyzeConfig(t.TempDir())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if u.Total() != 0 || len(u.Files) != 0 || len(u.Rules) != 0 {
		t.Errorf("expected empty usage, got %+v", u)
	}
	if _, ok := u.ByKey[RulesTotalKey]; ok {
		t.Error("rules_total must be absent without a rules directory")
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		usage Usage
		want  []string
	}{
		{
			name:  "fine",
			usage: Usage{ByKey: map[string]int{".cursorrules": 100}},
			want:  []string{"Static context within reasonable limits"},
		},
		{
			name:  "large",
			usage: Usage{ByKey: map[string]int{".cursorrules": 60_000}},
			want:  []string{"Large static context > 50K tokens"},
		},
		{
			name: "critical with rules and config",
			usage: Usage{ByKey: map[string]int{
				".cursor/config.md": 6_000,
				RulesTotalKey:       150_000,
			}},
			want: []string{
				"CRITICAL: total static context > 150K tokens",
				"Rules consume > 20K tokens",
				"Main config file is large",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Recommend(tt.usage)
			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("missing %q in %v", w, got)
				}
			}
		})
	}
}

func TestAssess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total int
		want  Level
	}{
		{0, LevelLow},
		{50_000, LevelLow},
		{50_001, LevelModerate},
		{100_001, LevelHigh},
		{150_001, LevelExceeds},
	}
	for _, tt := range tests {
		if got := Assess(tt.total); got != tt.want {
			t.Errorf("Assess(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestCheckSettings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{
		"update.releaseTrack": "prerelease",
		"cursor.composer.backspaceRemoveContext": false,
		"cursor.chat.maxContextTokens": 32000,
		"cursor.chat.contextBudgetStrategy": "adaptive",
		"cursor.general.disableAutoWebSearch": true
	}`)

	r, err := CheckSettings(path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !r.HangRisk {
		t.Error("low token limit should flag hang risk")
	}

	wantIssues := []string{
		"Using prerelease track (may have bugs)",
		"Context accumulation enabled",
		"Token limit too low: 32000 (may trigger buggy summarization)",
		"Composer web search enabled (may cause hangs)",
	}
	for _, w := range wantIssues {
		if !slices.Contains(r.Issues, w) {
			t.Errorf("missing issue %q in %v", w, r.Issues)
		}
	}

	wantGood := []string{
		"Using 'adaptive' context strategy",
		"Auto web search disabled",
	}
	for _, w := range wantGood {
		if !slices.Contains(r.Good, w) {
			t.Errorf("missing good %q in %v", w, r.Good)
		}
	}
}

func TestCheckSettings_TokenBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tokens int
		want   string
		issue  bool
	}{
		{75_000, "Token limit moderate: 75000 (consider increasing for better performance)", true},
		{200_000, "Adequate token limit: 200000", false},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "settings.json")
		writeFile(t, path, `{"cursor.chat.maxContextTokens": `+strconv.Itoa(tt.tokens)+`}`)

		r, err := CheckSettings(path)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		list := r.Good
		if tt.issue {
			list = r.Issues
		}
		if !slices.Contains(list, tt.want) {
			t.Errorf("tokens %d: missing %q", tt.tokens, tt.want)
		}
		if r.HangRisk {
			t.Errorf("tokens %d: unexpected hang risk", tt.tokens)
		}
	}
}

func TestCheckSettings_Missing(t *testing.T) {
	t.Parallel()

	_, err := CheckSettings(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrSettingsNotFound) {
		t.Errorf("expected ErrSettingsNotFound, got %v", err)
	}
}

func TestCheckSettings_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, "{not json")
	if _, err := CheckSettings(path); err == nil {
		t.Error("expected parse error")
	}
}
