package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSettingsNotFound is returned when the editor settings file is absent.
var ErrSettingsNotFound = errors.New("monitor: cursor settings not found")

// Token thresholds for cursor.chat.maxContextTokens.
const (
	lowTokenLimit      = 50_000
	adequateTokenLimit = 100_000
)

// SettingsReport lists problematic and healthy editor settings.
type SettingsReport struct {
	Path           string   `json:"path"`
	Issues         []string `json:"issues"`
	Good           []string `json:"good"`
	MaxTokens      int      `json:"max_context_tokens"`
	HangRisk       bool     `json:"hang_risk"`
	ReleaseTrack   string   `json:"release_track,omitempty"`
	BudgetStrategy string   `json:"context_budget_strategy,omitempty"`
}

// DefaultSettingsPath returns ~/.config/Cursor/User/settings.json.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("monitor: home directory: %w", err)
	}
	return filepath.Join(home, ".config", "Cursor", "User", "settings.json"), nil
}

// cursorSettings holds the keys inspected by CheckSettings. Pointer fields
// distinguish "absent" from the zero value.
type cursorSettings struct {
	ReleaseTrack           string `json:"update.releaseTrack"`
	BackspaceRemoveContext *bool  `json:"cursor.composer.backspaceRemoveContext"`
	MaxContextTokens       int    `json:"cursor.chat.maxContextTokens"`
	BudgetStrategy         string `json:"cursor.chat.contextBudgetStrategy"`
	DisableAutoWebSearch   bool   `json:"cursor.general.disableAutoWebSearch"`
	ComposerDisableSearch  bool   `json:"cursor.composer.disableWebSearch"`
}

// CheckSettings reads the editor settings file and classifies the settings
// that influence context growth.
func CheckSettings(path string) (SettingsReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SettingsReport{}, ErrSettingsNotFound
		}
		return SettingsReport{}, fmt.Errorf("monitor: read settings: %w", err)
	}

	var s cursorSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return SettingsReport{}, fmt.Errorf("monitor: parse settings %s: %w", path, err)
	}

	r := SettingsReport{
		Path:           path,
		MaxTokens:      s.MaxContextTokens,
		ReleaseTrack:   s.ReleaseTrack,
		BudgetStrategy: s.BudgetStrategy,
	}

	switch s.ReleaseTrack {
	case "prerelease":
		r.Issues = append(r.Issues, "Using prerelease track (may have bugs)")
	case "stable":
		r.Good = append(r.Good, "Using stable release track")
	}

	if s.BackspaceRemoveContext != nil && !*s.BackspaceRemoveContext {
		r.Issues = append(r.Issues, "Context accumulation enabled")
	} else {
		r.Good = append(r.Good, "Context cleanup on backspace enabled")
	}

	switch {
	case s.MaxContextTokens < lowTokenLimit:
		r.Issues = append(r.Issues, fmt.Sprintf("Token limit too low: %d (may trigger buggy summarization)", s.MaxContextTokens))
		r.HangRisk = true
	case s.MaxContextTokens >= adequateTokenLimit:
		r.Good = append(r.Good, fmt.Sprintf("Adequate token limit: %d", s.MaxContextTokens))
	default:
		r.Issues = append(r.Issues, fmt.Sprintf("Token limit moderate: %d (consider increasing for better performance)", s.MaxContextTokens))
	}

	switch s.BudgetStrategy {
	case "strict":
		r.Issues = append(r.Issues, "Using 'strict' context strategy (may trigger aggressive summarization)")
	case "adaptive":
		r.Good = append(r.Good, "Using 'adaptive' context strategy")
	}

	if s.DisableAutoWebSearch {
		r.Good = append(r.Good, "Auto web search disabled")
	} else {
		r.Issues = append(r.Issues, "Auto web search enabled (may cause hangs)")
	}

	if s.ComposerDisableSearch {
		r.Good = append(r.Good, "Composer web search disabled")
	} else {
		r.Issues = append(r.Issues, "Composer web search enabled (may cause hangs)")
	}

	return r, nil
}
