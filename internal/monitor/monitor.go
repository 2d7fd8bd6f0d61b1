// Package monitor estimates how much static context the Cursor editor
// loads for a project and flags settings known to cause "chat too long"
// summarization loops.
package monitor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// Token estimation limits.
const (
	maxEstimateChars = 10_000_000
	maxTokens        = 5_000_000
	charsPerToken    = 3
)

// RulesTotalKey is the Usage key summing every rule file.
const RulesTotalKey = "rules_total"

// configFiles are read relative to the project root.
var configFiles = []string{".cursorrules", filepath.Join(".cursor", "config.md")}

// EstimateTokens returns a rough token count: one token per three
// characters. Blank text is zero; input and result are capped.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	n := utf8.RuneCountInString(text)
	if n > maxEstimateChars {
		n = maxEstimateChars
	}
	return min(n/charsPerToken, maxTokens)
}

// FileUsage is the estimate for a single file.
type FileUsage struct {
	Path   string `json:"path"`
	Chars  int    `json:"chars"`
	Tokens int    `json:"tokens"`
}

// Usage is the token estimate of a project's static editor context.
type Usage struct {
	Files []FileUsage `json:"files"`
	Rules []FileUsage `json:"rules"`

	// ByKey maps config file paths and RulesTotalKey to token counts.
	ByKey map[string]int `json:"by_key"`
}

// Total sums every entry of ByKey.
func (u Usage) Total() int {
	total := 0
	for _, v := range u.ByKey {
		total += v
	}
	return total
}

// AnalyzeConfig estimates token usage of the Cursor config files and rule
// files under root. Missing files are skipped; unreadable ones are an error.
func AnalyzeConfig(root string) (Usage, error) {
	u := Usage{ByKey: make(map[string]int)}

	for _, rel := range configFiles {
		fu, ok, err := measure(root, rel)
		if err != nil {
			return Usage{}, err
		}
		if ok {
			u.Files = append(u.Files, fu)
			u.ByKey[filepath.ToSlash(rel)] = fu.Tokens
		}
	}

	rulesDir := filepath.Join(root, ".cursor", "rules")
	if info, err := os.Stat(rulesDir); err == nil && info.IsDir() {
		names, err := fs.Glob(os.DirFS(rulesDir), "*.mdc")
		if err != nil {
			return Usage{}, fmt.Errorf("monitor: list rules: %w", err)
		}
		slices.Sort(names)

		total := 0
		for _, name := range names {
			fu, ok, err := measure(root, filepath.Join(".cursor", "rules", name))
			if err != nil {
				return Usage{}, err
			}
			if ok {
				u.Rules = append(u.Rules, fu)
				total += fu.Tokens
			}
		}
		u.ByKey[RulesTotalKey] = total
	}

	return u, nil
}

func measure(root, rel string) (FileUsage, bool, error) {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return FileUsage{}, false, nil
		}
		return FileUsage{}, false, fmt.Errorf("monitor: read %s: %w", rel, err)
	}
	text := string(data)
	return FileUsage{
		Path:   filepath.ToSlash(rel),
		Chars:  utf8.RuneCountInString(text),
		Tokens: EstimateTokens(text),
	}, true, nil
}
