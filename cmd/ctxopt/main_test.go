package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/ctxopt/internal/optimizer"
	"github.com/flemzord/ctxopt/internal/store"
)

// isolate keeps user config files out of the test and returns a fresh
// project root that is also the working directory.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	t.Chdir(root)
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedStore(t *testing.T, root string, conversations int) {
	t.Helper()
	s, err := store.Create(filepath.Join(root, ".context", "context.db"), store.Options{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer func() { _ = s.Close() }()

	now := time.Now()
	for i := range conversations {
		err := s.PutConversation(context.Background(), store.ConversationRecord{
			SessionID:      "s" + string(rune('a'+i)),
			Timestamp:      now.Add(-time.Duration(i) * time.Hour),
			ContextSummary: strings.Repeat("x", 600),
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "defragment"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "ctxopt dev") {
		t.Errorf("output = %q", out)
	}
}

func TestAnalyze_NoStore(t *testing.T) {
	isolate(t)

	out, err := execute(t, "analyze", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var stats optimizer.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if stats.Exists || stats.Conversations != 0 || stats.CodeContexts != 0 {
		t.Errorf("stats = %+v", stats)
	}

	out, err = execute(t, "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "No context store found") {
		t.Errorf("output = %q", out)
	}
}

func TestAnalyze_WithStore(t *testing.T) {
	root := isolate(t)
	seedStore(t, root, 3)

	out, err := execute(t, "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Conversations: 3") {
		t.Errorf("output = %q", out)
	}
}

func TestOptimize(t *testing.T) {
	root := isolate(t)
	seedStore(t, root, 14)
	if err := os.WriteFile(filepath.Join(root, "temp_trace.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	promFile := filepath.Join(t.TempDir(), "ctxopt.prom")

	out, err := execute(t, "optimize", "--json", "--metrics-file", promFile)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	var rep optimizer.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("errors: %+v", rep.Errors)
	}
	if rep.Conversations.Remaining != optimizer.DefaultMaxConversations {
		t.Errorf("remaining = %d, want %d", rep.Conversations.Remaining, optimizer.DefaultMaxConversations)
	}
	if rep.Conversations.Truncated != optimizer.DefaultMaxConversations {
		t.Errorf("truncated = %d", rep.Conversations.Truncated)
	}
	if len(rep.TempFiles.Removed) != 1 {
		t.Errorf("temp files = %v", rep.TempFiles.Removed)
	}

	prom, err := os.ReadFile(promFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(prom), `ctxopt_runs_total{result="ok"} 1`) {
		t.Errorf("metrics file missing run counter:\n%s", prom)
	}
}

func TestOptimize_HumanOutput(t *testing.T) {
	root := isolate(t)
	seedStore(t, root, 2)

	out, err := execute(t, "optimize")
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	for _, want := range []string{"Optimization complete", "Backup:", "Conversations: 0 removed"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestBackup_NoStore(t *testing.T) {
	isolate(t)

	out, err := execute(t, "backup")
	if err != nil {
		t.Fatalf("backup must exit cleanly without a store: %v", err)
	}
	if !strings.Contains(out, "No context store") {
		t.Errorf("output = %q", out)
	}
}

func TestBackup(t *testing.T) {
	root := isolate(t)
	seedStore(t, root, 1)

	out, err := execute(t, "backup")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(root, ".context", "backups", "context_backup_*.db"))
	if len(matches) != 1 {
		t.Fatalf("backups = %v", matches)
	}
	if !strings.Contains(out, matches[0]) {
		t.Errorf("output %q does not name %s", out, matches[0])
	}
}

func TestClean(t *testing.T) {
	root := isolate(t)
	for _, name := range []string{"ai_context_1.json", "session_handoff_2.json", "notes.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := execute(t, "clean")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out, "2 temporary files removed") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(root, "notes.md")); err != nil {
		t.Error("unrelated file removed")
	}
}

func TestProjectFlag(t *testing.T) {
	isolate(t)
	other := t.TempDir()
	seedStore(t, other, 4)

	out, err := execute(t, "--project", other, "analyze", "--json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var stats optimizer.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Conversations != 4 {
		t.Errorf("conversations = %d, want 4", stats.Conversations)
	}
}

func TestConfigInitAndCheck(t *testing.T) {
	root := isolate(t)

	out, err := execute(t, "config", "init", "--yes")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	path := filepath.Join(root, ".context", "ctxopt.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "config", "init", "--yes"); err == nil {
		t.Error("init should refuse to overwrite")
	}

	out, err = execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "10 conversations") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "ctxopt.yaml")
	if err := os.WriteFile(path, []byte("version: \"9\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "config", "check", path); err == nil {
		t.Error("expected validation error")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "--log-level", "chatty", "analyze"); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestMonitor(t *testing.T) {
	root := isolate(t)
	if err := os.WriteFile(filepath.Join(root, ".cursorrules"), []byte(strings.Repeat("r", 90)), 0o644); err != nil {
		t.Fatal(err)
	}
	settings := filepath.Join(root, "settings.json")
	if err := os.WriteFile(settings, []byte(`{"cursor.chat.maxContextTokens": 10000}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "monitor", "--json", "--settings", settings)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	var res monitorOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalTokens != 30 {
		t.Errorf("total = %d, want 30", res.TotalTokens)
	}
	if res.Settings == nil || !res.Settings.HangRisk {
		t.Errorf("settings = %+v", res.Settings)
	}

	out, err = execute(t, "monitor", "--settings", settings)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if !strings.Contains(out, "Static context within reasonable limits") {
		t.Errorf("output = %q", out)
	}
}
