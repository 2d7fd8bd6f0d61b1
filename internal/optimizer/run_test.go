package optimizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/ctxopt/internal/store"
)

func seedOvergrown(t *testing.T, p *testProject) {
	t.Helper()
	for i := range 20 {
		summary := strings.Repeat("s", 600+i)
		p.addConversation(t, fmt.Sprintf("conv-%02d", i), time.Duration(i*3)*day, summary)
	}
	for i := range 70 {
		p.addCodeContext(t, fmt.Sprintf("pkg/f%02d.go", i), time.Duration(i)*day, float64(i%7), i%5 != 0)
	}
	if err := os.WriteFile(filepath.Join(p.root, "temp_run.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
}

func TestRun_MissingStoreIsNoop(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "temp_keep.log"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rep, err := New(Config{ProjectRoot: root}, WithLogger(discardLogger())).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.OK() || rep.BackupPath != "" || rep.Before != (Stats{}) || rep.After != (Stats{}) {
		t.Errorf("report = %+v", rep)
	}
	if rep.Conversations != (ConversationResult{}) || rep.CodeContexts != (CodeContextResult{}) || len(rep.TempFiles.Removed) != 0 {
		t.Errorf("missing store should yield zero counts: %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(root, ".context")); !os.IsNotExist(err) {
		t.Error("run must not create the .context directory when no store exists")
	}
}

func TestRun_Invariants(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, Config{})
	seedOvergrown(t, p)

	rep, err := p.opt.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("run errors: %+v", rep.Errors)
	}

	if rep.Before.Conversations != 20 || rep.Before.CodeContexts != 70 {
		t.Errorf("before = %+v", rep.Before)
	}
	if rep.After.Conversations > DefaultMaxConversations {
		t.Errorf("conversations after = %d, want <= %d", rep.After.Conversations, DefaultMaxConversations)
	}
	if rep.After.CodeContexts > DefaultMaxFileContexts {
		t.Errorf("code contexts after = %d, want <= %d", rep.After.CodeContexts, DefaultMaxFileContexts)
	}
	if !rep.Vacuumed {
		t.Error("store should have been vacuumed")
	}
	if len(rep.TempFiles.Removed) != 1 {
		t.Errorf("temp files removed = %v", rep.TempFiles.Removed)
	}
	if rep.SizeDelta != rep.Before.SizeBytes-rep.After.SizeBytes {
		t.Errorf("SizeDelta = %d, inconsistent with before/after", rep.SizeDelta)
	}

	horizon := p.opt.Config().AgeHorizon(testNow)
	limit := DefaultMaxSummaryLength + len(TruncationMarker)
	err = p.store.Update(context.Background(), func(tx *store.Tx) error {
		convs, err := tx.Conversations(context.Background())
		if err != nil {
			return err
		}
		for _, c := range convs {
			if c.Timestamp.Before(horizon) {
				t.Errorf("conversation %s older than horizon", c.SessionID)
			}
			if len([]rune(c.ContextSummary)) > limit {
				t.Errorf("conversation %s summary has %d characters", c.SessionID, len(c.ContextSummary))
			}
		}

		codes, err := tx.CodeContexts(context.Background())
		if err != nil {
			return err
		}
		for _, r := range codes {
			if r.LastModified.Before(horizon) {
				t.Errorf("code context %s older than horizon", r.FilePath)
			}
			if _, err := os.Stat(filepath.Join(p.root, r.FilePath)); err != nil {
				t.Errorf("code context %s points at a missing file", r.FilePath)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect store: %v", err)
	}
}

func TestRun_BackupHoldsPreRunCounts(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, Config{})
	seedOvergrown(t, p)

	rep, err := p.opt.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.BackupPath == "" {
		t.Fatal("no backup recorded")
	}
	if want := "context_backup_" + rep.Started.Format("20060102_150405") + ".db"; filepath.Base(rep.BackupPath) != want {
		t.Errorf("backup = %s, want %s", filepath.Base(rep.BackupPath), want)
	}

	snap, err := store.Open(rep.BackupPath, store.Options{})
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer func() { _ = snap.Close() }()

	counts, err := snap.Counts(context.Background())
	if err != nil {
		t.Fatalf("count backup: %v", err)
	}
	if counts.Conversations != rep.Before.Conversations || counts.CodeContexts != rep.Before.CodeContexts {
		t.Errorf("backup counts = %+v, before = %+v", counts, rep.Before)
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, Config{})
	seedOvergrown(t, p)

	first, err := p.opt.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.opt.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.Conversations.Removed != 0 || second.Conversations.Truncated != 0 || second.CodeContexts.Removed != 0 {
		t.Errorf("second run changed rows: conv=%+v code=%+v", second.Conversations, second.CodeContexts)
	}
	if second.After.Conversations != first.After.Conversations || second.After.CodeContexts != first.After.CodeContexts {
		t.Errorf("counts drifted: first=%+v second=%+v", first.After, second.After)
	}
	if first.BackupPath == second.BackupPath {
		t.Error("second run overwrote the first backup")
	}
}

func TestRun_BackupFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, Config{})
	blocker := filepath.Join(p.root, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := p.opt.Config()
	cfg.BackupDir = filepath.Join(blocker, "backups")
	opt := New(cfg, WithLogger(discardLogger()), WithClock(func() time.Time { return testNow }))

	for i := range 12 {
		p.addConversation(t, fmt.Sprintf("c%02d", i), 40*day, "")
	}

	rep, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.OK() || rep.Errors[0].Step != StepBackup {
		t.Fatalf("errors = %+v, want backup failure", rep.Errors)
	}
	if rep.Vacuumed || rep.Conversations.Removed != 0 {
		t.Errorf("store mutated without backup: %+v", rep)
	}
	if rep.After.Conversations != 12 {
		t.Errorf("conversations after = %d, want 12", rep.After.Conversations)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	p := newTestProject(t, Config{})
	p.addConversation(t, "c", 40*day, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := p.opt.Run(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if rep == nil {
		t.Fatal("report should be returned alongside the error")
	}
}
