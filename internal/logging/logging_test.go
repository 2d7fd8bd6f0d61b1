package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/flemzord/ctxopt/internal/config"
)

func TestNew_RedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "debug", Secrets: []string{"gw-token-123"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger.Info("request with gw-token-123",
		"auth", "Bearer gw-token-123",
		"error", errors.New("upstream rejected sk-abcdefghijklmnopqrstuvwx"),
		slog.Group("req", "header", "gw-token-123"),
	)
	logger.With("token", "gw-token-123").Debug("scoped")

	out := buf.String()
	if strings.Contains(out, "gw-token-123") {
		t.Errorf("literal secret leaked:\n%s", out)
	}
	if strings.Contains(out, "sk-abcdefghijklmnopqrstuvwx") {
		t.Errorf("api key leaked:\n%s", out)
	}
	if strings.Count(out, Placeholder) < 5 {
		t.Errorf("expected every occurrence masked:\n%s", out)
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "path", "/p/.context/context.db")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "/p/.context/context.db") {
		t.Errorf("plain values must pass through:\n%s", out)
	}
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, Options{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if got := Secrets(cfg); len(got) != 0 {
		t.Errorf("default config secrets = %v", got)
	}
	cfg.Gateway.Token = "t0k"
	if got := Secrets(cfg); len(got) != 1 || got[0] != "t0k" {
		t.Errorf("secrets = %v", got)
	}
}
