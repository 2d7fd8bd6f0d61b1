package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Placeholder replaces every masked value.
const Placeholder = "***REDACTED***"

// keyPatterns match API key formats that users paste into assistant
// conversations and that can surface in error text.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`xox[bp]-[0-9]+-[a-zA-Z0-9]+`),
}

// redactor is immutable after construction.
type redactor struct {
	literals []string
}

func newRedactor(secrets ...string) *redactor {
	r := &redactor{}
	for _, s := range secrets {
		if s != "" {
			r.literals = append(r.literals, s)
		}
	}
	return r
}

func (r *redactor) redact(s string) string {
	if s == "" {
		return s
	}
	for _, p := range keyPatterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	for _, lit := range r.literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	return s
}

// redactingHandler masks the message and every string-valued attribute
// before delegating.
type redactingHandler struct {
	inner    slog.Handler
	redactor *redactor
}

var _ slog.Handler = (*redactingHandler)(nil)

func newRedactingHandler(inner slog.Handler, r *redactor) *redactingHandler {
	return &redactingHandler{inner: inner, redactor: r}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(masked), redactor: h.redactor}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	// Resolve first so LogValuers and errors are seen in final form.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = h.redactAttr(ga)
		}
		a.Value = slog.GroupValue(masked...)
	case slog.KindAny:
		text := a.Value.String()
		if masked := h.redactor.redact(text); masked != text {
			a.Value = slog.StringValue(masked)
		}
	}
	return a
}
