package store

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ConversationRecord is one row of conversation_context.
type ConversationRecord struct {
	SessionID      string
	Timestamp      time.Time // zero when the stored value is NULL or unparseable
	ContextSummary string
}

// Dated reports whether the record carries a usable timestamp.
func (r ConversationRecord) Dated() bool {
	return !r.Timestamp.IsZero()
}

// CodeContextRecord is one row of code_context.
type CodeContextRecord struct {
	FilePath        string
	LastModified    time.Time // zero when the stored value is NULL or unparseable
	ComplexityScore float64
}

// Dated reports whether the record carries a usable modification time.
func (r CodeContextRecord) Dated() bool {
	return !r.LastModified.IsZero()
}

// timeLayouts lists the accepted timestamp encodings. The first is what
// FormatTime writes; the naive ISO forms are what Python indexers produce
// with datetime.isoformat(). Fractional seconds are accepted by all of them.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime decodes a stored timestamp. Values without a zone are read in
// local time, matching how naive timestamps are written. Integer or
// fractional Unix seconds are also accepted.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for i, layout := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return parseUnix(raw)
}

func parseUnix(raw string) (time.Time, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))), true
}

// FormatTime encodes t the way the store writes timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

// scanConversation maps a (session_id, timestamp, context_summary) row.
// ok is false for rows without a session_id: they cannot be addressed and
// are skipped.
func scanConversation(s scanner) (rec ConversationRecord, ok bool, err error) {
	var (
		id      sql.NullString
		ts      sql.NullString
		summary sql.NullString
	)
	if err := s.Scan(&id, &ts, &summary); err != nil {
		return rec, false, fmt.Errorf("store: scan conversation: %w", err)
	}
	if !id.Valid {
		return rec, false, nil
	}

	rec.SessionID = id.String
	rec.ContextSummary = summary.String
	if t, parsed := ParseTime(ts.String); parsed {
		rec.Timestamp = t
	}
	return rec, true, nil
}

// scanCodeContext maps a (file_path, last_modified, complexity_score) row.
// ok is false for rows without a file_path.
func scanCodeContext(s scanner) (rec CodeContextRecord, ok bool, err error) {
	var (
		path  sql.NullString
		mod   sql.NullString
		score sql.NullFloat64
	)
	if err := s.Scan(&path, &mod, &score); err != nil {
		return rec, false, fmt.Errorf("store: scan code context: %w", err)
	}
	if !path.Valid || path.String == "" {
		return rec, false, nil
	}

	rec.FilePath = path.String
	rec.ComplexityScore = score.Float64
	if t, parsed := ParseTime(mod.String); parsed {
		rec.LastModified = t
	}
	return rec, true, nil
}
