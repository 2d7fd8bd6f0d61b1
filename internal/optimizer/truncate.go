package optimizer

import (
	"strings"
	"unicode/utf8"
)

// TruncateSummary cuts summary to limit characters and appends
// TruncationMarker. Summaries within the limit, and summaries that are
// already exactly limit characters plus the marker, are returned unchanged
// with changed=false.
func TruncateSummary(summary string, limit int) (truncated string, changed bool) {
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(summary) <= limit {
		return summary, false
	}
	if head, ok := strings.CutSuffix(summary, TruncationMarker); ok && utf8.RuneCountInString(head) == limit {
		return summary, false
	}

	var b strings.Builder
	n := 0
	for _, r := range summary {
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString(TruncationMarker)
	return b.String(), true
}
