package internal

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

const (
	// TitleMaxLength bounds titles derived from the first user message
	TitleMaxLength = 40
	// GeneratedTitleMaxLength bounds titles returned by a title generator
	GeneratedTitleMaxLength = 50
)

// DeriveTitle builds a session title from message text: whitespace runs are
// collapsed to a single space and the result is cut to TitleMaxLength
// grapheme clusters. It returns "" for blank input.
func DeriveTitle(text string) string {
	return ClampTitle(text, TitleMaxLength)
}

// ClampTitle normalizes text and truncates it to max grapheme clusters
func ClampTitle(text string, max int) string {
	collapsed := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	return strings.TrimSpace(truncateGraphemes(collapsed, max))
}

// truncateGraphemes keeps at most max user-perceived characters of s
func truncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}

	g := uniseg.NewGraphemes(s)
	count := 0
	for g.Next() {
		count++
		if count == max {
			_, to := g.Positions()
			return s[:to]
		}
	}
	return s
}
