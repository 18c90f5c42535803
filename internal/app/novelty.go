package app

import (
	"context"
	"html"
	"strings"
	"unicode"
)

// NoveltyStore tracks normalized question text recently served for a
// topic/country pair so repeat trivia can be filtered out. Implementations
// are best-effort: Seen returns false on backend trouble.
type NoveltyStore interface {
	Seen(ctx context.Context, topic, country, normalized string) bool
	Remember(ctx context.Context, topic, country string, normalized []string)
}

// NormalizeQuestion canonicalizes question text for novelty comparison:
// entities decoded, lowercased, non-alphanumeric runs collapsed to single
// spaces, trimmed. Two questions are duplicates iff their normalized forms
// are equal.
func NormalizeQuestion(text string) string {
	decoded := strings.ToLower(html.UnescapeString(text))

	var b strings.Builder
	b.Grow(len(decoded))
	pendingSpace := false
	for _, r := range decoded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}
