package posts

import (
	"strings"
	"unicode"
)

const fallbackSlug = "untitled"

func runeIsSlugSafe(r rune) bool {
	if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
		return true
	}
	// CJK ideographs survive, post titles are not always latin
	return unicode.Is(unicode.Han, r)
}

// Slugify derives the URL-safe identifier used as a post's filename stem.
// Every maximal run of unsafe characters collapses into a single hyphen,
// with no hyphen left at either end.
func Slugify(title string) string {
	var sb strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if !runeIsSlugSafe(r) {
			pendingHyphen = true
			continue
		}
		if pendingHyphen && sb.Len() > 0 {
			sb.WriteByte('-')
		}
		pendingHyphen = false
		sb.WriteRune(r)
	}

	if sb.Len() == 0 {
		return fallbackSlug
	}
	return sb.String()
}
