package tts

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// normalizeTextForTTS strips formatting a speech engine would read aloud.
func normalizeTextForTTS(text string) string {
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	text = markdownHeadingRegex.ReplaceAllString(text, "")
	text = markdownBulletRegex.ReplaceAllString(text, "")
	text = markdownMarkerReplacer.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateAtWord shortens text to at most limit characters, cutting at the
// last whitespace when there is one. Reports whether text was shortened.
func truncateAtWord(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut), true
}

var (
	markdownLinkRegex      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	markdownHeadingRegex   = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	markdownBulletRegex    = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	markdownMarkerReplacer = strings.NewReplacer("**", "", "__", "", "~~", "", "`", "", "*", "")
	removeEmojiRegex       = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\s$+<=>^|~]`)
	multipleSpacesRegex    = regexp.MustCompile(`\s+`)
)
