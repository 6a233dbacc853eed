package utils

import (
	"strings"
)

// Simple reading-time utilities.

// WordsPerMinute is the reading speed used for reading-time estimates.
const WordsPerMinute = 200

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReadingMinutes estimates the minutes needed to read text.
// Any non-empty text takes at least one minute.
func ReadingMinutes(text string) int {
	words := CountWords(text)
	if words == 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// TruncateWords shortens text to at most limit words, appending an ellipsis
// when anything was cut.
func TruncateWords(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ") + "…"
}
