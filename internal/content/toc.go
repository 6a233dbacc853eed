package content

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fenceMarker = "```"

// ExtractToc returns the depth-2 and depth-3 headings of body in document
// order. Lines inside fenced code blocks are ignored.
func ExtractToc(body string) []TocEntry {
	entries := []TocEntry{}
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, fenceMarker) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		var depth int
		var text string
		switch {
		case strings.HasPrefix(line, "### "):
			depth, text = 3, line[4:]
		case strings.HasPrefix(line, "## "):
			depth, text = 2, line[3:]
		default:
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		entries = append(entries, TocEntry{Depth: depth, Text: text, ID: Slugify(text)})
	}
	return entries
}

// punctuation stripped before the general character filter.
const punctuation = "!\"#$%&'()*+,./:;<=>?@[\\]^_`{|}~«»“”‘’…·"

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// Slugify derives an anchor id from heading text: lowercase, accents folded,
// punctuation and other symbols removed, whitespace runs turned into single
// hyphens and repeated hyphens collapsed. Slugify is idempotent.
func Slugify(text string) string {
	s := strings.ToLower(foldAccents(text))
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, "-")
	return hyphenRuns.ReplaceAllString(s, "-")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
