package parser

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Extensions accepted as markdown sources.
var markdownExts = []string{".md", ".mdx", ".markdown"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type markdownParser struct{}

func (markdownParser) CanParse(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range markdownExts {
		if ext == e {
			return true
		}
	}
	return false
}

func (markdownParser) Parse(content []byte) ([]byte, error) {
	text := bytes.TrimPrefix(content, utf8BOM)
	// Normalize line endings; blank lines are kept since code fences may rely on them.
	text = bytes.ReplaceAll(text, []byte("\r\n"), []byte("\n"))
	text = bytes.ReplaceAll(text, []byte("\r"), []byte("\n"))
	return text, nil
}

// MarkdownExt reports whether ext (with leading dot) is a markdown extension.
func MarkdownExt(ext string) bool {
	return markdownParser{}.CanParse("x" + ext)
}

// TrimMarkdownExt strips a markdown extension from name, if present.
func TrimMarkdownExt(name string) string {
	ext := filepath.Ext(name)
	if MarkdownExt(ext) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}
