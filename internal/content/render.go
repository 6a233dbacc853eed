package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts markdown bodies to HTML. Heading ids are produced by
// Slugify so they match the ids reported by ExtractToc.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a GFM renderer with slug heading ids.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Render converts body to HTML.
func (r *Renderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	pc := parser.NewContext(parser.WithIDs(slugIDs{}))
	if err := r.md.Convert([]byte(body), &buf, parser.WithContext(pc)); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// slugIDs implements parser.IDs without uniqueness suffixes.
type slugIDs struct{}

func (slugIDs) Generate(value []byte, _ ast.NodeKind) []byte {
	return []byte(Slugify(string(value)))
}

func (slugIDs) Put([]byte) {}
