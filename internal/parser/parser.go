package parser

import (
	"errors"
	"fmt"
	"os"
)

// Parser normalises raw source files of a given format.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) ([]byte, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// CanParse reports whether any registered parser accepts filename.
func CanParse(filename string) bool {
	return lookup(filename) != nil
}

// Parse normalises content using the parser registered for filename.
func Parse(filename string, content []byte) ([]byte, error) {
	p := lookup(filename)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}
	return p.Parse(content)
}

// ParseFile reads path and normalises it with the matching parser.
func ParseFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(path, data)
}

func lookup(filename string) Parser {
	for _, p := range registry {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

func init() {
	// Register default parsers
	Register(markdownParser{})
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported document format")
