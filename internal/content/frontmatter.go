package content

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/KaramelBytes/folio/internal/parser"
)

// readSource reads path, normalises it and splits the header block from the
// body. A file without a header block yields an empty map.
func readSource(path string) (map[string]any, []byte, error) {
	norm, err := parser.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	meta := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(norm), &meta)
	if err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}
	return meta, body, nil
}

// ReadBody returns the body of the content file at path with its header
// block removed.
func ReadBody(path string) (string, error) {
	_, body, err := readSource(path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// header is the typed view of a header block with every field defaulted.
type header struct {
	Title   string
	Excerpt string
	Date    time.Time
	Tags    []string
	Cover   string
	Draft   bool
}

// decodeHeader parses or defaults each recognised key. Unknown keys are
// ignored; wrong-typed values produce a warning and the default.
func decodeHeader(meta map[string]any, slug string) (header, []string) {
	h := header{
		Title: defaultTitle(slug),
		Date:  SentinelDate,
		Tags:  []string{},
	}
	var warns []string

	if v, ok := meta["title"]; ok {
		if s, ok := asString(v); ok && strings.TrimSpace(s) != "" {
			h.Title = strings.TrimSpace(s)
		} else if !ok {
			warns = append(warns, fmt.Sprintf("title: expected string, got %T", v))
		}
	}
	if v, ok := meta["excerpt"]; ok {
		if s, ok := asString(v); ok {
			h.Excerpt = strings.TrimSpace(s)
		} else {
			warns = append(warns, fmt.Sprintf("excerpt: expected string, got %T", v))
		}
	}
	if v, ok := meta["date"]; ok {
		if d, err := asDate(v); err == nil {
			h.Date = d
		} else {
			warns = append(warns, "date: "+err.Error())
		}
	}
	if v, ok := meta["tags"]; ok {
		if tags, ok := asTags(v); ok {
			h.Tags = tags
		} else {
			warns = append(warns, fmt.Sprintf("tags: expected list of strings, got %T", v))
		}
	}
	if v, ok := meta["cover"]; ok {
		if s, ok := asString(v); ok {
			h.Cover = strings.TrimSpace(s)
		} else {
			warns = append(warns, fmt.Sprintf("cover: expected string, got %T", v))
		}
	}
	if v, ok := meta["draft"]; ok {
		if b, ok := v.(bool); ok {
			h.Draft = b
		} else {
			warns = append(warns, fmt.Sprintf("draft: expected bool, got %T", v))
		}
	}
	return h, warns
}

func defaultTitle(slug string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(slug)
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case nil:
		return "", true
	default:
		return "", false
	}
}

func asDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		s := strings.TrimSpace(t)
		if d, err := time.Parse(DateLayout, s); err == nil {
			return d, nil
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", t)
	default:
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD string, got %T", v)
	}
}

// asTags accepts a list of strings or a single comma-separated string.
// Entries are trimmed and blanks dropped; duplicates are kept as written.
func asTags(v any) ([]string, bool) {
	out := []string{}
	switch t := v.(type) {
	case nil:
		return out, true
	case string:
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
