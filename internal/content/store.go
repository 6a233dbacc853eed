package content

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/folio/internal/parser"
	"github.com/KaramelBytes/folio/internal/utils"
)

// Options configures a Store.
type Options struct {
	// Locales is the closed set of supported locale codes.
	Locales []string
	// IncludeDrafts exposes documents whose header sets draft: true.
	IncludeDrafts bool
	Logger        *zap.Logger
}

// Store indexes content files laid out as <root>/<locale>/<slug>.<ext>.
// Every call reads from disk; nothing is cached between calls.
type Store struct {
	root          string
	locales       []string
	includeDrafts bool
	log           *zap.Logger
}

// NewStore creates a store rooted at root.
func NewStore(root string, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		root:          root,
		locales:       slices.Clone(opts.Locales),
		includeDrafts: opts.IncludeDrafts,
		log:           log.Named("content"),
	}
}

// Root returns the content root directory.
func (s *Store) Root() string { return s.root }

// Locales returns the supported locales.
func (s *Store) Locales() []string { return slices.Clone(s.locales) }

// SupportsLocale reports whether locale is in the configured set.
func (s *Store) SupportsLocale(locale string) bool {
	return slices.Contains(s.locales, locale)
}

// Scan reads every document of locale, sorted by date descending with ties
// broken by slug ascending. Files whose header cannot be parsed are skipped
// and reported as diagnostics. An unknown locale or missing directory
// yields no documents and no diagnostics.
func (s *Store) Scan(locale string) ([]Document, []Diagnostic) {
	docs := []Document{}
	if !s.SupportsLocale(locale) {
		return docs, nil
	}
	dir := filepath.Join(s.root, locale)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return docs, []Diagnostic{{Path: dir, Severity: SeverityError, Message: err.Error()}}
		}
		return docs, nil
	}

	var diags []Diagnostic
	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !parser.CanParse(name) {
			continue
		}
		path := filepath.Join(dir, name)
		slug := parser.TrimMarkdownExt(name)
		if prev, dup := seen[slug]; dup {
			diags = append(diags, Diagnostic{
				Path:     path,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("duplicate slug %q, already provided by %s", slug, filepath.Base(prev)),
			})
			continue
		}
		// A malformed file still claims its slug, matching Get.
		seen[slug] = path
		doc, fileDiags, ok := s.load(locale, slug, path)
		diags = append(diags, fileDiags...)
		if !ok {
			continue
		}
		if doc.Draft && !s.includeDrafts {
			continue
		}
		docs = append(docs, doc)
	}
	sortDocuments(docs)
	return docs, diags
}

// List returns the documents of locale sorted newest first. Diagnostics are
// logged rather than returned.
func (s *Store) List(locale string) []Document {
	docs, diags := s.Scan(locale)
	s.logDiagnostics(diags)
	return docs
}

// ByTag returns the documents of locale carrying tag, newest first.
func (s *Store) ByTag(locale, tag string) []Document {
	tag = strings.TrimSpace(tag)
	out := []Document{}
	for _, d := range s.List(locale) {
		if d.HasTag(tag) {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the document with slug in locale. A missing, hidden or
// unparseable document is reported as not found.
func (s *Store) Get(locale, slug string) (Document, bool) {
	if !s.SupportsLocale(locale) || !validSlug(slug) {
		return Document{}, false
	}
	dir := filepath.Join(s.root, locale)
	// Same precedence as Scan, which sees directory entries in name order.
	for _, ext := range []string{".markdown", ".md", ".mdx"} {
		path := filepath.Join(dir, slug+ext)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		doc, diags, ok := s.load(locale, slug, path)
		s.logDiagnostics(diags)
		if !ok || (doc.Draft && !s.includeDrafts) {
			return Document{}, false
		}
		return doc, true
	}
	return Document{}, false
}

// Neighbors returns the documents adjacent to slug in the listing of locale.
func (s *Store) Neighbors(locale, slug string) Neighbors {
	docs := s.List(locale)
	idx := slices.IndexFunc(docs, func(d Document) bool { return d.Slug == slug })
	var n Neighbors
	if idx < 0 {
		return n
	}
	if idx+1 < len(docs) {
		n.Prev = &NavLink{Slug: docs[idx+1].Slug, Title: docs[idx+1].Title}
	}
	if idx > 0 {
		n.Next = &NavLink{Slug: docs[idx-1].Slug, Title: docs[idx-1].Title}
	}
	return n
}

// Tags returns the tag index of locale. Each document contributes at most
// once per distinct tag.
func (s *Store) Tags(locale string) []TagCount {
	return CountTags(s.List(locale))
}

// CountTags aggregates tags over docs, ordered by count descending then tag.
func CountTags(docs []Document) []TagCount {
	counts := map[string]int{}
	for _, d := range docs {
		seen := map[string]bool{}
		for _, t := range d.Tags {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Alternates lists the other locales that carry a document with slug.
func (s *Store) Alternates(locale, slug string) []string {
	out := []string{}
	for _, l := range s.locales {
		if l == locale {
			continue
		}
		if _, ok := s.Get(l, slug); ok {
			out = append(out, l)
		}
	}
	return out
}

// Exists reports whether the content root is present.
func (s *Store) Exists() bool { return utils.DirExists(s.root) }

func (s *Store) load(locale, slug, path string) (Document, []Diagnostic, bool) {
	meta, body, err := readSource(path)
	if err != nil {
		return Document{}, []Diagnostic{{Path: path, Severity: SeverityError, Message: err.Error()}}, false
	}
	h, warns := decodeHeader(meta, slug)
	var diags []Diagnostic
	for _, w := range warns {
		diags = append(diags, Diagnostic{Path: path, Severity: SeverityWarning, Message: w})
	}
	return Document{
		Slug:           slug,
		Locale:         locale,
		Title:          h.Title,
		Excerpt:        h.Excerpt,
		Date:           h.Date,
		Tags:           h.Tags,
		Cover:          h.Cover,
		Draft:          h.Draft,
		ReadingMinutes: utils.ReadingMinutes(string(body)),
		Path:           path,
	}, diags, true
}

func (s *Store) logDiagnostics(diags []Diagnostic) {
	for _, d := range diags {
		fields := []zap.Field{zap.String("path", d.Path), zap.String("detail", d.Message)}
		if d.Severity == SeverityError {
			s.log.Warn("skipped content file", fields...)
		} else {
			s.log.Debug("content header fallback", fields...)
		}
	}
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].Date.Equal(docs[j].Date) {
			return docs[i].Date.After(docs[j].Date)
		}
		return docs[i].Slug < docs[j].Slug
	})
}

func validSlug(slug string) bool {
	if slug == "" || strings.HasPrefix(slug, ".") {
		return false
	}
	return !strings.ContainsAny(slug, `/\`) && !strings.Contains(slug, "..")
}
