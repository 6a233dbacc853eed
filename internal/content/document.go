package content

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in headers.
const DateLayout = "2006-01-02"

// SentinelDate is assigned to documents without a usable date.
var SentinelDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Document is the metadata projection of one content file. The body is not
// held in memory; LoadBody re-reads it from Path.
type Document struct {
	Slug           string
	Locale         string
	Title          string
	Excerpt        string
	Date           time.Time
	Tags           []string
	Cover          string
	Draft          bool
	ReadingMinutes int
	Path           string
}

// DateString formats the document date as YYYY-MM-DD.
func (d Document) DateString() string {
	return d.Date.Format(DateLayout)
}

// LoadBody reads the document body without its header block.
func (d Document) LoadBody() (string, error) {
	body, err := ReadBody(d.Path)
	if err != nil {
		return "", fmt.Errorf("load body %s: %w", d.Path, err)
	}
	return body, nil
}

// HasTag reports whether the document carries tag.
func (d Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagCount is one row of the tag index.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NavLink points at an adjacent document.
type NavLink struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Neighbors holds the adjacent documents in the date-sorted listing.
// Prev is the next-older document, Next the next-newer one.
type Neighbors struct {
	Prev *NavLink `json:"prev,omitempty"`
	Next *NavLink `json:"next,omitempty"`
}

// TocEntry is a heading extracted from a body.
type TocEntry struct {
	Depth int    `json:"depth"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

// Severity of a Diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic reports a problem found while reading a content file. Errors
// mean the file was skipped; warnings mean a field fell back to its default.
type Diagnostic struct {
	Path     string   `json:"path"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Path, d.Message)
}
