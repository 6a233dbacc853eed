package content

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// FeedInfo describes the channel of a locale feed.
type FeedInfo struct {
	Title       string
	SiteURL     string
	Description string
	Locale      string
	Limit       int
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description,omitempty"`
	Categories  []string `xml:"category"`
}

// PostURL is the public address of a document on the site.
func PostURL(siteURL, locale, slug string) string {
	return fmt.Sprintf("%s/%s/blog/%s", strings.TrimRight(siteURL, "/"), locale, slug)
}

// BuildFeed renders docs as an RSS 2.0 document. docs are expected newest
// first; at most info.Limit items are written when Limit is positive.
func BuildFeed(info FeedInfo, docs []Document) ([]byte, error) {
	if info.Limit > 0 && len(docs) > info.Limit {
		docs = docs[:info.Limit]
	}
	ch := rssChannel{
		Title:       info.Title,
		Link:        strings.TrimRight(info.SiteURL, "/") + "/" + info.Locale,
		Description: info.Description,
		Language:    info.Locale,
		Items:       make([]rssItem, 0, len(docs)),
	}
	if ch.Description == "" {
		ch.Description = info.Title
	}
	if len(docs) > 0 {
		ch.LastBuildDate = docs[0].Date.Format(time.RFC1123Z)
	}
	for _, d := range docs {
		link := PostURL(info.SiteURL, d.Locale, d.Slug)
		ch.Items = append(ch.Items, rssItem{
			Title:       d.Title,
			Link:        link,
			GUID:        link,
			PubDate:     d.Date.Format(time.RFC1123Z),
			Description: d.Excerpt,
			Categories:  d.Tags,
		})
	}
	out, err := xml.MarshalIndent(rss{Version: "2.0", Channel: ch}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
