package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/folio/internal/config"
	"github.com/KaramelBytes/folio/internal/contact"
	"github.com/KaramelBytes/folio/internal/content"
	"github.com/KaramelBytes/folio/internal/relay"
)

func writeDoc(t *testing.T, root, locale, name, body string) {
	t.Helper()
	dir := filepath.Join(root, locale)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

type failingRelay struct{}

func (failingRelay) Name() string { return "failing" }
func (failingRelay) Deliver(context.Context, relay.Message) error {
	return &relay.ServerError{APIError: &relay.APIError{StatusCode: 500, Message: "secret relay detail"}}
}

func testConfig(root string) *config.Global {
	return &config.Global{
		ContentDir:          root,
		Locales:             []string{"en", "fr"},
		DefaultLocale:       "en",
		SiteTitle:           "Folio",
		SiteURL:             "https://example.com",
		FeedLimit:           10,
		RateLimitWindowSec:  600,
		RateLimitMax:        5,
		RateLimitMaxBuckets: 100,
		RateLimitSweepSec:   60,
		ShutdownTimeoutSec:  2,
	}
}

func newTestServer(t *testing.T, r relay.Relay) *Server {
	t.Helper()
	root := t.TempDir()
	writeDoc(t, root, "en", "hello-world.md", "---\ntitle: Hello World\nexcerpt: Greetings\ndate: 2024-03-05\ntags: [go, web]\n---\n## Getting Started\n\nSome **text**.\n\n```\n## not a heading\n```\n\n### Next Steps\n")
	writeDoc(t, root, "en", "older.md", "---\ntitle: Older\ndate: 2024-01-01\ntags: [go]\n---\nold\n")
	writeDoc(t, root, "fr", "hello-world.md", "---\ntitle: Bonjour le monde\ndate: 2024-03-05\n---\n## Démarrage\n")
	cfg := testConfig(root)

	store := content.NewStore(root, content.Options{Locales: cfg.Locales})
	gate := contact.NewGate(contact.NewLimiter(cfg.RateLimitWindow(), cfg.RateLimitMax, cfg.RateLimitMaxBuckets), contact.Options{Relay: r})
	s, err := New(Deps{Config: cfg, Store: store, Gate: gate})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/en/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Posts []postSummary `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Posts, 2)
	assert.Equal(t, "hello-world", out.Posts[0].Slug)
	assert.Equal(t, "2024-03-05", out.Posts[0].Date)
	assert.Equal(t, []string{"go", "web"}, out.Posts[0].Tags)

	rec = do(t, s, http.MethodGet, "/api/en/posts?tag=web", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Posts, 1)
	assert.Equal(t, "hello-world", out.Posts[0].Slug)
}

func TestGetPost(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/en/posts/hello-world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out postDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Hello World", out.Title)
	require.Len(t, out.Toc, 2)
	assert.Equal(t, content.TocEntry{Depth: 2, Text: "Getting Started", ID: "getting-started"}, out.Toc[0])
	assert.Equal(t, 3, out.Toc[1].Depth)
	assert.Contains(t, out.HTML, `id="getting-started"`)
	assert.Contains(t, out.HTML, `id="next-steps"`)
	assert.Nil(t, out.Neighbors.Next)
	require.NotNil(t, out.Neighbors.Prev)
	assert.Equal(t, "older", out.Neighbors.Prev.Slug)
	assert.Equal(t, []string{"fr"}, out.Alternates)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/api/en/posts/missing", "/api/de/posts", "/api/de/tags", "/de/feed.xml", "/nowhere"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		var out apiError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), path)
		assert.Equal(t, "not_found", out.Error.Code, path)
	}
}

func TestTags(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/en/tags", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Tags []content.TagCount `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []content.TagCount{{Tag: "go", Count: 2}, {Tag: "web", Count: 1}}, out.Tags)
}

func TestFeed(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/fr/feed.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")
	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Bonjour le monde", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/fr/blog/hello-world", feed.Items[0].Link)
}

func TestContactLocalFallback(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/contact", `{"name":"Jo","email":"jo@x.com","message":"Hello there, this is long enough."}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["ok"])
	assert.NotEmpty(t, out["id"])
	assert.NotContains(t, out, "error")
}

func TestContactErrors(t *testing.T) {
	s := newTestServer(t, nil)
	cases := []struct {
		body   string
		status int
		kind   string
	}{
		{`{"name":`, http.StatusBadRequest, "invalid_json"},
		{`{"name":"A","email":"x@y.com","message":"short"}`, http.StatusBadRequest, "name_too_short"},
		{`{"name":"Jane Doe","email":"not-an-email","message":"a message long enough"}`, http.StatusBadRequest, "invalid_email"},
		{`{"name":"Jane Doe","email":"jane@x.com","message":"short"}`, http.StatusBadRequest, "message_too_short"},
	}
	for i, tc := range cases {
		// distinct addresses keep the rate limiter out of the way
		rec := do(t, s, http.MethodPost, "/api/contact", tc.body, map[string]string{"X-Forwarded-For": "10.0.0." + string(rune('1'+i))})
		assert.Equal(t, tc.status, rec.Code, tc.body)
		assert.JSONEq(t, `{"ok":false,"error":"`+tc.kind+`"}`, rec.Body.String(), tc.body)
	}
}

func TestContactBodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	big := `{"name":"Jo","email":"jo@x.com","message":"` + strings.Repeat("a", maxContactBody) + `"}`
	rec := do(t, s, http.MethodPost, "/api/contact", big, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestContactHoneypot(t *testing.T) {
	s := newTestServer(t, failingRelay{})
	rec := do(t, s, http.MethodPost, "/api/contact", `{"name":"x","email":"bad","message":"hi","company":"Acme"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestContactUpstreamFailureHidesDetail(t *testing.T) {
	s := newTestServer(t, failingRelay{})
	rec := do(t, s, http.MethodPost, "/api/contact", `{"name":"Jo","email":"jo@x.com","message":"Hello there, this is long enough."}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"upstream_failed"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestContactRateLimited(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"name":"Jo","email":"jo@x.com","message":"Hello there, this is long enough."}`
	hdr := map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/contact", body, hdr).Code)
	}
	rec := do(t, s, http.MethodPost, "/api/contact", body, hdr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var out contact.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, contact.KindRateLimited, out.Kind)
	assert.Positive(t, out.RetryAfter)

	// A different forwarded address is unaffected.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/contact", body, map[string]string{"X-Forwarded-For": "198.51.100.5"}).Code)
}

func TestContactMalformedBodiesAreRateLimited(t *testing.T) {
	s := newTestServer(t, nil)
	hdr := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	for i := 0; i < 5; i++ {
		rec := do(t, s, http.MethodPost, "/api/contact", `{not json`, hdr)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"invalid_json"}`, rec.Body.String())
	}
	rec := do(t, s, http.MethodPost, "/api/contact", `{not json`, hdr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	valid := `{"name":"Jo","email":"jo@x.com","message":"Hello there, this is long enough."}`
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/api/contact", valid, hdr).Code)
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/api/en/posts", "", nil)
	do(t, s, http.MethodPost, "/api/contact", `{"name":"Jo","email":"jo@x.com","message":"Hello there, this is long enough."}`, nil)
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `folio_contact_submissions_total{outcome="local"} 1`)
	assert.Contains(t, body, `folio_http_requests_total{route="/api/{locale}/posts",status="200"} 1`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open local listener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
