package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KaramelBytes/folio/internal/contact"
	"github.com/KaramelBytes/folio/internal/content"
)

// postSummary is the listing view of a document.
type postSummary struct {
	Slug           string   `json:"slug"`
	Locale         string   `json:"locale"`
	Title          string   `json:"title"`
	Excerpt        string   `json:"excerpt"`
	Date           string   `json:"date"`
	Tags           []string `json:"tags"`
	Cover          string   `json:"cover,omitempty"`
	ReadingMinutes int      `json:"reading_minutes"`
}

// postDetail is the single-document view.
type postDetail struct {
	postSummary
	HTML       string             `json:"html"`
	Toc        []content.TocEntry `json:"toc"`
	Neighbors  content.Neighbors  `json:"neighbors"`
	Alternates []string           `json:"alternates"`
}

func summarize(d content.Document) postSummary {
	return postSummary{
		Slug:           d.Slug,
		Locale:         d.Locale,
		Title:          d.Title,
		Excerpt:        d.Excerpt,
		Date:           d.DateString(),
		Tags:           d.Tags,
		Cover:          d.Cover,
		ReadingMinutes: d.ReadingMinutes,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// locale returns the {locale} URL parameter when it is supported, writing a
// not-found response otherwise.
func (s *Server) locale(w http.ResponseWriter, r *http.Request) (string, bool) {
	loc := chi.URLParam(r, "locale")
	if !s.store.SupportsLocale(loc) {
		writeError(w, http.StatusNotFound, "not_found", "unsupported locale: "+loc)
		return "", false
	}
	return loc, true
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.locale(w, r)
	if !ok {
		return
	}
	var docs []content.Document
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag != "" {
		docs = s.store.ByTag(loc, tag)
	} else {
		docs = s.store.List(loc)
	}
	posts := make([]postSummary, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, summarize(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"locale": loc, "tag": tag, "posts": posts})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.locale(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	doc, found := s.store.Get(loc, slug)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "post not found: "+slug)
		return
	}
	body, err := doc.LoadBody()
	if err != nil {
		s.log.Error("load post body", zap.String("path", doc.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not load post")
		return
	}
	html, err := s.renderer.Render(body)
	if err != nil {
		s.log.Error("render post", zap.String("path", doc.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not render post")
		return
	}
	writeJSON(w, http.StatusOK, postDetail{
		postSummary: summarize(doc),
		HTML:        html,
		Toc:         content.ExtractToc(body),
		Neighbors:   s.store.Neighbors(loc, slug),
		Alternates:  s.store.Alternates(loc, slug),
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.locale(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locale": loc, "tags": s.store.Tags(loc)})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.locale(w, r)
	if !ok {
		return
	}
	out, err := content.BuildFeed(content.FeedInfo{
		Title:   s.cfg.SiteTitle,
		SiteURL: s.cfg.SiteURL,
		Locale:  loc,
		Limit:   s.cfg.FeedLimit,
	}, s.store.List(loc))
	if err != nil {
		s.log.Error("build feed", zap.String("locale", loc), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not build feed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)
	res := s.gate.SubmitJSON(r.Context(), contact.ClientAddress(r), r.Body, s.cfg.DefaultLocale)
	s.respondContact(w, res)
}

func (s *Server) respondContact(w http.ResponseWriter, res contact.Result) {
	s.metrics.submissions.WithLabelValues(res.Outcome()).Inc()
	s.metrics.buckets.Set(float64(s.gate.Limiter().Len()))
	if res.Kind == contact.KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
	}
	writeJSON(w, res.HTTPStatus(), res)
}

// apiError is the error envelope for non-contact endpoints.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
