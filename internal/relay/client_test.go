package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv, ln: ln}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, calls *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/f/contact" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		st := statuses[i]
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "nope", "code": "relay_down"}})
	}))
}

func testMessage() Message {
	return Message{
		ID:          "id-1",
		Name:        "Jo",
		Email:       "jo@x.com",
		Topic:       "hello",
		Message:     "Hello there, this is long enough.",
		Locale:      "en",
		SubmittedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestDeliverSendsPayload(t *testing.T) {
	var got webhookPayload
	var auth string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/f/contact", "secret", 2*time.Second, 1, 0, 0)
	if err := c.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("authorization=%q", auth)
	}
	if got.Name != "Jo" || got.Email != "jo@x.com" || got.ReplyTo != "jo@x.com" || got.Topic != "hello" || got.SubmittedAt != "2024-03-05T10:00:00Z" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDeliverRetriesOn503(t *testing.T) {
	var calls int32
	srv := testServerSequence(t, []int{503, 200}, nil, &calls)
	defer srv.Close()

	c := NewClient(srv.URL+"/f/contact", "", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond)
	if err := c.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryAfterHonored(t *testing.T) {
	var calls int32
	srv := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, &calls)
	defer srv.Close()

	c := NewClient(srv.URL+"/f/contact", "", 5*time.Second, 3, 0, 0)
	start := time.Now()
	if err := c.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestDeliverClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusBadRequest, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{http.StatusUnauthorized, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusBadGateway, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
		{http.StatusTooManyRequests, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		var calls int32
		srv := testServerSequence(t, []int{tc.status}, []http.Header{{"X-Request-Id": {"req_123"}}}, &calls)
		c := NewClient(srv.URL+"/f/contact", "", 2*time.Second, 2, time.Millisecond, 5*time.Millisecond)
		err := c.Deliver(context.Background(), testMessage())
		srv.Close()
		if err == nil || !tc.check(err) {
			t.Fatalf("status %d: unexpected error %v", tc.status, err)
		}
		if !strings.Contains(err.Error(), "req_123") || !strings.Contains(err.Error(), "relay_down") {
			t.Fatalf("status %d: error lacks detail: %v", tc.status, err)
		}
		retryable := tc.status == http.StatusTooManyRequests || tc.status >= 500
		want := int32(1)
		if retryable {
			want = 2
		}
		if atomic.LoadInt32(&calls) != want {
			t.Fatalf("status %d: calls=%d want %d", tc.status, calls, want)
		}
	}
}

func TestDeliverUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open local listener: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewClient("http://"+addr+"/f/contact", "", time.Second, 1, 0, 0)
	err = c.Deliver(context.Background(), testMessage())
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %v", err)
	}
}

func TestDeliverRespectsContextTimeout(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/f/contact", "", 5*time.Second, 3, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Deliver(ctx, testMessage())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("deliver did not honour context deadline")
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if s, err := parseRetryAfterSeconds("7"); err != nil || s != 7 {
		t.Fatalf("got %d, %v", s, err)
	}
	future := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)
	if s, err := parseRetryAfterSeconds(future); err != nil || s < 1 || s > 3 {
		t.Fatalf("got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatal("expected error")
	}
}
