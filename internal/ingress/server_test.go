package ingress

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/popgate/internal/dedupe"
	"github.com/mattjoyce/popgate/internal/dispatch"
	"github.com/mattjoyce/popgate/internal/events"
	"github.com/mattjoyce/popgate/internal/policy"
	"github.com/mattjoyce/popgate/internal/queue"
	"github.com/mattjoyce/popgate/internal/stats"
)

type testHarness struct {
	server *Server
	router http.Handler
	queue  *queue.Queue
	state  *dispatch.PlacementState
}

func newTestHarness(t *testing.T, pol policy.LaunchPolicy, queueCap int) *testHarness {
	t.Helper()

	q := queue.New(queueCap)
	state := dispatch.NewPlacementState()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := New(
		"127.0.0.1:0",
		q,
		dedupe.NewStore(),
		policy.NewProvider(pol),
		state,
		stats.New(),
		events.NewHub(100),
		logger,
	)

	return &testHarness{
		server: srv,
		router: srv.setupRoutes(),
		queue:  q,
		state:  state,
	}
}

func defaultTestPolicy() policy.LaunchPolicy {
	return policy.LaunchPolicy{
		Browser:      policy.BrowserAuto,
		Mode:         policy.ModeFirstWindowThenTabs,
		WindowWidth:  1400,
		WindowHeight: 900,
		DedupeWindow: 10 * time.Second,
	}
}

func (h *testHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

func TestOpenMissingParameter(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	for _, path := range []string{"/open", "/open?u=", "/open?u=%20%20"} {
		rec := h.get(t, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}
		body := decodeBody[ErrorResponse](t, rec)
		if body.OK {
			t.Errorf("%s: ok = true, want false", path)
		}
	}
	if h.queue.Depth() != 0 {
		t.Errorf("queue depth = %d, want 0", h.queue.Depth())
	}
}

func TestOpenRejectsNonHTTPSchemes(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	for _, target := range []string{
		"ftp://example.com/x",
		"javascript:alert(1)",
		"file:///etc/passwd",
		"example.com/no-scheme",
	} {
		rec := h.get(t, "/open?u="+url.QueryEscape(target))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
	if h.queue.Depth() != 0 {
		t.Errorf("queue depth = %d, want 0", h.queue.Depth())
	}
}

func TestOpenAllowlistForbidden(t *testing.T) {
	pol := defaultTestPolicy()
	pol.Allowlist = []string{"example.com", "crm.internal"}
	h := newTestHarness(t, pol, 8)

	rec := h.get(t, "/open?u="+url.QueryEscape("https://evil.test/phish?u=example.com"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if h.queue.Depth() != 0 {
		t.Errorf("rejected URL reached the queue")
	}

	// Allowed suffixes still pass.
	rec = h.get(t, "/open?u="+url.QueryEscape("https://app.example.com/case/42"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("allowed host: status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestOpenEnqueues(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	rec := h.get(t, "/open?u="+url.QueryEscape("https://crm.example.com/case/42?tab=notes"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	body := decodeBody[OpenResponse](t, rec)
	if !body.OK || body.Status != "queued" {
		t.Errorf("body = %+v, want ok queued", body)
	}
	if body.Target != "https://crm.example.com/case/42?tab=notes" {
		t.Errorf("target = %q", body.Target)
	}
	if body.Mode != "first-window-then-tabs" {
		t.Errorf("mode = %q", body.Mode)
	}
	if body.FirstWindowDone {
		t.Error("first_window_done = true before any dispatch")
	}
	if h.queue.Depth() != 1 {
		t.Errorf("queue depth = %d, want 1", h.queue.Depth())
	}
}

func TestOpenSuppressesDuplicates(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)
	target := url.QueryEscape("https://crm.example.com/case/42")

	rec := h.get(t, "/open?u="+target)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first request: status = %d", rec.Code)
	}

	rec = h.get(t, "/open?u="+target)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("duplicate request: status = %d", rec.Code)
	}
	body := decodeBody[OpenResponse](t, rec)
	if body.Status != "suppressed" {
		t.Errorf("status = %q, want suppressed", body.Status)
	}
	if h.queue.Depth() != 1 {
		t.Errorf("queue depth = %d, want 1 (duplicate must not enqueue)", h.queue.Depth())
	}
}

func TestOpenDedupeDisabled(t *testing.T) {
	pol := defaultTestPolicy()
	pol.DedupeWindow = 0
	h := newTestHarness(t, pol, 8)
	target := url.QueryEscape("https://crm.example.com/case/42")

	h.get(t, "/open?u="+target)
	rec := h.get(t, "/open?u="+target)

	body := decodeBody[OpenResponse](t, rec)
	if body.Status != "queued" {
		t.Errorf("status = %q, want queued when dedupe is off", body.Status)
	}
	if h.queue.Depth() != 2 {
		t.Errorf("queue depth = %d, want 2", h.queue.Depth())
	}
}

func TestOpenDecodesDoubleEncodedTarget(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)
	target := "https://crm.example.com/case/42?tab=notes&x=a b"

	// Upstream encoded the URL, then encoded the whole query value again.
	rec := h.get(t, "/open?u="+url.QueryEscape(url.QueryEscape(target)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	body := decodeBody[OpenResponse](t, rec)
	if body.Target != target {
		t.Errorf("target = %q, want %q", body.Target, target)
	}
}

func TestOpenSingleEncodedPercentLiteralSurvives(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	// A target without percent signs after the framework decode gets no
	// second pass.
	target := "https://crm.example.com/search?q=plain"
	rec := h.get(t, "/open?u="+url.QueryEscape(target))
	body := decodeBody[OpenResponse](t, rec)
	if body.Target != target {
		t.Errorf("target = %q, want %q", body.Target, target)
	}
}

func TestOpenQueueFull(t *testing.T) {
	pol := defaultTestPolicy()
	pol.DedupeWindow = 0
	h := newTestHarness(t, pol, 2)

	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := h.get(t, "/open?u="+url.QueryEscape("https://crm.example.com/case/42"))
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
	if h.queue.Depth() != 2 {
		t.Errorf("queue depth = %d, want 2", h.queue.Depth())
	}
}

func TestStatsSnapshot(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	h.get(t, "/open?u="+url.QueryEscape("https://crm.example.com/case/1"))
	h.get(t, "/open?u="+url.QueryEscape("https://crm.example.com/case/1")) // suppressed

	rec := h.get(t, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := decodeBody[StatsResponse](t, rec)
	if body.Enqueued != 1 {
		t.Errorf("enqueued = %d, want 1", body.Enqueued)
	}
	if body.Suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", body.Suppressed)
	}
	if body.QueueSize != 1 {
		t.Errorf("queue_size = %d, want 1", body.QueueSize)
	}
	if body.DedupeWindowS != 10 {
		t.Errorf("dedupe_window_s = %d, want 10", body.DedupeWindowS)
	}
	if body.Mode != "first-window-then-tabs" {
		t.Errorf("mode = %q", body.Mode)
	}
}

func TestResetFirstWindow(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	req := httptest.NewRequest(http.MethodPost, "/reset-first-window", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody[ResetResponse](t, rec)
	if !body.OK || body.FirstWindowDone {
		t.Errorf("body = %+v, want ok with first_window_done false", body)
	}
	if h.state.FirstWindowDone() {
		t.Error("placement state still marked done after reset")
	}
}

func TestIndexPage(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	rec := h.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "popgate") {
		t.Error("index page missing service name")
	}
}

func TestEventsStreamReplaysBuffer(t *testing.T) {
	h := newTestHarness(t, defaultTestPolicy(), 8)

	h.get(t, "/open?u="+url.QueryEscape("https://crm.example.com/case/9"))

	srv := httptest.NewServer(h.router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("reading stream: %v", err)
	}
	chunk := string(buf[:n])
	if !strings.Contains(chunk, "event: "+events.TypePopQueued) {
		t.Errorf("stream missing queued event, got %q", chunk)
	}
}

func TestDecodeTarget(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "https://a.example/x", "https://a.example/x"},
		{"one extra layer", "https%3A%2F%2Fa.example%2Fx", "https://a.example/x"},
		{"bad escape passes through", "https://a.example/%zz", "https://a.example/%zz"},
		{"no percent no change", "https://a.example/x?q=1", "https://a.example/x?q=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeTarget(tt.in); got != tt.want {
				t.Errorf("decodeTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
