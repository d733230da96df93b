package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/eventlog"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/producer"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	logpkg "github.com/Talhamuhammadali/event-driven-mircorservice/pkg/log"
)

func fastConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.Produce.MessageCount = 3
	cfg.Produce.PaceMs = 1
	cfg.Produce.WorkIterations = 10
	cfg.Relay.PollBlockMs = 20
	cfg.Relay.MaxEmptyPolls = 50
	return cfg
}

func newServerForTest(t *testing.T, cfg cfgpkg.Config) (*Server, *runtime.Runtime) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(rt, logger), rt
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

// parseFrames splits an SSE body into its data payloads.
func parseFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, chunk := range strings.Split(body, "\n\n") {
		if chunk == "" {
			continue
		}
		payload, ok := strings.CutPrefix(chunk, "data: ")
		if !ok {
			t.Fatalf("malformed frame %q", chunk)
		}
		frames = append(frames, payload)
	}
	return frames
}

func TestInfoRoutes(t *testing.T) {
	s, _ := newServerForTest(t, fastConfig())
	for _, path := range []string{"/", "/info"} {
		w := doRequest(s, http.MethodGet, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Test API for Event driven arch") {
			t.Fatalf("%s body %q", path, w.Body.String())
		}
	}
	if w := doRequest(s, http.MethodGet, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown path status %d", w.Code)
	}
}

func TestServiceHealthRoutes(t *testing.T) {
	cfg := fastConfig()
	cfg.FeatureID = "feature-7"
	s, _ := newServerForTest(t, cfg)
	for _, path := range []string{"/health", "/heath"} {
		w := doRequest(s, http.MethodGet, path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status %d", path, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s body: %v", path, err)
		}
		if body["status"] != "healthy" || body["feature_id"] != "feature-7" {
			t.Fatalf("%s body %v", path, body)
		}
	}
}

func TestStorageHealthz(t *testing.T) {
	s, _ := newServerForTest(t, fastConfig())
	if w := doRequest(s, http.MethodGet, "/v1/healthz"); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newServerForTest(t, fastConfig())
	w := doRequest(s, http.MethodOptions, "/stream")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
}

func TestStreamValidation(t *testing.T) {
	s, _ := newServerForTest(t, fastConfig())
	if w := doRequest(s, http.MethodGet, "/stream?feature_id=f&chat_id=c"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", w.Code)
	}
	for _, target := range []string{"/stream", "/stream?feature_id=f", "/stream?chat_id=c"} {
		if w := doRequest(s, http.MethodPost, target); w.Code != http.StatusBadRequest {
			t.Fatalf("%s status %d", target, w.Code)
		}
	}
}

func TestStreamEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("runs a full generation")
	}
	cfg := fastConfig()
	s, rt := newServerForTest(t, cfg)
	pool := producer.NewPool(rt)
	if err := pool.Start(); err != nil {
		t.Fatalf("start pool: %v", err)
	}
	t.Cleanup(pool.Stop)

	w := doRequest(s, http.MethodPost, "/stream?feature_id=feature-1&chat_id=chat-http")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	if w.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatalf("missing X-Accel-Buffering header")
	}

	frames := parseFrames(t, w.Body.String())
	if len(frames) != cfg.Produce.MessageCount+1 {
		t.Fatalf("want %d frames, got %d: %v", cfg.Produce.MessageCount+1, len(frames), frames)
	}
	for i, f := range frames[:cfg.Produce.MessageCount] {
		var m session.Message
		if err := json.Unmarshal([]byte(f), &m); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if m.FeatureID != "feature-1" || m.ChatID != "chat-http" {
			t.Fatalf("frame %d identity %+v", i, m)
		}
	}
	if frames[len(frames)-1] != session.Sentinel {
		t.Fatalf("final frame %q", frames[len(frames)-1])
	}

	// A repeat request joins the finished log and replays it in full.
	w2 := doRequest(s, http.MethodPost, "/stream?feature_id=feature-1&chat_id=chat-http")
	if got := parseFrames(t, w2.Body.String()); len(got) != len(frames) {
		t.Fatalf("replay delivered %d frames, want %d", len(got), len(frames))
	}
}

func TestStreamTimeoutEmitsSingleErrorFrame(t *testing.T) {
	cfg := fastConfig()
	cfg.Relay.PollBlockMs = 10
	cfg.Relay.MaxEmptyPolls = 3
	// No worker pool: the job stays queued and the log never appears.
	s, _ := newServerForTest(t, cfg)

	w := doRequest(s, http.MethodPost, "/stream?feature_id=feature-1&chat_id=chat-idle")
	frames := parseFrames(t, w.Body.String())
	if len(frames) != 1 {
		t.Fatalf("want exactly one frame, got %d: %v", len(frames), frames)
	}
	var rec session.ErrorRecord
	if err := json.Unmarshal([]byte(frames[0]), &rec); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if !strings.Contains(rec.Error, "timeout") {
		t.Fatalf("frame error %q", rec.Error)
	}
}

func TestSessionsListAndTail(t *testing.T) {
	s, rt := newServerForTest(t, fastConfig())
	key := session.Key{FeatureID: "feature-1", ChatID: "chat-inspect"}
	l, err := rt.SharedLog(rt.Config().Namespace, key.String(), 0)
	if err != nil {
		t.Fatalf("shared log: %v", err)
	}
	for i, payload := range []string{`{"id":"0"}`, `{"id":"1"}`} {
		header := session.EncodeEntryHeader(session.EntryHeader{TsMs: time.Now().UnixMilli(), Kind: session.KindMessage})
		if _, err := l.Append(context.Background(), []eventlog.AppendRecord{{Header: header, Payload: []byte(payload)}}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	header := session.EncodeEntryHeader(session.EntryHeader{TsMs: time.Now().UnixMilli(), Kind: session.KindDone})
	if _, err := l.Append(context.Background(), []eventlog.AppendRecord{{Header: header, Payload: []byte(session.Sentinel)}}); err != nil {
		t.Fatalf("append sentinel: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/v1/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), key.String()) {
		t.Fatalf("list body %q", w.Body.String())
	}

	target := "/v1/sessions/tail?feature_id=feature-1&chat_id=chat-inspect&filter=" +
		"headers.kind+%3D%3D+%22message%22"
	w = doRequest(s, http.MethodGet, target)
	if w.Code != http.StatusOK {
		t.Fatalf("tail status %d body %q", w.Code, w.Body.String())
	}
	frames := parseFrames(t, w.Body.String())
	if len(frames) != 2 {
		t.Fatalf("want the 2 message frames, got %d: %v", len(frames), frames)
	}

	if w := doRequest(s, http.MethodGet, "/v1/sessions/tail?feature_id=feature-1&chat_id=chat-inspect&filter=%5D%5B"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status %d", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/v1/sessions/tail"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing params status %d", w.Code)
	}
}

func TestJobsEndpoints(t *testing.T) {
	s, _ := newServerForTest(t, fastConfig())
	w := doRequest(s, http.MethodGet, "/v1/jobs/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status %d", w.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats body: %v", err)
	}
	for _, field := range []string{"last_seq", "available", "leased", "dead_lettered"} {
		if _, ok := stats[field]; !ok {
			t.Fatalf("stats missing %q: %v", field, stats)
		}
	}

	w = doRequest(s, http.MethodGet, "/v1/jobs/recent?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("recent status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "jobs") {
		t.Fatalf("recent body %q", w.Body.String())
	}
}
