package client

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// frameClass tags a received frame by its payload shape. The wire carries
// payloads only, so the client classifies them the same way a browser
// consumer would: sentinel text first, then an error object, then a message.
type frameClass int

const (
	frameMessage frameClass = iota
	frameDone
	frameError
)

// classifyFrame inspects a payload and, for error frames, returns the
// decoded record.
func classifyFrame(payload []byte) (frameClass, session.ErrorRecord) {
	if session.IsSentinelPayload(payload) {
		return frameDone, session.ErrorRecord{}
	}
	if len(payload) > 0 && payload[0] == '{' {
		var rec session.ErrorRecord
		if json.Unmarshal(payload, &rec) == nil && rec.Error != "" {
			return frameError, rec
		}
	}
	return frameMessage, session.ErrorRecord{}
}

// openStream POSTs the stream endpoint for one session and returns the live
// response. The caller owns resp.Body.
func openStream(ctx context.Context, httpc *http.Client, base, feature, chat string) (*http.Response, error) {
	u := fmt.Sprintf("%s/stream?feature_id=%s&chat_id=%s",
		strings.TrimRight(base, "/"), url.QueryEscape(feature), url.QueryEscape(chat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// readEvents scans an SSE body and invokes fn for every data frame. It
// returns when fn reports done, at end of stream, or on a read error.
func readEvents(body io.Reader, fn func(payload []byte) (done bool, err error)) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			// Blank separators and non-data fields.
			continue
		}
		data = strings.TrimPrefix(data, " ")
		done, err := fn([]byte(data))
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return sc.Err()
}

// decodedFrame returns a map with one of payload_json, payload_text, or payload_b64.
func decodedFrame(payload []byte) map[string]any {
	out := map[string]any{}
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text if valid
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}

// checkHealth probes the health route before a run. The misspelled path is
// the one existing deployments expose.
func checkHealth(ctx context.Context, httpc *http.Client, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/heath", nil)
	if err != nil {
		return err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("health check: %s", resp.Status)
	}
	var hs struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if hs.Status != "healthy" {
		return fmt.Errorf("health check: status %q", hs.Status)
	}
	return nil
}
