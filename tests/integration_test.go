package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
// These tests validate the pipeline end-to-end:
//
//   Client → HTTP API → Rate limit / Idempotency (Redis) → Queue →
//   Batch worker → Postgres → Analytics → Response
//
// The full stack (api, worker, postgres, redis) must already be running,
// for example via docker compose.
//
// Optional environment overrides:
//
//   BASE_URL        default http://localhost:8080
//   CLIENT1_KEY     default client-key-123   (seeded by schema.sql)
//   CLIENT2_KEY     default client-key-456
//   RATE_LIMIT      default 100              (must match the API's setting)
//   RATE_LIMIT_TEST set to 1 to enable the window-exhaustion test; it
//                   burns CLIENT2's whole window, so it is off by default
//
////////////////////////////////////////////////////////////////////////////////

func baseURL() string {
	if v := os.Getenv("BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func client1Key() string {
	if v := os.Getenv("CLIENT1_KEY"); v != "" {
		return v
	}
	return "client-key-123"
}

func client2Key() string {
	if v := os.Getenv("CLIENT2_KEY"); v != "" {
		return v
	}
	return "client-key-456"
}

func rateLimit() int {
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT")); err == nil && v > 0 {
		return v
	}
	return 100
}

// unique generates a unique string so tests never collide with previous runs.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}

////////////////////////////////////////////////////////////////////////////////
// SERVICE READINESS HELPER
////////////////////////////////////////////////////////////////////////////////

// waitReady polls /ready until Postgres and Redis are both reachable.
func waitReady(t *testing.T) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL() + "/ready")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(300 * time.Millisecond)
	}

	t.Fatalf("service not ready after 30s")
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

func httpGet(t *testing.T, apiKey string, path string) (int, []byte) {
	t.Helper()

	req, _ := http.NewRequest("GET", baseURL()+path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func postJSON(t *testing.T, apiKey, path string, payload any) (int, []byte) {
	t.Helper()

	b, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", baseURL()+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

// postEvent is a convenience wrapper for POST /events.
func postEvent(t *testing.T, apiKey, eventID, eventType string, ts time.Time) (int, []byte) {
	payload := map[string]any{
		"event_id":   eventID,
		"event_type": eventType,
		"timestamp":  ts.UTC().Format(time.RFC3339),
		"payload":    map[string]any{"source": "integration-test"},
	}
	return postJSON(t, apiKey, "/events", payload)
}

// getCount queries the analytics count endpoint.
func getCount(t *testing.T, apiKey, eventType string, from, to time.Time) (int, []byte) {
	u, _ := url.Parse(baseURL() + "/analytics/count")
	q := u.Query()
	q.Set("event_type", eventType)
	q.Set("start", from.UTC().Format(time.RFC3339))
	q.Set("end", to.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	return httpGet(t, apiKey, u.String()[len(baseURL()):])
}

func parseCount(t *testing.T, b []byte) int64 {
	t.Helper()
	var r struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("invalid count JSON %q: %v", b, err)
	}
	return r.Count
}

func parseMessage(t *testing.T, b []byte) string {
	t.Helper()
	var r struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("invalid JSON %q: %v", b, err)
	}
	return r.Message
}

// waitForCount polls analytics until the async worker has persisted the
// expected count, or fails after 15s.
func waitForCount(t *testing.T, apiKey, eventType string, from, to time.Time, want int64) {
	t.Helper()

	deadline := time.Now().Add(15 * time.Second)
	var last int64
	for time.Now().Before(deadline) {
		_, b := getCount(t, apiKey, eventType, from, to)
		last = parseCount(t, b)
		if last == want {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("count for %q = %d after 15s, want %d", eventType, last, want)
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

func TestHealth_ReturnsHealthy(t *testing.T) {
	s, b := httpGet(t, "", "/health")
	if s != http.StatusOK {
		t.Fatalf("health expected 200 got %d", s)
	}
	var r struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(b, &r); err != nil || r.Status != "healthy" {
		t.Fatalf("health body = %s, want status healthy", b)
	}
}

func TestReady_ReturnsOK(t *testing.T) {
	waitReady(t)
	s, _ := httpGet(t, "", "/ready")
	if s != http.StatusOK {
		t.Fatalf("ready expected 200 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// EVENTS CONTRACT TESTS
////////////////////////////////////////////////////////////////////////////////

func TestEvents_UnauthorizedWithoutAPIKey(t *testing.T) {
	waitReady(t)

	s, _ := postEvent(t, "", unique("e"), "click", time.Now())
	if s != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", s)
	}
}

func TestEvents_UnauthorizedWithUnknownAPIKey(t *testing.T) {
	waitReady(t)

	s, _ := postEvent(t, "no-such-key", unique("e"), "click", time.Now())
	if s != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", s)
	}
}

func TestEvents_BadRequestOnInvalidPayload(t *testing.T) {
	waitReady(t)

	payload := map[string]any{"event_type": "click"} // no event_id, no timestamp
	s, _ := postJSON(t, client1Key(), "/events", payload)
	if s != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", s)
	}
}

func TestEvents_AcceptedReturns202(t *testing.T) {
	waitReady(t)

	s, b := postEvent(t, client1Key(), unique("e"), unique("type"), time.Now())
	if s != http.StatusAccepted {
		t.Fatalf("expected 202 got %d (%s)", s, b)
	}
	if msg := parseMessage(t, b); msg != "Event accepted" {
		t.Fatalf("message = %q, want \"Event accepted\"", msg)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CORE PIPELINE BEHAVIOR TESTS
////////////////////////////////////////////////////////////////////////////////

// Submit once, drain, count once; replay is ignored and the count holds.
func TestPipeline_SubmitDrainCountAndIdempotentReplay(t *testing.T) {
	waitReady(t)

	eventID := unique("e")
	eventType := unique("click")
	ts := time.Now().UTC()
	from, to := ts.Add(-time.Hour), ts.Add(time.Hour)

	s, b := postEvent(t, client1Key(), eventID, eventType, ts)
	if s != http.StatusAccepted || parseMessage(t, b) != "Event accepted" {
		t.Fatalf("first submit: status %d body %s", s, b)
	}

	waitForCount(t, client1Key(), eventType, from, to, 1)

	s, b = postEvent(t, client1Key(), eventID, eventType, ts)
	if s != http.StatusAccepted {
		t.Fatalf("replay: expected 202 got %d", s)
	}
	if msg := parseMessage(t, b); msg != "Duplicate event ignored" {
		t.Fatalf("replay message = %q, want \"Duplicate event ignored\"", msg)
	}

	// Give the worker a moment, then confirm the replay persisted nothing.
	time.Sleep(2 * time.Second)
	_, cb := getCount(t, client1Key(), eventType, from, to)
	if got := parseCount(t, cb); got != 1 {
		t.Fatalf("count after replay = %d, want 1", got)
	}
}

// Events appear in the grouped analytics after draining.
func TestPipeline_GroupContainsPersistedEvents(t *testing.T) {
	waitReady(t)

	eventType := unique("grouped")
	ts := time.Now().UTC()

	postEvent(t, client1Key(), unique("e"), eventType, ts)
	waitForCount(t, client1Key(), eventType, ts.Add(-time.Hour), ts.Add(time.Hour), 1)

	s, b := httpGet(t, client1Key(), "/analytics/group")
	if s != http.StatusOK {
		t.Fatalf("group expected 200 got %d", s)
	}

	var r struct {
		Groups []struct {
			ClientID  int64  `json:"client_id"`
			EventType string `json:"event_type"`
			Count     int64  `json:"count"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("invalid group JSON: %v", err)
	}

	for _, g := range r.Groups {
		if g.EventType == eventType && g.Count == 1 {
			return
		}
	}
	t.Fatalf("group response missing (%s, 1): %s", eventType, b)
}

// Window exhaustion: request limit+1 within one window gets a 429.
// Burns client 2's entire window, so it runs only when explicitly enabled.
func TestRateLimit_OverWindowLimitReturns429(t *testing.T) {
	if os.Getenv("RATE_LIMIT_TEST") != "1" {
		t.Skip("set RATE_LIMIT_TEST=1 to run the window-exhaustion test")
	}
	waitReady(t)

	limit := rateLimit()
	ts := time.Now()

	for i := 0; i < limit; i++ {
		s, b := postEvent(t, client2Key(), unique("rl"), "rl-test", ts)
		if s != http.StatusAccepted {
			t.Fatalf("request %d: expected 202 got %d (%s)", i+1, s, b)
		}
	}

	s, _ := postEvent(t, client2Key(), unique("rl"), "rl-test", ts)
	if s != http.StatusTooManyRequests {
		t.Fatalf("request %d: expected 429 got %d", limit+1, s)
	}
}
