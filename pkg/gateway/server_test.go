package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quietroomlabs/haven/pkg/agent"
	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/providers"
	"github.com/quietroomlabs/haven/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Providers.UseMock = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	logStore, err := store.New(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = logStore.Close() })

	psych := agent.New(cfg, config.DefaultKeywordTable(), providers.NewMockProvider(), logStore)
	return NewServer(psych, "127.0.0.1", 0)
}

func postMessage(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostMessage(t *testing.T) {
	s := newTestServer(t)
	rec := postMessage(t, s.Handler(), `{"message": "I've been feeling anxious about work", "user_id": "alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("empty reply")
	}
	if resp.TherapyMode == "" {
		t.Fatal("missing therapy_mode")
	}
	if resp.Crisis {
		t.Fatal("crisis flagged on a benign message")
	}
}

func TestPostMessage_EmptyRejected(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{`{"message": ""}`, `{"message": "   "}`, `{}`} {
		rec := postMessage(t, s.Handler(), body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("body %s: status = %d, want 422", body, rec.Code)
		}
	}
}

func TestPostMessage_InvalidJSON(t *testing.T) {
	s := newTestServer(t)
	rec := postMessage(t, s.Handler(), `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostMessage_Crisis(t *testing.T) {
	s := newTestServer(t)
	rec := postMessage(t, s.Handler(), `{"message": "I want to kill myself", "user_id": "alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Crisis {
		t.Fatal("crisis not flagged")
	}
	if !strings.Contains(resp.Reply, "9999666555") {
		t.Fatal("crisis reply missing helpline reference")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)
	if rec := postMessage(t, s.Handler(), `{"message": "work has been stressful", "user_id": "alice"}`); rec.Code != http.StatusOK {
		t.Fatalf("seed turn failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/alice/history?limit=5", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Turns []turnView `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(resp.Turns))
	}
	if resp.Turns[0].UserMessage != "work has been stressful" {
		t.Fatalf("turn = %+v", resp.Turns[0])
	}
	hasWorkTag := false
	for _, tag := range resp.Turns[0].Tags {
		if tag == "work" {
			hasWorkTag = true
		}
	}
	if !hasWorkTag {
		t.Fatalf("expected a work tag, got %v", resp.Turns[0].Tags)
	}
}

func TestHistoryEndpoint_TagFilter(t *testing.T) {
	s := newTestServer(t)
	for _, msg := range []string{"anxious about my job", "my partner and I argued"} {
		if rec := postMessage(t, s.Handler(), `{"message": "`+msg+`", "user_id": "alice"}`); rec.Code != http.StatusOK {
			t.Fatalf("seed turn failed: %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/alice/history?tag=relationships", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Turns []turnView `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(resp.Turns))
	}
	if resp.Turns[0].UserMessage != "my partner and I argued" {
		t.Fatalf("turn = %+v", resp.Turns[0])
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/users/alice/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Humanistic Specialist") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
