package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"transparency-probe/internal/llm"
	"transparency-probe/internal/storage"
	"transparency-probe/internal/tts"
)

type fakeLLM struct {
	reply        string
	err          error
	systemPrompt string
	userMessage  string
	calls        int
}

func (f *fakeLLM) Generate(_ context.Context, messages []llm.Message) (llm.Response, error) {
	f.calls++
	for _, m := range messages {
		switch m.Role {
		case "system":
			f.systemPrompt = m.Content
		case "user":
			f.userMessage = m.Content
		}
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.reply}, nil
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	return f.audio, f.err
}

func (f *fakeSynth) ContentType() string { return "audio/mpeg" }

func newTestServer(t *testing.T, client llm.Client, synth tts.Synthesizer) *Server {
	t.Helper()
	dir := t.TempDir()
	logger, err := storage.NewLogger(filepath.Join(dir, "events.csv"), filepath.Join(dir, "qa.csv"), 4000, nil)
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return New(client, synth, logger, 0, "")
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestChatLowTransparencyUsesManipulativePrompt(t *testing.T) {
	f := &fakeLLM{reply: "Switching jobs is clearly the brave move."}
	srv := newTestServer(t, f, nil)

	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"Should I switch jobs?","transparency":10,"session_id":"abc"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["reply"] == "" {
		t.Fatal("want non-empty reply")
	}
	if !strings.Contains(f.systemPrompt, "SHOULD NOT reveal") {
		t.Errorf("low-band system prompt missing manipulative framing:\n%s", f.systemPrompt)
	}
	if strings.Contains(f.systemPrompt, "at least two different perspectives") {
		t.Error("low-band prompt must not demand multiple perspectives")
	}
	if !strings.Contains(f.userMessage, "Transparency slider: 10") {
		t.Errorf("user message missing context trailer:\n%s", f.userMessage)
	}
}

func TestChatHighTransparencyUsesReflectivePrompt(t *testing.T) {
	f := &fakeLLM{reply: "There are several ways to look at this."}
	srv := newTestServer(t, f, nil)

	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"Should I switch jobs?","transparency":90}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(f.systemPrompt, "at least two different perspectives") {
		t.Errorf("high-band prompt missing perspectives instruction:\n%s", f.systemPrompt)
	}
	if !strings.Contains(f.systemPrompt, "open questions") {
		t.Error("high-band prompt missing closing-questions instruction")
	}
}

func TestChatNonNumericTransparencyDefaults(t *testing.T) {
	f := &fakeLLM{reply: "ok"}
	srv := newTestServer(t, f, nil)

	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"hello","transparency":"very"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(f.userMessage, "Transparency slider: 50") {
		t.Errorf("non-numeric transparency should coerce to 50:\n%s", f.userMessage)
	}
}

func TestChatUpstreamFailureWritesNoQARow(t *testing.T) {
	f := &fakeLLM{err: errors.New("upstream 503")}
	srv := newTestServer(t, f, nil)

	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"Should I switch jobs?","transparency":50}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rr.Code)
	}
	if f.calls != 1 {
		t.Fatalf("want exactly one upstream call, got %d", f.calls)
	}

	var buf bytes.Buffer
	if err := srv.logger.WriteQA(&buf); err != nil {
		t.Fatalf("stream qa: %v", err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 1 {
		t.Fatalf("want header only in qa log, got %d rows", len(rows))
	}
}

func TestChatSuccessAppendsQARow(t *testing.T) {
	f := &fakeLLM{reply: "an answer"}
	srv := newTestServer(t, f, nil)

	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"a question, with a comma","transparency":77,"session_id":"sess-9"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}

	var buf bytes.Buffer
	_ = srv.logger.WriteQA(&buf)
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse qa csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want header + 1 row, got %d", len(rows))
	}
	row := rows[1]
	if row[1] != "sess-9" || row[2] != "77" || row[3] != "a question, with a comma" || row[4] != "an answer" {
		t.Fatalf("qa row mismatch: %q", row)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := &fakeLLM{reply: "x"}
	srv := newTestServer(t, f, nil)
	rr := postJSON(t, srv.Handler(), "/api/chat", `{"message":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
	if f.calls != 0 {
		t.Fatal("no upstream call expected for an empty message")
	}
}

func TestLogEndpointAppendsRow(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	rr := postJSON(t, srv.Handler(), "/api/log", `{"session_id":"abc","event":"slider_change","transparency":42}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["ok"] != true {
		t.Fatalf("want ok:true, got %v", resp)
	}

	var buf bytes.Buffer
	_ = srv.logger.WriteEvents(&buf)
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 2 {
		t.Fatalf("want header + 1 row, got %d", len(rows))
	}
	if rows[1][1] != "abc" || rows[1][2] != "slider_change" || rows[1][3] != "42" {
		t.Fatalf("event row mismatch: %q", rows[1])
	}
}

func TestLogEndpointRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	for _, body := range []string{
		`{"event":"slider_change"}`,
		`{"session_id":"abc"}`,
		`{}`,
	} {
		rr := postJSON(t, srv.Handler(), "/api/log", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: want 400, got %d", body, rr.Code)
		}
		var resp map[string]any
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["ok"] != false || resp["error"] != "missing fields" {
			t.Fatalf("body %s: unexpected response %v", body, resp)
		}
	}

	var buf bytes.Buffer
	_ = srv.logger.WriteEvents(&buf)
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 1 {
		t.Fatalf("rejected requests must not append rows, got %d rows", len(rows))
	}
}

func TestLogEndpointDropsNonNumericTelemetry(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	rr := postJSON(t, srv.Handler(), "/api/log", `{"session_id":"abc","event":"x","transparency":"not a number","message_len":"nope"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var buf bytes.Buffer
	_ = srv.logger.WriteEvents(&buf)
	rows, _ := csv.NewReader(&buf).ReadAll()
	if rows[1][3] != "" || rows[1][4] != "" {
		t.Fatalf("non-numeric telemetry should serialize empty, got %q", rows[1])
	}
}

func TestLogsDownload(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	_ = postJSON(t, srv.Handler(), "/api/log", `{"session_id":"abc","event":"slider_change","transparency":1}`)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("content type: %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition: %s", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "ts_iso,session_id,event") {
		t.Fatalf("body does not start with header: %q", rr.Body.String())
	}
}

func TestLogsDownloadOnFreshDeploymentIsHeaderOnly(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/logs/qa", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != strings.Join(storage.QAHeader, ",") {
		t.Fatalf("want regenerated header, got %q", rr.Body.String())
	}
}

func TestTTSWithoutSynthesizerReturns204(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	rr := postJSON(t, srv.Handler(), "/api/tts_openai", `{"text":"hello"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rr.Code)
	}
}

func TestTTSRejectsMissingText(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, &fakeSynth{audio: []byte("x")})
	rr := postJSON(t, srv.Handler(), "/api/tts_openai", `{"text":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestTTSReturnsAudio(t *testing.T) {
	audio := []byte("fake-mp3")
	srv := newTestServer(t, &fakeLLM{}, &fakeSynth{audio: audio})
	rr := postJSON(t, srv.Handler(), "/api/tts_openai", `{"text":"say this"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type: %s", ct)
	}
	if !bytes.Equal(rr.Body.Bytes(), audio) {
		t.Fatal("audio bytes mismatch")
	}
}

func TestTTSUpstreamFailureReturns500(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, &fakeSynth{err: fmt.Errorf("provider down")})
	rr := postJSON(t, srv.Handler(), "/api/tts_openai", `{"text":"say this"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("want 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeLLM{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected status payload: %v", resp)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/log", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Fatalf("remote addr fallback: %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("forwarded-for: %s", got)
	}
}
