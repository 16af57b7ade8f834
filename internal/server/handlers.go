package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transparency-probe/internal/llm"
	"transparency-probe/internal/prompt"
	"transparency-probe/internal/storage"
	"transparency-probe/internal/tts"
)

type chatRequest struct {
	Message      string `json:"message"`
	Transparency any    `json:"transparency"`
	SessionID    string `json:"session_id"`
	VoicePreset  string `json:"voice_preset"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	transparency := prompt.ParseTransparency(req.Transparency)
	system := prompt.BuildSystemPrompt(transparency, req.VoicePreset)
	user := buildUserMessage(req.Message, transparency, req.VoicePreset)

	reply, err := llm.Reply(r.Context(), s.llm, system, user)
	if err != nil {
		log.Printf("❌ chat completion failed (session=%s): %v", req.SessionID, err)
		http.Error(w, "Error from /api/chat", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})

	// The reply already stands; a failed content-log append is operator
	// news only.
	if err := s.logger.LogQA(storage.QARecord{
		Timestamp:    time.Now(),
		SessionID:    req.SessionID,
		Transparency: transparency,
		Question:     req.Message,
		Answer:       reply,
	}); err != nil {
		log.Printf("⚠️ failed to append qa log: %v", err)
	}
}

// buildUserMessage wraps the raw message with the context trailer the
// model is prompted with alongside the slider value.
func buildUserMessage(message string, transparency float64, preset string) string {
	if strings.TrimSpace(preset) == "" {
		preset = "n/a"
	}
	return "User message: " + strings.TrimSpace(message) + "\n\nContext:\n" +
		"- Transparency slider: " + strconv.FormatFloat(transparency, 'f', -1, 64) +
		" (0=very manipulative, 100=highly topic-transparent)\n" +
		"- Voice preset: " + preset
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	// No synthesizer configured: answer empty and let the browser fall
	// back to its on-device speech engine.
	if s.tts == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	audio, err := s.tts.Synthesize(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, tts.ErrEmptyText) {
			http.Error(w, "Text is required", http.StatusBadRequest)
			return
		}
		log.Printf("❌ tts synthesis failed: %v", err)
		http.Error(w, "Error from /api/tts_openai", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", s.tts.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

type logRequest struct {
	SessionID    string `json:"session_id"`
	Event        string `json:"event"`
	Transparency any    `json:"transparency"`
	MessageLen   any    `json:"message_len"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
		return
	}
	if req.SessionID == "" || req.Event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing fields"})
		return
	}

	rec := storage.EventRecord{
		Timestamp:    time.Now(),
		SessionID:    req.SessionID,
		Event:        req.Event,
		Transparency: optionalFloat(req.Transparency),
		MessageLen:   optionalInt(req.MessageLen),
		IP:           clientIP(r),
	}
	if err := s.logger.LogEvent(rec); err != nil {
		log.Printf("❌ failed to append event log: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "write failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEventLogDownload(w http.ResponseWriter, r *http.Request) {
	s.serveLog(w, r, "events.csv", s.logger.WriteEvents)
}

func (s *Server) handleQALogDownload(w http.ResponseWriter, r *http.Request) {
	s.serveLog(w, r, "qa.csv", s.logger.WriteQA)
}

func (s *Server) serveLog(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer) error) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := write(w); err != nil {
		// Headers may already be on the wire; the truncated body is the
		// best signal left.
		log.Printf("❌ failed to stream %s: %v", filename, err)
	}
}

// clientIP prefers the first X-Forwarded-For hop (the probe runs behind a
// reverse proxy in deployment), falling back to the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// optionalFloat keeps a finite numeric value and drops everything else,
// so a bad client field becomes an empty log column, never NaN.
func optionalFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func optionalInt(v any) *int {
	f := optionalFloat(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ failed to encode response: %v", err)
	}
}
