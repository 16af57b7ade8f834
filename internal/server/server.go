// Package server exposes the HTTP surface consumed by the browser client:
// the chat proxy, the optional TTS endpoint, the telemetry sink and the
// log download.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"transparency-probe/internal/llm"
	"transparency-probe/internal/storage"
	"transparency-probe/internal/tts"
)

type Server struct {
	llm       llm.Client
	tts       tts.Synthesizer // nil when the deployment has no TTS
	logger    *storage.Logger
	staticDir string
	port      int
	server    *http.Server
	startTime time.Time
}

func New(llmClient llm.Client, synth tts.Synthesizer, logger *storage.Logger, port int, staticDir string) *Server {
	return &Server{
		llm:       llmClient,
		tts:       synth,
		logger:    logger,
		staticDir: staticDir,
		port:      port,
		startTime: time.Now(),
	}
}

// Handler builds the full routing table; split out from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/tts_openai", s.handleTTS)
	mux.HandleFunc("/api/log", s.handleLog)
	mux.HandleFunc("/logs", s.handleEventLogDownload)
	mux.HandleFunc("/logs/qa", s.handleQALogDownload)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/", s.handleRoot)

	return corsMiddleware(mux)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Transparency probe backend listening on http://localhost:%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleRoot serves the static browser client; anything else under / that
// is not a known route 404s through the file server.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.staticDir == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(s.staticDir); err != nil {
		http.NotFound(w, r)
		return
	}
	http.FileServer(http.Dir(s.staticDir)).ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"tts":    s.tts != nil,
	})
}

// corsMiddleware mimics the permissive cors() the probe always ran with;
// the study deployment embeds the client, but local development serves it
// from a different origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
