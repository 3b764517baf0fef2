package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/metrics"
	"github.com/agentlogs/logmon/internal/scanner"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(logging.Middleware(s.logger))
	r.Use(cors(s.config.CORSOrigin))

	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/logs", s.handleListLogs)
	r.Get("/api/logs/*", s.handleReadLog)
	r.Get("/api/health", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	return r
}

// cors sets the allowed origin on every response and answers preflights.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// handleListLogs returns every file under the roots, newest first
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.config.Lister == nil {
		writeError(w, http.StatusServiceUnavailable, "Listing unavailable")
		return
	}

	var opts scanner.ListOptions
	if expr := r.URL.Query().Get("since"); expr != "" {
		since, err := scanner.ParseSince(expr, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Since = since
	}

	files, err := s.config.Lister.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("Listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []scanner.FileRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(files),
		"data":    files,
	})
}

// handleReadLog returns the content of one file, optionally only its tail
func (s *Server) handleReadLog(w http.ResponseWriter, r *http.Request) {
	if s.config.Reader == nil {
		writeError(w, http.StatusServiceUnavailable, "Content unavailable")
		return
	}

	id := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		// chi matched against the escaped path.
		unescaped, err := url.PathUnescape(id)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid file name")
			return
		}
		id = unescaped
	}

	lines := 0
	var linesField any = "all"
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "lines must be a non-negative integer")
			return
		}
		if n > 0 {
			lines = n
			linesField = n
		}
	}

	content, err := s.config.Reader.ReadFile(id, lines)
	switch {
	case errors.Is(err, scanner.ErrNotFound):
		s.logger.Info("Log file not found", zap.String("id", id))
		writeError(w, http.StatusNotFound, "Log file not found")
		return
	case errors.Is(err, scanner.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	case err != nil:
		s.logger.Error("Failed to read log file", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"filename": id,
		"content":  content,
		"lines":    linesField,
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"service":   "logmon",
		"status":    "ok",
		"uptime":    time.Since(s.started).Seconds(),
		"timestamp": time.Now(),
		"clients":   s.ClientCount(),
	})
}
