package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	if got := parseLevel("debug"); got != zapcore.DebugLevel {
		t.Errorf("parseLevel(debug) = %v", got)
	}
	if got := parseLevel("bogus"); got != zapcore.InfoLevel {
		t.Errorf("parseLevel(bogus) = %v, want info", got)
	}
}

func TestNew_WritesToRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logmon.log")

	cfg := DefaultConfig()
	cfg.File = logFile
	cfg.Format = "json"

	logger := New(cfg)
	logger.Info("hello", zap.String("component", "test"))
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("Log file missing entry, got: %s", data)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Errorf("Log file missing field, got: %s", data)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logmon.log")

	cfg := DefaultConfig()
	cfg.File = logFile
	cfg.Format = "json"
	cfg.Level = "warn"

	logger := New(cfg)
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "quiet") {
		t.Error("Info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("Warn entry should be written")
	}
}

func TestL_DefaultsToNop(t *testing.T) {
	if L() == nil {
		t.Fatal("L() returned nil")
	}
}

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", rec.Code)
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 request log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/logs" {
		t.Errorf("Expected path /api/logs, got %v", fields["path"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("Expected status field 418, got %v", fields["status"])
	}
	if fields["size"] != int64(len("short and stout")) {
		t.Errorf("Expected size field %d, got %v", len("short and stout"), fields["size"])
	}
}

func TestSetLevel_ChangesGlobalLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "logmon.log")
	cfg.Level = "info"
	logger := Init(cfg)
	t.Cleanup(func() { SetLevel("info") })

	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at info level")
	}

	SetLevel("debug")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("SetLevel(debug) should enable debug on the global logger")
	}

	SetLevel("error")
	if L().Core().Enabled(zapcore.WarnLevel) {
		t.Error("SetLevel(error) should disable warn")
	}
}
