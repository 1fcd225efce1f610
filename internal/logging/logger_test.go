package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"narrate/internal/config"
	"narrate/internal/logging"
	"narrate/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")
	if !strings.Contains(readLog(t, filepath.Join(cfg.Paths.LogDir, "narrate.log")), "hello from test") {
		t.Fatal("expected message in log file")
	}
}

func TestConsoleLoggerPromotesWorkAndChapter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithWork(context.Background(), "凡人")
	ctx = services.WithChapter(ctx, 2)
	ctx = services.WithStage(ctx, "script")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "script")).Info("derived", logging.Int("lines", 12))

	content := readLog(t, logPath)
	for _, fragment := range []string{"[凡人 ch2]", "script: derived", "stage=script", "lines=12"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no colour codes in file output, got %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if !strings.Contains(readLog(t, logPath), ".go:") {
		t.Fatal("expected caller information for debug level")
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = services.Wrap(services.ErrUnboundRole, "assembly", "resolve", "roles: 韩立", nil)
	logging.ErrorWithContext(logger, "assembly failed", "assembly_failed", logging.FailureAttrs(err)...)

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "error" || entry["msg"] != "assembly failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry[logging.FieldEventType] != "assembly_failed" {
		t.Fatalf("expected event type, got %v", entry)
	}
	if entry[logging.FieldErrorKind] != "unbound_role" {
		t.Fatalf("expected error kind, got %v", entry)
	}
	if hint, _ := entry[logging.FieldErrorHint].(string); !strings.Contains(hint, "voices") {
		t.Fatalf("expected specific hint, got %v", entry[logging.FieldErrorHint])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "voice skipped", "voice_failed", logging.Error(errors.New("boom")))
	content := readLog(t, logPath)
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if !strings.Contains(content, key) {
			t.Fatalf("expected %s in %q", key, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLogger(t *testing.T) {
	logger := logging.NewNop()
	logger.Info("discarded")
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should be disabled")
	}
}
