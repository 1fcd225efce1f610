package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"narrate/internal/config"
	"narrate/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinary(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("narrate-stub"))
	if r := CheckBinary("stub", "narrate-stub", "test"); !r.Passed {
		t.Fatalf("expected stub on PATH, got %s", r.Detail)
	}
	if r := CheckBinary("missing", "clearly-not-present-binary", "test"); r.Passed || r.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", r)
	}
	if r := CheckBinary("empty", "", "test"); r.Passed {
		t.Fatal("expected failure for unconfigured command")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "good-key", BaseURL: srv.URL, Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	result = CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "bad-key", BaseURL: srv.URL, Model: "m"})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckLLMConfig_MissingKey(t *testing.T) {
	if r := CheckLLMConfig("LLM", config.LLMConfig{Model: "m"}); r.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Speech.WorkDir, cfg.Speech.CfgPath), 16)
	testsupport.WriteWAV(t, filepath.Join(cfg.Paths.VoiceDir, cfg.Pipeline.NarratorSample), testsupport.WAVSpec{})

	results := RunAll(context.Background(), cfg, Options{})
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !Passed(results) {
		t.Fatal("expected overall pass")
	}
}

func TestRunAll_ReportsMissingSpeechCheckout(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{})
	if Passed(results) {
		t.Fatal("expected failure without an IndexTTS checkout or narrator sample")
	}
	found := false
	for _, r := range results {
		if r.Name == "IndexTTS checkout" {
			found = true
			if r.Passed {
				t.Fatal("checkout check should fail")
			}
		}
		if r.Name == "Upload inbox" && !r.Optional {
			t.Fatal("upload inbox should be optional")
		}
	}
	if !found {
		t.Fatal("expected IndexTTS checkout check in results")
	}
}
