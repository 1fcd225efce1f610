package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"narrate/internal/characters"
	"narrate/internal/config"
	"narrate/internal/logging"
	"narrate/internal/script"
	"narrate/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string

	llmCalls     atomic.Int32
	designCalls  atomic.Int32
	speechCalls  atomic.Int32
	scriptReply  string
	designServer *httptest.Server
	llmServer    *httptest.Server
}

const defaultScriptReply = `{"lines":[{"role":"旁白","text":"雨下了一夜。"},{"role":"苏晚","text":"你终于来了。"},{"role":"旁白","text":"门开了。"}]}`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{baseDir: base, scriptReply: defaultScriptReply}
	env.llmServer = httptest.NewServer(http.HandlerFunc(env.serveLLM))
	t.Cleanup(env.llmServer.Close)
	env.designServer = httptest.NewServer(http.HandlerFunc(env.serveDesign(t)))
	t.Cleanup(env.designServer.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithLLMEndpoint(env.llmServer.URL),
		testsupport.WithVoiceDesignEndpoint(env.designServer.URL),
	)
	if err := os.MkdirAll(cfg.Speech.WorkDir, 0o755); err != nil {
		t.Fatalf("mkdir speech work dir: %v", err)
	}
	env.cfg = cfg
	env.configPath = filepath.Join(homeDir, ".config", "narrate", "config.toml")
	writeTestConfig(t, env.configPath, cfg)

	testsupport.WriteWAV(t, filepath.Join(cfg.Paths.VoiceDir, cfg.Pipeline.NarratorSample), testsupport.WAVSpec{})
	return env
}

func (e *cliTestEnv) serveLLM(w http.ResponseWriter, r *http.Request) {
	e.llmCalls.Add(1)
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	content := `{"ok":true}`
	if len(req.Messages) > 0 {
		switch strings.TrimSpace(req.Messages[0].Content) {
		case strings.TrimSpace(script.AdaptationPrompt):
			content = e.scriptReply
		case strings.TrimSpace(characters.ProfileSystemPrompt):
			content = `{"role":"ignored","descript":"二十岁女性，声音清冷，语速偏慢。"}`
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
}

func (e *cliTestEnv) serveDesign(t *testing.T) http.HandlerFunc {
	sample := filepath.Join(t.TempDir(), "trial.wav")
	testsupport.WriteWAV(t, sample, testsupport.WAVSpec{})
	audio, err := os.ReadFile(sample)
	if err != nil {
		t.Fatalf("read trial sample: %v", err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		e.designCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voice_id":    fmt.Sprintf("voice-%d", e.designCalls.Load()),
			"trial_audio": hex.EncodeToString(audio),
			"base_resp":   map[string]any{"status_code": 0, "status_msg": "success"},
		})
	}
}

// speechRunner stands in for `uv run driver.py --task task.json` and writes
// one short WAV per requested line.
func (e *cliTestEnv) speechRunner(t *testing.T) func(ctx context.Context, dir, name string, args ...string) error {
	return func(_ context.Context, dir, name string, args ...string) error {
		e.speechCalls.Add(1)
		taskPath := args[len(args)-1]
		data, err := os.ReadFile(taskPath)
		if err != nil {
			return err
		}
		var task struct {
			Lines []struct {
				Index     int    `json:"index"`
				OutputWAV string `json:"output_wav"`
			} `json:"lines"`
		}
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		for _, line := range task.Lines {
			testsupport.WriteWAV(t, line.OutputWAV, testsupport.WAVSpec{Frames: 1600, Value: line.Index + 1})
		}
		return nil
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(withSpeechRunner(env.speechRunner(t)), withLogger(logging.NewNop()))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
voice_dir = %q
log_dir = %q
upload_dir = %q

[llm]
api_key = %q
base_url = %q
model = "test-model"

[voice_design]
url = %q
api_token = %q

[speech]
work_dir = %q

[pipeline]
silence_ms = 500

[notifications]
ntfy_topic = %q

[logging]
level = "error"
`,
		cfg.Paths.DataDir, cfg.Paths.VoiceDir, cfg.Paths.LogDir, cfg.Paths.UploadDir,
		cfg.LLM.APIKey, cfg.LLM.BaseURL,
		cfg.VoiceDesign.URL, cfg.VoiceDesign.APIToken,
		cfg.Speech.WorkDir,
		cfg.Notifications.NtfyTopic,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeSource(t *testing.T, env *cliTestEnv, name string, chapters ...string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(chapters, "\n")), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	return lines[len(lines)-1]
}
