package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"narrate/internal/narration"
	"narrate/internal/store"
	"narrate/internal/workflow"
)

const rainNight = "第一章 雨夜\n雨下了一夜。\n苏晚说：“你终于来了。”\n第二章 门\n门开了。\n"

func TestInitWorksAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env, "雨夜.txt", rainNight)

	out, err := runCLI(t, env, "init", source)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "雨夜: 2 chapters (2 written, 0 kept)")
	workDir := filepath.Join(env.cfg.NovelsDir(), "雨夜")
	if got := lastLine(out); got != workDir {
		t.Fatalf("expected work dir as last line, got %q", got)
	}

	out, err = runCLI(t, env, "init", source)
	if err != nil {
		t.Fatalf("repeat init: %v", err)
	}
	requireContains(t, out, "(0 written, 2 kept)")

	out, err = runCLI(t, env, "works")
	if err != nil {
		t.Fatalf("works: %v", err)
	}
	requireContains(t, out, "雨夜")
	if got := lastLine(out); got != env.cfg.NovelsDir() {
		t.Fatalf("expected novels dir as last line, got %q", got)
	}

	out, err = runCLI(t, env, "status", "雨夜")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "split")
	if got := lastLine(out); got != workDir {
		t.Fatalf("expected work dir as last line, got %q", got)
	}
}

func TestStatusUnknownWork(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "status", "missing"); err == nil {
		t.Fatal("expected error for unknown work")
	}
}

func TestRunProducesChapterAudio(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env, "雨夜.txt", rainNight)
	if _, err := runCLI(t, env, "init", source); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := runCLI(t, env, "run", "雨夜", "1")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	audio := filepath.Join(env.cfg.NovelsDir(), "雨夜", "chapters", "ch_1", store.KeyAudio)
	if got := lastLine(out); got != audio {
		t.Fatalf("expected audio path as last line, got %q", got)
	}
	if info, err := os.Stat(audio); err != nil || info.Size() == 0 {
		t.Fatalf("expected chapter audio at %s: %v", audio, err)
	}

	var bindings narration.Bindings
	data, err := os.ReadFile(filepath.Join(env.cfg.NovelsDir(), "雨夜", store.KeyBindings))
	if err != nil {
		t.Fatalf("read bindings: %v", err)
	}
	if err := json.Unmarshal(data, &bindings); err != nil {
		t.Fatalf("decode bindings: %v", err)
	}
	if bindings["苏晚"] == "" {
		t.Fatalf("expected a designed voice for 苏晚, got %v", bindings)
	}
	if env.designCalls.Load() != 1 || env.speechCalls.Load() != 1 {
		t.Fatalf("expected one design call and one synthesis batch, got %d and %d",
			env.designCalls.Load(), env.speechCalls.Load())
	}

	// A finished chapter reruns without touching any external service.
	llmCalls := env.llmCalls.Load()
	if _, err := runCLI(t, env, "run", "雨夜", "1"); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if env.llmCalls.Load() != llmCalls || env.designCalls.Load() != 1 || env.speechCalls.Load() != 1 {
		t.Fatal("expected rerun to reuse every artifact")
	}

	out, err = runCLI(t, env, "status", "雨夜")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "assembled")
}

func TestRunJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env, "雨夜.txt", rainNight)
	if _, err := runCLI(t, env, "init", source); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := runCLI(t, env, "--json", "run", "雨夜", "1", "--to", "2")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var outcomes []workflow.Outcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode outcomes: %v\n%s", err, out)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Failed() || o.Status != "assembled" {
			t.Fatalf("unexpected outcome %+v", o)
		}
	}
}

func TestRunReportsInvalidScript(t *testing.T) {
	env := setupCLITestEnv(t)
	env.scriptReply = `{"lines":[]}`
	source := writeSource(t, env, "雨夜.txt", rainNight)
	if _, err := runCLI(t, env, "init", source); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := runCLI(t, env, "run", "雨夜", "1")
	if err == nil {
		t.Fatal("expected failure for an empty script")
	}
	requireContains(t, out, "stopped at script")
	if _, statErr := os.Stat(filepath.Join(env.cfg.NovelsDir(), "雨夜", "chapters", "ch_1", store.KeyScript)); !os.IsNotExist(statErr) {
		t.Fatalf("expected no script to be stored, got %v", statErr)
	}
}

func TestRunRejectsInvalidArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	cases := [][]string{
		{"run", "雨夜", "zero"},
		{"run", "雨夜", "0"},
		{"run", "雨夜", "3", "--to", "2"},
		{"script", "  ", "1"},
	}
	for _, args := range cases {
		if _, err := runCLI(t, env, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestStageCommandsStepThroughChapter(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSource(t, env, "雨夜.txt", rainNight)
	if _, err := runCLI(t, env, "init", source); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := runCLI(t, env, "script", "雨夜", "1")
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	requireContains(t, out, "3 lines, 2 roles")

	out, err = runCLI(t, env, "characters", "雨夜", "1")
	if err != nil {
		t.Fatalf("characters: %v", err)
	}
	requireContains(t, out, "苏晚")

	if _, err := runCLI(t, env, "voices", "雨夜"); err != nil {
		t.Fatalf("voices: %v", err)
	}

	out, err = runCLI(t, env, "assemble", "雨夜", "1")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.HasSuffix(lastLine(out), store.KeyAudio) {
		t.Fatalf("expected audio path as last line, got %q", lastLine(out))
	}

	out, err = runCLI(t, env, "status", "雨夜")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "assembled")
}

func TestCheckFailsWithoutSpeechCheckout(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "check")
	if err == nil {
		t.Fatal("expected readiness failure without an IndexTTS model config")
	}
	requireContains(t, out, "IndexTTS")
}

func TestRunSendsRangeNotification(t *testing.T) {
	env := setupCLITestEnv(t)
	titles := make(chan string, 4)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
	}))
	t.Cleanup(ntfy.Close)
	env.cfg.Notifications.NtfyTopic = ntfy.URL
	writeTestConfig(t, env.configPath, env.cfg)

	source := writeSource(t, env, "雨夜.txt", rainNight)
	if _, err := runCLI(t, env, "init", source); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := runCLI(t, env, "run", "雨夜", "1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	select {
	case title := <-titles:
		if title != "Narrate - Chapters Complete" {
			t.Fatalf("unexpected notification title %q", title)
		}
	default:
		t.Fatal("expected a completion notification")
	}

	out, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "test-notify"); err == nil {
		t.Fatal("expected error without a configured topic")
	}
}
