package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"narrate/internal/config"
	"narrate/internal/services/llm"
)

// CheckLLMConfig verifies that credentials and a model are configured.
func CheckLLMConfig(name string, cfg config.LLMConfig) Result {
	switch {
	case cfg.APIKey == "":
		return Result{Name: name, Detail: "API key missing (set NARRATE_LLM_API_KEY or llm.api_key)"}
	case cfg.Model == "":
		return Result{Name: name, Detail: "model missing"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s via %s", cfg.Model, cfg.BaseURL)}
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Referer:  cfg.Referer,
		Title:    cfg.Title,
		JSONMode: cfg.JSONMode,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckVoiceDesign verifies the voice design endpoint is configured.
func CheckVoiceDesign(cfg *config.Config) Result {
	const name = "Voice design"
	if err := cfg.RequireVoiceDesign(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if strings.TrimSpace(cfg.VoiceDesign.URL) == "" {
		return Result{Name: name, Detail: "voice_design.url missing"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.VoiceDesign.URL}
}

// CheckSpeech verifies the synthesizer launcher and IndexTTS checkout.
func CheckSpeech(cfg *config.Config) []Result {
	results := []Result{CheckBinary("uv", cfg.UVBinary(), "launches the IndexTTS2 driver")}

	workDir := cfg.Speech.WorkDir
	checkout := CheckDirectoryAccess("IndexTTS checkout", workDir)
	results = append(results, checkout)
	if !checkout.Passed {
		return results
	}

	modelCfg := cfg.Speech.CfgPath
	if !filepath.IsAbs(modelCfg) {
		modelCfg = filepath.Join(workDir, modelCfg)
	}
	if info, err := os.Stat(modelCfg); err != nil || info.IsDir() {
		results = append(results, Result{Name: "IndexTTS model config", Detail: fmt.Sprintf("%s (error: not found)", modelCfg)})
	} else {
		results = append(results, Result{Name: "IndexTTS model config", Passed: true, Detail: modelCfg})
	}
	return results
}

// CheckNarratorSample verifies the default narrator voice exists in the
// voice library.
func CheckNarratorSample(cfg *config.Config) Result {
	const name = "Narrator sample"
	sample := cfg.Pipeline.NarratorSample
	if !filepath.IsAbs(sample) {
		sample = filepath.Join(cfg.Paths.VoiceDir, sample)
	}
	info, err := os.Stat(sample)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing or empty)", sample)}
	}
	return Result{Name: name, Passed: true, Detail: sample}
}

// CheckBinary reports whether command resolves on PATH.
func CheckBinary(name, command, description string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Detail: "command not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found (%s)", command, description)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
