package indextts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// UVCommand is the default launcher for the driver.
const UVCommand = "uv"

// Config captures the IndexTTS2 checkout and inference settings.
type Config struct {
	WorkDir        string
	UVBinary       string
	CfgPath        string
	ModelDir       string
	UseFP16        bool
	UseCUDAKernel  bool
	UseDeepSpeed   bool
	EmoAlpha       float64
	UseEmoText     bool
	UseRandom      bool
	TimeoutMinutes int
}

// Line is one synthesis request of a batch.
type Line struct {
	Index     int
	Text      string
	RefAudio  string
	OutputWAV string
}

// CommandRunner executes name with args inside dir.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) error

// Service runs IndexTTS2 batches through uv.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
}

// NewService creates a speech synthesis service.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.UVBinary) == "" {
		cfg.UVBinary = UVCommand
	}
	if cfg.CfgPath == "" {
		cfg.CfgPath = "checkpoints/config.yaml"
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "checkpoints"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

type taskOptions struct {
	CfgPath       string  `json:"cfg_path"`
	ModelDir      string  `json:"model_dir"`
	UseFP16       bool    `json:"use_fp16"`
	UseCUDAKernel bool    `json:"use_cuda_kernel"`
	UseDeepSpeed  bool    `json:"use_deepspeed"`
	EmoAlpha      float64 `json:"emo_alpha"`
	UseEmoText    bool    `json:"use_emo_text"`
	UseRandom     bool    `json:"use_random"`
}

type taskLine struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	RefAudio  string `json:"ref_audio"`
	OutputWAV string `json:"output_wav"`
}

type taskFile struct {
	Options taskOptions `json:"options"`
	Lines   []taskLine  `json:"lines"`
}

// Synthesize hands the whole ordered batch to one driver process. The task
// and driver files live in the work directory only for the duration of the
// call.
func (s *Service) Synthesize(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return errors.New("indextts: empty batch")
	}
	workDir := strings.TrimSpace(s.cfg.WorkDir)
	if workDir == "" {
		return errors.New("indextts: work directory required")
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return fmt.Errorf("indextts: work directory %q unavailable", workDir)
	}

	task := taskFile{
		Options: taskOptions{
			CfgPath:       s.cfg.CfgPath,
			ModelDir:      s.cfg.ModelDir,
			UseFP16:       s.cfg.UseFP16,
			UseCUDAKernel: s.cfg.UseCUDAKernel,
			UseDeepSpeed:  s.cfg.UseDeepSpeed,
			EmoAlpha:      s.cfg.EmoAlpha,
			UseEmoText:    s.cfg.UseEmoText,
			UseRandom:     s.cfg.UseRandom,
		},
		Lines: make([]taskLine, 0, len(lines)),
	}
	for _, line := range lines {
		task.Lines = append(task.Lines, taskLine(line))
	}

	taskPath, err := writeTemp(workDir, "narrate-task-*.json", func() ([]byte, error) {
		return json.MarshalIndent(task, "", "  ")
	})
	if err != nil {
		return fmt.Errorf("indextts: write task: %w", err)
	}
	defer os.Remove(taskPath)
	driverPath, err := writeTemp(workDir, "narrate-driver-*.py", func() ([]byte, error) {
		return []byte(driverScript), nil
	})
	if err != nil {
		return fmt.Errorf("indextts: write driver: %w", err)
	}
	defer os.Remove(driverPath)

	if s.cfg.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutMinutes)*time.Minute)
		defer cancel()
	}
	args := []string{"run", filepath.Base(driverPath), "--task", taskPath}
	if err := s.run(ctx, workDir, s.cfg.UVBinary, args...); err != nil {
		return fmt.Errorf("indextts: %w", err)
	}
	return nil
}

func writeTemp(dir, pattern string, content func() ([]byte, error)) (string, error) {
	data, err := content()
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, dir, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, dir, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		return fmt.Errorf("%s: %w: %s", name, err, summarizeStderr(stderr.Bytes()))
	}
	return nil
}

// summarizeStderr prefers the driver's JSON error line, then the last Python
// exception line, then the last non-empty line.
func summarizeStderr(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal([]byte(strings.TrimSpace(lines[i])), &payload) == nil && payload.Error != "" {
			return payload.Error
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.Contains(line, "Error:") || strings.Contains(line, "Exception:") {
			return line
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
