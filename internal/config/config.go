package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	VoiceDir  string `toml:"voice_dir"`
	LogDir    string `toml:"log_dir"`
	UploadDir string `toml:"upload_dir"`
}

// LLMOverride holds per-stage text generation settings. Empty fields fall
// back to the shared [llm] section.
type LLMOverride struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains shared text generation connection settings.
type LLM struct {
	APIKey         string      `toml:"api_key"`
	BaseURL        string      `toml:"base_url"`
	Model          string      `toml:"model"`
	Referer        string      `toml:"referer"`
	Title          string      `toml:"title"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	JSONMode       bool        `toml:"json_mode"`
	Temperature    float64     `toml:"temperature"`
	Script         LLMOverride `toml:"script"`
	Profile        LLMOverride `toml:"profile"`
}

// VoiceDesign contains settings for the voice design endpoint.
type VoiceDesign struct {
	URL            string `toml:"url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PreviewText    string `toml:"preview_text"`
}

// Speech contains settings for the IndexTTS2 batch synthesizer.
type Speech struct {
	WorkDir        string  `toml:"work_dir"`
	UVCommand      string  `toml:"uv_command"`
	CfgPath        string  `toml:"cfg_path"`
	ModelDir       string  `toml:"model_dir"`
	UseFP16        bool    `toml:"use_fp16"`
	UseCUDAKernel  bool    `toml:"use_cuda_kernel"`
	UseDeepSpeed   bool    `toml:"use_deepspeed"`
	EmoAlpha       float64 `toml:"emo_alpha"`
	UseEmoText     bool    `toml:"use_emo_text"`
	UseRandom      bool    `toml:"use_random"`
	TimeoutMinutes int     `toml:"timeout_minutes"`
}

// Pipeline contains chapter splitting and assembly settings.
type Pipeline struct {
	ChapterPattern  string `toml:"chapter_pattern"`
	NarratorRole    string `toml:"narrator_role"`
	NarratorProfile string `toml:"narrator_profile"`
	NarratorSample  string `toml:"narrator_sample"`
	SilenceMS       int    `toml:"silence_ms"`
}

// Notifications configures ntfy push notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for narrate.
//
// Configuration sections by subsystem:
//   - Paths: artifact store, voice library, logs, upload inbox
//   - LLM: text generation, with [llm.script] and [llm.profile] overrides
//   - VoiceDesign: voice sample generation endpoint
//   - Speech: IndexTTS2 batch synthesis
//   - Pipeline: chapter boundary pattern, narrator defaults, silence gap
//   - Notifications: ntfy topic for range and inbox events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	VoiceDesign   VoiceDesign   `toml:"voice_design"`
	Speech        Speech        `toml:"speech"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory or next to the config file is applied to the environment
// first; existing variables are never overridden. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("narrate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the artifact store, voice library, and log
// directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.NovelsDir(), c.Paths.VoiceDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NovelsDir is the root of all per-work artifacts.
func (c *Config) NovelsDir() string {
	return filepath.Join(c.Paths.DataDir, "novels")
}

// LedgerPath is the SQLite stage ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "ledger.db")
}

// UVBinary returns the uv executable used to launch the synthesizer.
func (c *Config) UVBinary() string {
	if bin := strings.TrimSpace(c.Speech.UVCommand); bin != "" {
		return bin
	}
	return defaultUVCommand
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved text generation settings for one stage.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
	Temperature    float64
	JSONMode       bool
}

// ScriptLLM returns the settings used for script adaptation.
func (c *Config) ScriptLLM() LLMConfig {
	return c.resolveLLM(c.LLM.Script, defaultScriptMaxTokens)
}

// ProfileLLM returns the settings used for character profile generation.
func (c *Config) ProfileLLM() LLMConfig {
	return c.resolveLLM(c.LLM.Profile, defaultProfileMaxTokens)
}

func (c *Config) resolveLLM(override LLMOverride, fallbackTokens int) LLMConfig {
	cfg := LLMConfig{
		APIKey:         strings.TrimSpace(override.APIKey),
		BaseURL:        strings.TrimSpace(override.BaseURL),
		Model:          strings.TrimSpace(override.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: override.TimeoutSeconds,
		MaxTokens:      override.MaxTokens,
		Temperature:    c.LLM.Temperature,
		JSONMode:       c.LLM.JSONMode,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(c.LLM.APIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	}
	if cfg.Model == "" {
		cfg.Model = strings.TrimSpace(c.LLM.Model)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = c.LLM.TimeoutSeconds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = fallbackTokens
	}
	return cfg
}
