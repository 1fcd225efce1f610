package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked lazily by RequireLLM and RequireVoiceDesign so commands that never
// call a remote capability work without them.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateVoiceDesign(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if c.Notifications.TimeoutSeconds < 0 {
		return errors.New("notifications.timeout_seconds must be non-negative")
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.VoiceDir) == "" {
		return errors.New("paths.voice_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must be non-negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	for name, override := range map[string]LLMOverride{"llm.script": c.LLM.Script, "llm.profile": c.LLM.Profile} {
		if override.MaxTokens < 0 {
			return fmt.Errorf("%s.max_tokens must be non-negative", name)
		}
		if override.TimeoutSeconds < 0 {
			return fmt.Errorf("%s.timeout_seconds must be non-negative", name)
		}
	}
	return nil
}

func (c *Config) validateVoiceDesign() error {
	if c.VoiceDesign.TimeoutSeconds < 0 {
		return errors.New("voice_design.timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.TimeoutMinutes < 0 {
		return errors.New("speech.timeout_minutes must be non-negative (0 disables the deadline)")
	}
	if c.Speech.EmoAlpha < 0 || c.Speech.EmoAlpha > 1 {
		return errors.New("speech.emo_alpha must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if _, err := regexp.Compile("(?m)" + c.Pipeline.ChapterPattern); err != nil {
		return fmt.Errorf("pipeline.chapter_pattern: %w", err)
	}
	if c.Pipeline.SilenceMS < 0 {
		return errors.New("pipeline.silence_ms must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// RequireLLM reports whether text generation credentials are present.
func (c *Config) RequireLLM() error {
	for stage, cfg := range map[string]LLMConfig{"script": c.ScriptLLM(), "profile": c.ProfileLLM()} {
		if cfg.APIKey == "" {
			return fmt.Errorf("llm api key missing for %s stage. Set NARRATE_LLM_API_KEY or llm.api_key (create a config with 'narrate config init')", stage)
		}
		if cfg.Model == "" {
			return fmt.Errorf("llm model missing for %s stage", stage)
		}
	}
	return nil
}

// RequireVoiceDesign reports whether voice design credentials are present.
func (c *Config) RequireVoiceDesign() error {
	if c.VoiceDesign.APIToken == "" {
		return errors.New("voice_design.api_token is required. Set MINIMAX_API_TOKEN or edit the config file")
	}
	return nil
}
