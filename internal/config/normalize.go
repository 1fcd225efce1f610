package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeVoiceDesign()
	c.normalizeNotifications()
	if err := c.normalizeSpeech(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := lookupEnv("NARRATE_DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.VoiceDir) == "" {
		c.Paths.VoiceDir = filepath.Join(c.Paths.DataDir, "voices")
	}
	if c.Paths.VoiceDir, err = expandPath(c.Paths.VoiceDir); err != nil {
		return fmt.Errorf("paths.voice_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := lookupEnv("NARRATE_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		} else if value, ok := lookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		if value, ok := lookupEnv("OPENAI_BASE_URL"); ok {
			c.LLM.BaseURL = value
		} else {
			c.LLM.BaseURL = defaultLLMBaseURL
		}
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeVoiceDesign() {
	c.VoiceDesign.URL = strings.TrimSpace(c.VoiceDesign.URL)
	if c.VoiceDesign.URL == "" {
		c.VoiceDesign.URL = defaultVoiceDesignURL
	}
	c.VoiceDesign.APIToken = strings.TrimSpace(c.VoiceDesign.APIToken)
	if c.VoiceDesign.APIToken == "" {
		if value, ok := lookupEnv("MINIMAX_API_TOKEN"); ok {
			c.VoiceDesign.APIToken = value
		}
	}
	if c.VoiceDesign.TimeoutSeconds <= 0 {
		c.VoiceDesign.TimeoutSeconds = defaultVoiceDesignTimeout
	}
	if strings.TrimSpace(c.VoiceDesign.PreviewText) == "" {
		c.VoiceDesign.PreviewText = defaultPreviewText
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.TimeoutSeconds <= 0 {
		c.Notifications.TimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeSpeech() error {
	if value, ok := lookupEnv("INDEXTTS_PATH"); ok {
		c.Speech.WorkDir = value
	}
	if strings.TrimSpace(c.Speech.WorkDir) == "" {
		c.Speech.WorkDir = defaultSpeechWorkDir
	}
	var err error
	if c.Speech.WorkDir, err = expandPath(c.Speech.WorkDir); err != nil {
		return fmt.Errorf("speech.work_dir: %w", err)
	}
	c.Speech.UVCommand = strings.TrimSpace(c.Speech.UVCommand)
	if c.Speech.UVCommand == "" {
		c.Speech.UVCommand = defaultUVCommand
	}
	if strings.TrimSpace(c.Speech.CfgPath) == "" {
		c.Speech.CfgPath = defaultSpeechCfgPath
	}
	if strings.TrimSpace(c.Speech.ModelDir) == "" {
		c.Speech.ModelDir = defaultSpeechModelDir
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if strings.TrimSpace(c.Pipeline.ChapterPattern) == "" {
		c.Pipeline.ChapterPattern = defaultChapterPattern
	}
	c.Pipeline.NarratorRole = strings.TrimSpace(c.Pipeline.NarratorRole)
	if c.Pipeline.NarratorRole == "" {
		c.Pipeline.NarratorRole = defaultNarratorRole
	}
	if strings.TrimSpace(c.Pipeline.NarratorProfile) == "" {
		c.Pipeline.NarratorProfile = defaultNarratorProfile
	}
	c.Pipeline.NarratorSample = strings.TrimSpace(c.Pipeline.NarratorSample)
	if c.Pipeline.NarratorSample == "" {
		c.Pipeline.NarratorSample = defaultNarratorSample
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
