package config

const (
	defaultConfigPath         = "~/.config/narrate/config.toml"
	defaultDataDir            = "~/.local/share/narrate/data"
	defaultLogDir             = "~/.local/share/narrate/logs"
	defaultUploadDir          = "~/.local/share/narrate/upload"
	defaultLLMBaseURL         = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel           = "gpt-4o-mini"
	defaultLLMTitle           = "narrate"
	defaultLLMTimeoutSeconds  = 180
	defaultScriptMaxTokens    = 4096
	defaultProfileMaxTokens   = 5120
	defaultVoiceDesignURL     = "https://api.minimaxi.com/v1/voice_design"
	defaultVoiceDesignTimeout = 30
	defaultPreviewText        = "人生就像海洋，只有意志坚强的人才能到达彼岸。"
	defaultSpeechWorkDir      = "/root/index-tts"
	defaultUVCommand          = "uv"
	defaultSpeechCfgPath      = "checkpoints/config.yaml"
	defaultSpeechModelDir     = "checkpoints"
	defaultEmoAlpha           = 0.3
	defaultChapterPattern     = `^[ \t\x{3000}]*(?:第)?[零一二三四五六七八九十百千\d]{1,10}[章话节]`
	defaultNarratorRole       = "旁白"
	defaultNarratorProfile    = "旁白，使用默认旁白音频。"
	defaultNarratorSample     = "默认旁白.wav"
	defaultSilenceMS          = 500
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			UploadDir: defaultUploadDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			JSONMode:       true,
		},
		VoiceDesign: VoiceDesign{
			URL:            defaultVoiceDesignURL,
			TimeoutSeconds: defaultVoiceDesignTimeout,
			PreviewText:    defaultPreviewText,
		},
		Speech: Speech{
			WorkDir:       defaultSpeechWorkDir,
			UVCommand:     defaultUVCommand,
			CfgPath:       defaultSpeechCfgPath,
			ModelDir:      defaultSpeechModelDir,
			UseFP16:       true,
			UseCUDAKernel: false,
			UseDeepSpeed:  false,
			EmoAlpha:      defaultEmoAlpha,
			UseEmoText:    true,
			UseRandom:     true,
		},
		Pipeline: Pipeline{
			ChapterPattern:  defaultChapterPattern,
			NarratorRole:    defaultNarratorRole,
			NarratorProfile: defaultNarratorProfile,
			NarratorSample:  defaultNarratorSample,
			SilenceMS:       defaultSilenceMS,
		},
		Notifications: Notifications{
			TimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
