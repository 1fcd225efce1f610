package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"narrate/internal/assembly"
	"narrate/internal/chapterize"
	"narrate/internal/characters"
	"narrate/internal/config"
	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/notifications"
	"narrate/internal/script"
	"narrate/internal/services/indextts"
	"narrate/internal/services/llm"
	"narrate/internal/services/voicedesign"
	"narrate/internal/store"
	"narrate/internal/voices"
	"narrate/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	speechRunner indextts.CommandRunner
	logger       *slog.Logger
}

type contextOption func(*commandContext)

// withSpeechRunner replaces the uv launcher used by the synthesizer.
func withSpeechRunner(runner indextts.CommandRunner) contextOption {
	return func(c *commandContext) {
		c.speechRunner = runner
	}
}

// withLogger replaces the config-derived logger.
func withLogger(logger *slog.Logger) contextOption {
	return func(c *commandContext) {
		c.logger = logger
	}
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.NovelsDir(), cfg.Paths.VoiceDir), nil
}

// pipeline bundles the store, ledger, and every stage built from one config.
type pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	ledger *ledger.Store

	initializer *chapterize.Initializer
	deriver     *script.Deriver
	registrar   *characters.Registrar
	assigner    *voices.Assigner
	assembler   *assembly.Assembler
	manager     *workflow.Manager
	notifier    notifications.Service
}

func (p *pipeline) Close() error {
	if p == nil || p.ledger == nil {
		return nil
	}
	return p.ledger.Close()
}

func (c *commandContext) openPipeline() (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	st := store.New(cfg.NovelsDir(), cfg.Paths.VoiceDir)
	led, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	speech := indextts.NewService(indextts.Config{
		WorkDir:        cfg.Speech.WorkDir,
		UVBinary:       cfg.UVBinary(),
		CfgPath:        cfg.Speech.CfgPath,
		ModelDir:       cfg.Speech.ModelDir,
		UseFP16:        cfg.Speech.UseFP16,
		UseCUDAKernel:  cfg.Speech.UseCUDAKernel,
		UseDeepSpeed:   cfg.Speech.UseDeepSpeed,
		EmoAlpha:       cfg.Speech.EmoAlpha,
		UseEmoText:     cfg.Speech.UseEmoText,
		UseRandom:      cfg.Speech.UseRandom,
		TimeoutMinutes: cfg.Speech.TimeoutMinutes,
	})
	if c.speechRunner != nil {
		speech.WithCommandRunner(c.speechRunner)
	}
	designer := voicedesign.NewClient(voicedesign.Config{
		URL:            cfg.VoiceDesign.URL,
		APIToken:       cfg.VoiceDesign.APIToken,
		TimeoutSeconds: cfg.VoiceDesign.TimeoutSeconds,
	}, nil)

	p := &pipeline{
		cfg:    cfg,
		logger: logger,
		store:  st,
		ledger: led,
		initializer: chapterize.NewInitializer(st, chapterize.Options{
			Pattern:         cfg.Pipeline.ChapterPattern,
			NarratorRole:    cfg.Pipeline.NarratorRole,
			NarratorProfile: cfg.Pipeline.NarratorProfile,
			NarratorSample:  cfg.Pipeline.NarratorSample,
		}, logger),
		deriver:   script.NewDeriver(st, newLLMClient(cfg.ScriptLLM()), logger),
		registrar: characters.NewRegistrar(st, newLLMClient(cfg.ProfileLLM()), logger),
		assigner:  voices.NewAssigner(st, designer, cfg.VoiceDesign.PreviewText, logger),
		assembler: assembly.NewAssembler(st, speech, cfg.Pipeline.SilenceMS, logger),
		notifier:  notifications.NewService(cfg),
	}
	p.manager = workflow.NewManager(st, led, workflow.StageSet{
		Initializer: p.initializer,
		Deriver:     p.deriver,
		Registrar:   p.registrar,
		Voices:      p.assigner,
		Assembler:   p.assembler,
	}, logger)
	return p, nil
}

// withPipeline opens a pipeline for the duration of fn.
func (c *commandContext) withPipeline(fn func(*pipeline) error) error {
	p, err := c.openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p)
}

// notify logs delivery failures instead of failing the command.
func (p *pipeline) notify(ctx context.Context, send func(context.Context, notifications.Service) error) {
	if p == nil || p.notifier == nil {
		return
	}
	if err := send(ctx, p.notifier); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pipeline results are unaffected"),
		)
	}
}

func newLLMClient(cfg config.LLMConfig) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		JSONMode:       cfg.JSONMode,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
