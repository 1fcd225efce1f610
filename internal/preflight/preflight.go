package preflight

import (
	"context"

	"narrate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
	// Optional checks do not make the overall run fail.
	Optional bool `json:"optional,omitempty"`
}

// Options selects which checks run.
type Options struct {
	// Network enables checks that contact remote services.
	Network bool
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Voice library", cfg.Paths.VoiceDir),
	}
	if cfg.Paths.UploadDir != "" {
		upload := CheckDirectoryAccess("Upload inbox", cfg.Paths.UploadDir)
		upload.Optional = true
		results = append(results, upload)
	}

	results = append(results, CheckLLMConfig("Script LLM", cfg.ScriptLLM()))
	if profileUsesDistinctLLM(cfg) {
		results = append(results, CheckLLMConfig("Profile LLM", cfg.ProfileLLM()))
	}
	if opts.Network {
		results = append(results, CheckLLM(ctx, "Script LLM reachability", cfg.ScriptLLM()))
		if profileUsesDistinctLLM(cfg) {
			results = append(results, CheckLLM(ctx, "Profile LLM reachability", cfg.ProfileLLM()))
		}
	}

	results = append(results, CheckVoiceDesign(cfg))
	results = append(results, CheckSpeech(cfg)...)
	results = append(results, CheckNarratorSample(cfg))
	return results
}

// Passed reports whether every required check passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return false
		}
	}
	return true
}

// profileUsesDistinctLLM returns true when profile generation resolves to a
// different endpoint or key than script adaptation.
func profileUsesDistinctLLM(cfg *config.Config) bool {
	script := cfg.ScriptLLM()
	profile := cfg.ProfileLLM()
	return script.APIKey != profile.APIKey || script.BaseURL != profile.BaseURL || script.Model != profile.Model
}
