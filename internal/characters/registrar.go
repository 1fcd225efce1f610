package characters

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"narrate/internal/logging"
	"narrate/internal/narration"
	"narrate/internal/script"
	"narrate/internal/services"
	"narrate/internal/services/llm"
	"narrate/internal/store"
)

const stageName = "characters"

// Completer issues one JSON chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result describes a registration run.
type Result struct {
	Work    string                `json:"work"`
	Chapter int                   `json:"chapter"`
	Path    string                `json:"path"`
	NoOp    bool                  `json:"no_op"`
	Added   []narration.Character `json:"added"`
	Total   int                   `json:"total"`
}

// Registrar reconciles a chapter's roles against the work's registry.
type Registrar struct {
	store  *store.Store
	llm    Completer
	logger *slog.Logger
}

// NewRegistrar constructs a Registrar.
func NewRegistrar(st *store.Store, client Completer, logger *slog.Logger) *Registrar {
	return &Registrar{store: st, llm: client, logger: logging.NewComponentLogger(logger, "characters")}
}

// Register adds a profiled registry entry for every role in the chapter's
// script that the registry does not know yet. Profiles are generated for the
// whole batch before anything is written; the registry is then re-read and
// written once under the work's exclusive scope, so a failed batch commits no
// ids.
func (r *Registrar) Register(ctx context.Context, work string, chapter int) (Result, error) {
	result := Result{Work: work, Chapter: chapter, Path: r.store.Path(store.WorkScope(work), store.KeyCharacters)}
	ctx = services.WithStage(services.WithChapter(services.WithWork(ctx, work), chapter), stageName)
	logger := logging.WithContext(ctx, r.logger)

	chapterScript, err := script.Load(r.store, work, chapter)
	if err != nil {
		return result, err
	}
	registry, err := r.loadRegistry(work)
	if err != nil {
		return result, err
	}
	roles := narration.DistinctRoles(chapterScript.Lines)
	pending := registry.Missing(roles)
	result.Total = len(registry)
	if len(pending) == 0 {
		result.NoOp = true
		logger.Debug("no new characters", logging.Int("roles", len(roles)))
		return result, nil
	}

	raw, err := r.store.Read(store.ChapterScope(work, chapter), store.KeyRaw)
	if err != nil {
		return result, err
	}
	profiles := make([]narration.Profile, 0, len(pending))
	for _, role := range pending {
		profile, err := r.profile(ctx, work, role, string(raw))
		if err != nil {
			return result, err
		}
		profiles = append(profiles, profile)
	}

	err = r.store.Update(ctx, store.WorkScope(work), func() error {
		current, err := r.loadRegistry(work)
		if err != nil {
			return err
		}
		updated, added := current.Append(profiles)
		result.Added = added
		result.Total = len(updated)
		if len(added) == 0 {
			result.NoOp = true
			return nil
		}
		return r.store.WriteJSON(store.WorkScope(work), store.KeyCharacters, updated)
	})
	if err != nil {
		return result, err
	}

	for _, c := range result.Added {
		logger.Info("character registered", logging.String(logging.FieldRole, c.Role), logging.Int("id", c.ID))
	}
	return result, nil
}

func (r *Registrar) loadRegistry(work string) (narration.Registry, error) {
	var registry narration.Registry
	if err := r.store.ReadJSON(store.WorkScope(work), store.KeyCharacters, &registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// profile asks for one character description. The stored role is always the
// script label; the model's echo of it is ignored.
func (r *Registrar) profile(ctx context.Context, work, role, excerpt string) (narration.Profile, error) {
	profile := narration.Profile{Role: role}
	if r.llm == nil {
		return profile, services.Wrap(services.ErrConfiguration, stageName, "profile", "text generation client unavailable", nil)
	}
	content, err := r.llm.CompleteJSON(ctx, ProfileSystemPrompt, profileUserPrompt(work, role, excerpt))
	if err != nil {
		return profile, services.Wrap(services.ErrGeneration, stageName, "profile", fmt.Sprintf("role %q", role), err)
	}
	var decoded struct {
		Descript any `json:"descript"`
	}
	if err := llm.DecodeLLMJSON(content, &decoded); err != nil {
		return profile, services.Wrap(services.ErrGeneration, stageName, "profile", fmt.Sprintf("role %q", role), err)
	}
	profile.Descript = descriptText(decoded.Descript)
	if profile.Descript == "" {
		return profile, services.Wrap(services.ErrGeneration, stageName, "profile", fmt.Sprintf("role %q: empty descript", role), nil)
	}
	return profile, nil
}

// descriptText accepts a plain string or, from chattier models, an object of
// labelled facets which is flattened into one line.
func descriptText(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case map[string]any:
		parts := make([]string, 0, len(value))
		for _, key := range sortedKeys(value) {
			if text := descriptText(value[key]); text != "" {
				parts = append(parts, key+"："+text)
			}
		}
		return strings.Join(parts, "；")
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if text := descriptText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "；")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
