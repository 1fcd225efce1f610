package script

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"narrate/internal/logging"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/services/llm"
	"narrate/internal/store"
)

const stageName = "script"

// Completer issues one JSON chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result describes a derived script.
type Result struct {
	Work    string   `json:"work"`
	Chapter int      `json:"chapter"`
	Path    string   `json:"path"`
	Lines   int      `json:"lines"`
	Roles   []string `json:"roles"`
}

// Deriver converts chapter raw text into a script.
type Deriver struct {
	store  *store.Store
	llm    Completer
	logger *slog.Logger
}

// NewDeriver constructs a Deriver.
func NewDeriver(st *store.Store, client Completer, logger *slog.Logger) *Deriver {
	return &Deriver{store: st, llm: client, logger: logging.NewComponentLogger(logger, "script")}
}

// Derive generates the chapter's script and replaces any stored one. Nothing
// is written unless the generated payload validates.
func (d *Deriver) Derive(ctx context.Context, work string, chapter int) (Result, error) {
	result := Result{Work: work, Chapter: chapter}
	scope := store.ChapterScope(work, chapter)
	ctx = services.WithStage(services.WithChapter(services.WithWork(ctx, work), chapter), stageName)
	logger := logging.WithContext(ctx, d.logger)

	raw, err := d.store.Read(scope, store.KeyRaw)
	if err != nil {
		return result, err
	}
	if d.llm == nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "derive", "text generation client unavailable", nil)
	}

	started := time.Now()
	content, err := d.llm.CompleteJSON(ctx, AdaptationPrompt, string(raw))
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "generate", scope.String(), err)
	}
	script, err := decodeScript(content)
	if err != nil {
		return result, services.Wrap(services.ErrStructuralFormat, stageName, "validate", scope.String(), err)
	}

	if err := d.store.WriteJSON(scope, store.KeyScript, script); err != nil {
		return result, err
	}
	result.Path = d.store.Path(scope, store.KeyScript)
	result.Lines = len(script.Lines)
	result.Roles = narration.DistinctRoles(script.Lines)

	logger.Info("script derived",
		logging.Int("lines", result.Lines),
		logging.Int("roles", len(result.Roles)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func decodeScript(content string) (narration.Script, error) {
	var obj map[string]json.RawMessage
	if err := llm.DecodeLLMJSON(content, &obj); err != nil {
		return narration.Script{}, err
	}
	return narration.ScriptFromObject(obj)
}

// Load reads a stored script.
func Load(st *store.Store, work string, chapter int) (narration.Script, error) {
	data, err := st.Read(store.ChapterScope(work, chapter), store.KeyScript)
	if err != nil {
		return narration.Script{}, err
	}
	script, err := narration.ParseScript(data)
	if err != nil {
		return narration.Script{}, services.Wrap(services.ErrStructuralFormat, stageName, "load", store.ChapterScope(work, chapter).String(), err)
	}
	return script, nil
}
