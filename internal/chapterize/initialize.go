package chapterize

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"narrate/internal/fileutil"
	"narrate/internal/logging"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/store"
	"narrate/internal/textutil"
)

const stageName = "split"

// Options carries the work initialization defaults.
type Options struct {
	Pattern         string
	NarratorRole    string
	NarratorProfile string
	NarratorSample  string
}

// Request describes one initialize-work call.
type Request struct {
	SourcePath string
	// Name overrides the work name derived from the source file name.
	Name string
	// Pattern overrides Options.Pattern.
	Pattern string
}

// Result summarizes an initialization.
type Result struct {
	Work     string `json:"work"`
	Dir      string `json:"dir"`
	Charset  string `json:"charset"`
	Chapters int    `json:"chapters"`
	Written  []int  `json:"written"`
	Kept     []int  `json:"kept"`
	Seeded   bool   `json:"seeded"`
}

// Initializer splits a source text into a new or existing work.
type Initializer struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
}

// NewInitializer constructs an Initializer.
func NewInitializer(st *store.Store, opts Options, logger *slog.Logger) *Initializer {
	return &Initializer{store: st, opts: opts, logger: logging.NewComponentLogger(logger, "chapterize")}
}

// Initialize reads the source, splits it into chapters, and persists the
// work. Existing chapter raw text is never overwritten, and the character
// registry and binding table are seeded with the narrator only when absent.
func (i *Initializer) Initialize(ctx context.Context, req Request) (Result, error) {
	var result Result

	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return result, services.Wrap(services.ErrNotFound, stageName, "read source", "source path required", nil)
	}
	work := strings.TrimSpace(req.Name)
	if work == "" {
		work = textutil.WorkNameFromPath(source)
	} else {
		work = textutil.WorkName(work)
	}
	if err := store.ValidateScope(store.WorkScope(work)); err != nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "name work", source, err)
	}
	result.Work = work
	result.Dir = i.store.Dir(store.WorkScope(work))
	ctx = services.WithStage(services.WithWork(ctx, work), stageName)
	logger := logging.WithContext(ctx, i.logger)

	exprText := req.Pattern
	if strings.TrimSpace(exprText) == "" {
		exprText = i.opts.Pattern
	}
	pattern, err := CompilePattern(exprText)
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "compile pattern", "", err)
	}

	text, charset, err := readSource(source)
	if err != nil {
		return result, err
	}
	result.Charset = charset
	if strings.TrimSpace(text) == "" {
		return result, services.Wrap(services.ErrEmptyInput, stageName, "read source", source, nil)
	}

	chapters := Split(text, pattern)
	result.Chapters = len(chapters)

	err = i.store.Update(ctx, store.WorkScope(work), func() error {
		scope := store.WorkScope(work)
		if _, err := i.store.WriteIfAbsent(scope, store.KeyRawAll, []byte(text)); err != nil {
			return err
		}
		archive := i.store.Path(scope, store.KeySource+strings.ToLower(filepath.Ext(source)))
		if !fileutil.Exists(archive) {
			if err := fileutil.CopyFileVerified(source, archive); err != nil {
				return services.Wrap(services.ErrExternalTool, stageName, "archive source", source, err)
			}
		}
		for n, body := range chapters {
			ordinal := n + 1
			wrote, err := i.store.WriteIfAbsent(store.ChapterScope(work, ordinal), store.KeyRaw, []byte(body))
			if err != nil {
				return err
			}
			if wrote {
				result.Written = append(result.Written, ordinal)
			} else {
				result.Kept = append(result.Kept, ordinal)
			}
		}
		seeded, err := i.seed(scope)
		result.Seeded = seeded
		return err
	})
	if err != nil {
		return result, err
	}

	logger.Info("work initialized",
		logging.String("charset", charset),
		logging.Int("chapters", result.Chapters),
		logging.Int("written", len(result.Written)),
		logging.Int("kept", len(result.Kept)),
		logging.Bool("seeded", result.Seeded),
	)
	if len(result.Kept) > 0 {
		logging.WarnWithContext(logger, "existing chapter raw text kept", "chapter_raw_kept",
			logging.Int("kept", len(result.Kept)),
			logging.String(logging.FieldErrorHint, "raw text is immutable; initialize under a new name to re-split"),
			logging.String(logging.FieldImpact, "kept chapters reflect the earlier source"),
		)
	}
	return result, nil
}

func (i *Initializer) seed(scope store.Scope) (bool, error) {
	role := i.opts.NarratorRole
	registry := narration.Registry{{Role: role, Descript: i.opts.NarratorProfile, ID: 1}}
	data, err := store.EncodeJSON(registry)
	if err != nil {
		return false, err
	}
	seededRegistry, err := i.store.WriteIfAbsent(scope, store.KeyCharacters, data)
	if err != nil {
		return false, err
	}
	data, err = store.EncodeJSON(narration.Bindings{role: i.opts.NarratorSample})
	if err != nil {
		return false, err
	}
	seededBindings, err := i.store.WriteIfAbsent(scope, store.KeyBindings, data)
	if err != nil {
		return false, err
	}
	return seededRegistry || seededBindings, nil
}

func readSource(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", "", services.Wrap(services.ErrNotFound, stageName, "read source", path, nil)
	}
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "read source", path, err)
	}
	text, charset, err := textutil.DecodeText(data)
	if err != nil {
		return "", charset, services.Wrap(services.ErrStructuralFormat, stageName, "decode source", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		text, err = textutil.ExtractHTMLText(bytes.NewReader([]byte(text)))
		if err != nil {
			return "", charset, services.Wrap(services.ErrEmptyInput, stageName, "extract html", path, err)
		}
	}
	return text, charset, nil
}

// Describe renders a short human summary for CLI output.
func (r Result) Describe() string {
	return fmt.Sprintf("%s: %d chapters (%d written, %d kept)", r.Work, r.Chapters, len(r.Written), len(r.Kept))
}
