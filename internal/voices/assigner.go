package voices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"narrate/internal/fileutil"
	"narrate/internal/logging"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/services/voicedesign"
	"narrate/internal/store"
)

const stageName = "voices"

// Designer generates a reference sample from a text description.
type Designer interface {
	Design(ctx context.Context, prompt, previewText string) (voicedesign.Sample, error)
}

// Assignment is one newly bound role.
type Assignment struct {
	Role   string `json:"role"`
	Sample string `json:"sample"`
}

// Failure is one role whose sample could not be generated.
type Failure struct {
	Role  string `json:"role"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Result summarizes a binding sync.
type Result struct {
	Work      string       `json:"work"`
	Path      string       `json:"path"`
	Skipped   []string     `json:"skipped"`
	Generated []Assignment `json:"generated"`
	Failed    []Failure    `json:"failed"`
}

// Assigner makes sure every registered character has a usable voice sample.
type Assigner struct {
	store       *store.Store
	designer    Designer
	previewText string
	logger      *slog.Logger
	newName     func() (string, error)
}

// NewAssigner constructs an Assigner. previewText is the phrase every
// generated sample reads.
func NewAssigner(st *store.Store, designer Designer, previewText string, logger *slog.Logger) *Assigner {
	return &Assigner{
		store:       st,
		designer:    designer,
		previewText: previewText,
		logger:      logging.NewComponentLogger(logger, "voices"),
		newName:     sampleName,
	}
}

// sampleName returns a time-ordered, collision-resistant file name.
func sampleName() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String() + ".wav", nil
}

// Sync generates samples for characters whose binding is missing or points
// at a file that no longer exists. Failures are isolated per character and
// reported in Result.Failed. The binding table is written once, only when at
// least one sample was generated, and merges only the successful roles. A
// cancelled context stops the loop but still commits the samples already
// generated before the cancellation error is returned.
func (a *Assigner) Sync(ctx context.Context, work string) (Result, error) {
	workScope := store.WorkScope(work)
	result := Result{Work: work, Path: a.store.Path(workScope, store.KeyBindings)}
	ctx = services.WithStage(services.WithWork(ctx, work), stageName)
	logger := logging.WithContext(ctx, a.logger)

	var registry narration.Registry
	if err := a.store.ReadJSON(workScope, store.KeyCharacters, &registry); err != nil {
		return result, err
	}
	bindings, err := a.loadBindings(work)
	if err != nil {
		return result, err
	}

	for _, character := range registry {
		if ctx.Err() != nil {
			break
		}
		if a.bound(bindings, character.Role) {
			result.Skipped = append(result.Skipped, character.Role)
			continue
		}
		sample, err := a.generate(ctx, character)
		if err != nil {
			result.Failed = append(result.Failed, Failure{Role: character.Role, Kind: services.Kind(err), Error: err.Error()})
			attrs := append([]logging.Attr{logging.String(logging.FieldRole, character.Role)}, logging.FailureAttrs(err)...)
			attrs = append(attrs, logging.String(logging.FieldImpact, "role stays unbound until the next voices run"))
			logging.WarnWithContext(logger, "voice generation failed", "voice_generation_failed", attrs...)
			continue
		}
		result.Generated = append(result.Generated, Assignment{Role: character.Role, Sample: sample})
		logger.Info("voice generated", logging.String(logging.FieldRole, character.Role), logging.String("sample", sample))
	}

	if len(result.Generated) == 0 {
		return result, ctx.Err()
	}
	// Generated samples are already paid for and stored in the library.
	err = a.store.Update(context.WithoutCancel(ctx), workScope, func() error {
		current, err := a.loadBindings(work)
		if err != nil {
			return err
		}
		for _, assignment := range result.Generated {
			current[assignment.Role] = assignment.Sample
		}
		return a.store.WriteJSON(workScope, store.KeyBindings, current)
	})
	if err != nil {
		return result, err
	}
	return result, ctx.Err()
}

func (a *Assigner) bound(bindings narration.Bindings, role string) bool {
	sample := strings.TrimSpace(bindings[role])
	if sample == "" {
		return false
	}
	ok, err := fileutil.NonEmpty(a.store.VoicePath(sample))
	return err == nil && ok
}

// loadBindings reads the binding table; a work without one starts empty.
func (a *Assigner) loadBindings(work string) (narration.Bindings, error) {
	bindings := narration.Bindings{}
	err := a.store.ReadJSON(store.WorkScope(work), store.KeyBindings, &bindings)
	switch {
	case err == nil:
		if bindings == nil {
			bindings = narration.Bindings{}
		}
		return bindings, nil
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrEmptyInput):
		return narration.Bindings{}, nil
	default:
		return nil, err
	}
}

// generate designs, stores, and catalogues one sample, returning its file
// name within the voice library.
func (a *Assigner) generate(ctx context.Context, character narration.Character) (string, error) {
	label := fmt.Sprintf("role %q", character.Role)
	if a.designer == nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "design", "voice design client unavailable", nil)
	}
	prompt := strings.TrimSpace(character.Descript)
	if prompt == "" {
		return "", services.Wrap(services.ErrGeneration, stageName, "design", label+": empty profile", nil)
	}
	sample, err := a.designer.Design(ctx, prompt, a.previewText)
	if err != nil {
		return "", services.Wrap(services.ErrGeneration, stageName, "design", label, err)
	}
	name, err := a.newName()
	if err != nil {
		return "", services.Wrap(services.ErrGeneration, stageName, "name sample", label, err)
	}

	library := store.LibraryScope()
	if err := a.store.Write(library, name, sample.Audio); err != nil {
		return "", err
	}
	if err := a.catalogue(context.WithoutCancel(ctx), name, narration.VoiceRecord{Prompt: prompt, RoleHint: character.Role}); err != nil {
		_ = a.store.Remove(library, name)
		return "", err
	}
	return name, nil
}

// catalogue records a library sample in the voice metadata table.
func (a *Assigner) catalogue(ctx context.Context, name string, record narration.VoiceRecord) error {
	library := store.LibraryScope()
	return a.store.Update(ctx, library, func() error {
		metadata := narration.VoiceMetadata{}
		if err := a.store.ReadJSON(library, store.KeyVoiceMetadata, &metadata); err != nil &&
			!errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrEmptyInput) {
			return err
		}
		if metadata == nil {
			metadata = narration.VoiceMetadata{}
		}
		metadata[name] = record
		return a.store.WriteJSON(library, store.KeyVoiceMetadata, metadata)
	})
}
