package voices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"narrate/internal/logging"
	"narrate/internal/media/concat"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/store"
)

// Bind copies a user-supplied reference WAV into the voice library and binds
// role to it, replacing any earlier binding. The role does not have to be
// registered yet; a later sync treats it as already bound.
func (a *Assigner) Bind(ctx context.Context, work, role, source string) (Assignment, error) {
	role = strings.TrimSpace(role)
	ctx = services.WithStage(services.WithWork(ctx, work), stageName)
	logger := logging.WithContext(ctx, a.logger)

	if !a.store.WorkExists(work) {
		return Assignment{}, services.Wrap(services.ErrNotFound, stageName, "bind",
			fmt.Sprintf("work %q is not initialized", work), nil)
	}
	if role == "" {
		return Assignment{}, services.Wrap(services.ErrEmptyInput, stageName, "bind", "role name is empty", nil)
	}
	format, duration, err := concat.Probe(source)
	if errors.Is(err, concat.ErrMissingSegment) {
		return Assignment{}, services.Wrap(services.ErrNotFound, stageName, "read sample", source, nil)
	}
	if err != nil {
		return Assignment{}, services.Wrap(services.ErrStructuralFormat, stageName, "read sample", source, err)
	}
	if duration <= 0 {
		return Assignment{}, services.Wrap(services.ErrEmptyInput, stageName, "read sample", source+" has no audio", nil)
	}

	name, err := a.newName()
	if err != nil {
		return Assignment{}, services.Wrap(services.ErrExternalTool, stageName, "name sample", role, err)
	}
	library := store.LibraryScope()
	err = a.store.WriteStream(library, name, func(w io.Writer) error {
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return Assignment{}, err
	}
	record := narration.VoiceRecord{Prompt: "custom sample " + filepath.Base(source), RoleHint: role}
	if err := a.catalogue(ctx, name, record); err != nil {
		_ = a.store.Remove(library, name)
		return Assignment{}, err
	}

	workScope := store.WorkScope(work)
	err = a.store.Update(ctx, workScope, func() error {
		current, err := a.loadBindings(work)
		if err != nil {
			return err
		}
		current[role] = name
		return a.store.WriteJSON(workScope, store.KeyBindings, current)
	})
	if err != nil {
		return Assignment{}, err
	}

	logger.Info("voice bound",
		logging.String(logging.FieldRole, role),
		logging.String("sample", name),
		logging.String("format", format.String()),
		logging.Duration("duration", duration),
	)
	return Assignment{Role: role, Sample: name}, nil
}
