package workflow

import (
	"context"
	"fmt"

	"narrate/internal/ledger"
	"narrate/internal/services"
	"narrate/internal/store"
)

// Status reports every chapter of a work. Artifacts on disk are
// authoritative; the ledger adds failure details and timestamps. Chapters
// the ledger has never seen get a status inferred from their artifacts.
func (m *Manager) Status(ctx context.Context, work string) ([]ChapterStatus, error) {
	if !m.store.WorkExists(work) {
		return nil, services.Wrap(services.ErrNotFound, "status", "load work",
			fmt.Sprintf("work %q is not initialized", work), nil)
	}
	chapters, err := m.store.Chapters(work)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "status", "list chapters", work, err)
	}

	states := map[int]ledger.ChapterState{}
	if m.ledger != nil {
		recorded, err := m.ledger.Chapters(ctx, work)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "status", "read ledger", work, err)
		}
		for _, state := range recorded {
			states[state.Chapter] = state
		}
	}

	out := make([]ChapterStatus, 0, len(chapters))
	for _, chapter := range chapters {
		scope := store.ChapterScope(work, chapter)
		row := ChapterStatus{
			Chapter: chapter,
			Script:  m.store.Exists(scope, store.KeyScript),
			Audio:   m.store.Exists(scope, store.KeyAudio),
		}
		state, ok := states[chapter]
		switch {
		case ok:
			row.Status = state.Status
			row.FailedStage = state.FailedStage
			row.ErrorKind = state.ErrorKind
			row.ErrorMessage = state.ErrorMessage
			row.Artifact = state.Artifact
			row.UpdatedAt = state.UpdatedAt
		case row.Audio:
			row.Status = ledger.StatusAssembled
		case row.Script:
			row.Status = ledger.StatusScripted
		default:
			row.Status = ledger.StatusSplit
		}
		// A status the artifacts no longer back is lowered.
		if row.Status.Rank() >= ledger.StatusAssembled.Rank() && !row.Audio {
			row.Status = ledger.StatusVoiced
		}
		if row.Status.Rank() >= ledger.StatusScripted.Rank() && !row.Script {
			row.Status = ledger.StatusSplit
		}
		if row.Artifact == "" {
			row.Artifact = m.store.Path(scope, latestArtifact(row))
		}
		out = append(out, row)
	}
	return out, nil
}

func latestArtifact(row ChapterStatus) string {
	switch {
	case row.Audio:
		return store.KeyAudio
	case row.Script:
		return store.KeyScript
	default:
		return store.KeyRaw
	}
}
