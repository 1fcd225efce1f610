package voices_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/store"
	"narrate/internal/testsupport"
	"narrate/internal/voices"
)

func TestBindInstallsCustomSample(t *testing.T) {
	st, cfg := setup(t, narration.Character{Role: "林舟", Descript: "清朗少年音", ID: 2})
	source := filepath.Join(t.TempDir(), "linzhou.wav")
	testsupport.WriteWAV(t, source, testsupport.WAVSpec{Value: 300})

	designer := &fakeDesigner{}
	assigner := voices.NewAssigner(st, designer, cfg.VoiceDesign.PreviewText, nil)
	assignment, err := assigner.Bind(context.Background(), "book", " 林舟 ", source)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if assignment.Role != "林舟" || !strings.HasSuffix(assignment.Sample, ".wav") {
		t.Fatalf("unexpected assignment %+v", assignment)
	}

	want, err := os.ReadFile(source)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(st.VoicePath(assignment.Sample))
	if err != nil {
		t.Fatalf("read library copy: %v", err)
	}
	if string(got) != string(want) {
		t.Fatal("library copy differs from the source recording")
	}

	bindings := testsupport.ReadBindings(t, st, "book")
	if bindings["林舟"] != assignment.Sample || bindings[cfg.Pipeline.NarratorRole] == "" {
		t.Fatalf("unexpected bindings %+v", bindings)
	}
	var metadata narration.VoiceMetadata
	if err := st.ReadJSON(store.LibraryScope(), store.KeyVoiceMetadata, &metadata); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	record := metadata[assignment.Sample]
	if record.RoleHint != "林舟" || !strings.Contains(record.Prompt, "linzhou.wav") {
		t.Fatalf("unexpected metadata %+v", record)
	}

	result, err := assigner.Sync(context.Background(), "book")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(designer.prompts) != 0 || len(result.Generated) != 0 {
		t.Fatalf("custom binding should be kept by sync: %+v", result)
	}
}

func TestBindRejectsInvalidInput(t *testing.T) {
	st, cfg := setup(t)
	assigner := voices.NewAssigner(st, &fakeDesigner{}, cfg.VoiceDesign.PreviewText, nil)
	valid := filepath.Join(t.TempDir(), "ok.wav")
	testsupport.WriteWAV(t, valid, testsupport.WAVSpec{})
	notWAV := filepath.Join(t.TempDir(), "notes.wav")
	if err := os.WriteFile(notWAV, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := assigner.Bind(context.Background(), "missing", "林舟", valid); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown work, got %v", err)
	}
	if _, err := assigner.Bind(context.Background(), "book", "  ", valid); !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected empty input for blank role, got %v", err)
	}
	if _, err := assigner.Bind(context.Background(), "book", "林舟", notWAV); !errors.Is(err, services.ErrStructuralFormat) {
		t.Fatalf("expected structural format error, got %v", err)
	}
	if _, ok := testsupport.ReadBindings(t, st, "book")["林舟"]; ok {
		t.Fatal("failed bind should not touch the binding table")
	}
}
