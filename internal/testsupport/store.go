package testsupport

import (
	"fmt"
	"testing"

	"narrate/internal/config"
	"narrate/internal/narration"
	"narrate/internal/store"
)

// NewStore returns an artifact store rooted at the config's data directory.
func NewStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return store.New(cfg.NovelsDir(), cfg.Paths.VoiceDir)
}

// SeedWork writes the artifacts an initialized work carries: full raw text,
// one raw.txt per chapter, and a narrator-only registry and binding table
// whose sample is written as a WAV fixture.
func SeedWork(t testing.TB, cfg *config.Config, st *store.Store, work string, chapters ...string) {
	t.Helper()

	scope := store.WorkScope(work)
	all := ""
	for i, text := range chapters {
		all += text + "\n"
		if err := st.Write(store.ChapterScope(work, i+1), store.KeyRaw, []byte(text)); err != nil {
			t.Fatalf("seed chapter %d: %v", i+1, err)
		}
	}
	if err := st.Write(scope, store.KeyRawAll, []byte(all)); err != nil {
		t.Fatalf("seed raw text: %v", err)
	}
	narrator := cfg.Pipeline.NarratorRole
	registry := narration.Registry{{Role: narrator, Descript: cfg.Pipeline.NarratorProfile, ID: 1}}
	if err := st.WriteJSON(scope, store.KeyCharacters, registry); err != nil {
		t.Fatalf("seed registry: %v", err)
	}
	if err := st.WriteJSON(scope, store.KeyBindings, narration.Bindings{narrator: cfg.Pipeline.NarratorSample}); err != nil {
		t.Fatalf("seed bindings: %v", err)
	}
	WriteWAV(t, st.VoicePath(cfg.Pipeline.NarratorSample), WAVSpec{})
}

// WriteScript stores a script for the chapter from alternating role, text
// pairs.
func WriteScript(t testing.TB, st *store.Store, work string, chapter int, pairs ...string) narration.Script {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatalf("WriteScript: odd number of role/text values")
	}
	var script narration.Script
	for i := 0; i < len(pairs); i += 2 {
		script.Lines = append(script.Lines, narration.Line{Role: pairs[i], Text: pairs[i+1]})
	}
	if err := st.WriteJSON(store.ChapterScope(work, chapter), store.KeyScript, script); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script
}

// ReadRegistry loads a work's character registry.
func ReadRegistry(t testing.TB, st *store.Store, work string) narration.Registry {
	t.Helper()
	var registry narration.Registry
	if err := st.ReadJSON(store.WorkScope(work), store.KeyCharacters, &registry); err != nil {
		t.Fatalf("read registry: %v", err)
	}
	return registry
}

// ReadBindings loads a work's binding table.
func ReadBindings(t testing.TB, st *store.Store, work string) narration.Bindings {
	t.Helper()
	var bindings narration.Bindings
	if err := st.ReadJSON(store.WorkScope(work), store.KeyBindings, &bindings); err != nil {
		t.Fatalf("read bindings: %v", err)
	}
	return bindings
}

// ChapterText builds a short chapter body with a heading.
func ChapterText(n int, body string) string {
	return fmt.Sprintf("第%d章\n%s", n, body)
}
