package assembly_test

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"narrate/internal/assembly"
	"narrate/internal/services"
	"narrate/internal/store"
	"narrate/internal/testsupport"
)

func TestExportPacksAssembledChapters(t *testing.T) {
	st, _ := setup(t)
	for _, ch := range []int{1, 3} {
		testsupport.WriteWAV(t, st.Path(store.ChapterScope("book", ch), store.KeyAudio), testsupport.WAVSpec{Frames: 800, Value: ch})
	}

	result, err := assembly.Export(st, "book", 1, 3)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(result.Path) != "book_ch_1_to_3.zip" {
		t.Fatalf("archive path = %s", result.Path)
	}
	if len(result.Chapters) != 2 || result.Chapters[0] != 1 || result.Chapters[1] != 3 {
		t.Fatalf("chapters = %v", result.Chapters)
	}
	if len(result.Missing) != 1 || result.Missing[0] != 2 {
		t.Fatalf("missing = %v", result.Missing)
	}

	zr, err := zip.OpenReader(result.Path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	for i, name := range []string{"book_ch_1.wav", "book_ch_3.wav"} {
		entry := zr.File[i]
		if entry.Name != name || entry.Method != zip.Deflate {
			t.Fatalf("entry %d = %s (method %d)", i, entry.Name, entry.Method)
		}
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry: %v", err)
		}
		ch := []int{1, 3}[i]
		want, err := os.ReadFile(st.Path(store.ChapterScope("book", ch), store.KeyAudio))
		if err != nil {
			t.Fatalf("read audio: %v", err)
		}
		if string(got) != string(want) {
			t.Fatalf("entry %s differs from chapter audio", name)
		}
	}
}

func TestExportWithoutAudio(t *testing.T) {
	st, _ := setup(t)

	_, err := assembly.Export(st, "book", 1, 2)
	if !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected empty input, got %v", err)
	}
	if st.Exists(store.WorkScope("book"), assembly.ExportKey("book", 1, 2)) {
		t.Fatal("no archive should be written")
	}

	if _, err := assembly.Export(st, "missing", 1, 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := assembly.Export(st, "book", 3, 2); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for reversed range, got %v", err)
	}
}
