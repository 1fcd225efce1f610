package chapterize_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"narrate/internal/chapterize"
	"narrate/internal/config"
	"narrate/internal/narration"
	"narrate/internal/services"
	"narrate/internal/store"
	"narrate/internal/testsupport"
)

func defaultPattern(t *testing.T) *regexp.Regexp {
	t.Helper()
	pattern, err := chapterize.CompilePattern(config.Default().Pipeline.ChapterPattern)
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	return pattern
}

func TestSplitWithoutBoundariesYieldsOneChapter(t *testing.T) {
	text := "  开头一句。\n\n中间一句。\n   \n结尾一句。  \n"
	chapters := chapterize.Split(text, defaultPattern(t))
	if len(chapters) != 1 {
		t.Fatalf("expected one chapter, got %d", len(chapters))
	}
	if want := "开头一句。\n中间一句。\n结尾一句。"; chapters[0] != want {
		t.Fatalf("chapter = %q, want %q", chapters[0], want)
	}
}

func TestSplitThreeBoundariesPreservesOrder(t *testing.T) {
	var lines []string
	for i := 1; i <= 130; i++ {
		switch i {
		case 1:
			lines = append(lines, "第一章 出发")
		case 50:
			lines = append(lines, "第二章 相遇")
		case 120:
			lines = append(lines, "第3章 归来")
		default:
			lines = append(lines, "line"+strings.Repeat("x", i%7))
		}
		if i%10 == 0 {
			lines = append(lines, "")
		}
	}
	chapters := chapterize.Split(strings.Join(lines, "\n"), defaultPattern(t))
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if !strings.HasPrefix(chapters[0], "第一章") || !strings.HasPrefix(chapters[1], "第二章") || !strings.HasPrefix(chapters[2], "第3章") {
		t.Fatalf("headings not first lines: %q %q %q", chapters[0][:12], chapters[1][:12], chapters[2][:8])
	}

	var nonBlank []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonBlank = append(nonBlank, line)
		}
	}
	if got := strings.Join(chapters, "\n"); got != strings.Join(nonBlank, "\n") {
		t.Fatalf("concatenated chapters do not reconstruct the source line order")
	}
}

func TestSplitKeepsPreambleAsLeadingChapter(t *testing.T) {
	chapters := chapterize.Split("序言\n第1章\n正文", defaultPattern(t))
	if len(chapters) != 2 || chapters[0] != "序言" || chapters[1] != "第1章\n正文" {
		t.Fatalf("unexpected chapters %q", chapters)
	}
}

func TestSplitMatchesIdeographicIndent(t *testing.T) {
	chapters := chapterize.Split("　　第十二话 夜\n内容\n第十三节\n更多", defaultPattern(t))
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %q", chapters)
	}
	if chapters[0] != "第十二话 夜\n内容" {
		t.Fatalf("unexpected first chapter %q", chapters[0])
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := "第1章\na\n第2章\nb"
	first := chapterize.Split(text, defaultPattern(t))
	second := chapterize.Split(text, defaultPattern(t))
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Fatalf("split not deterministic: %q vs %q", first, second)
	}
}

func TestSplitEmptyText(t *testing.T) {
	if chapters := chapterize.Split("\n \n", defaultPattern(t)); len(chapters) != 0 {
		t.Fatalf("expected no chapters, got %q", chapters)
	}
}

func newInitializer(t *testing.T) (*chapterize.Initializer, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.NewStore(t, cfg)
	initializer := chapterize.NewInitializer(st, chapterize.Options{
		Pattern:         cfg.Pipeline.ChapterPattern,
		NarratorRole:    cfg.Pipeline.NarratorRole,
		NarratorProfile: cfg.Pipeline.NarratorProfile,
		NarratorSample:  cfg.Pipeline.NarratorSample,
	}, nil)
	return initializer, st, cfg
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestInitializePersistsChaptersAndNarrator(t *testing.T) {
	initializer, st, cfg := newInitializer(t)
	source := writeSource(t, "长夜.txt", "第一章\n天黑了。\n\n第二章\n天亮了。\n")

	result, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: source})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.Work != "长夜" || result.Chapters != 2 || len(result.Written) != 2 || !result.Seeded {
		t.Fatalf("unexpected result %+v", result)
	}

	raw, err := st.Read(store.ChapterScope("长夜", 2), store.KeyRaw)
	if err != nil {
		t.Fatalf("read chapter 2: %v", err)
	}
	if string(raw) != "第二章\n天亮了。" {
		t.Fatalf("chapter 2 raw = %q", raw)
	}
	if !st.WorkExists("长夜") {
		t.Fatalf("work should exist after initialization")
	}

	registry := testsupport.ReadRegistry(t, st, "长夜")
	if len(registry) != 1 || registry[0].Role != cfg.Pipeline.NarratorRole || registry[0].ID != 1 {
		t.Fatalf("unexpected registry %+v", registry)
	}
	bindings := testsupport.ReadBindings(t, st, "长夜")
	if bindings[cfg.Pipeline.NarratorRole] != cfg.Pipeline.NarratorSample {
		t.Fatalf("narrator not pre-bound: %+v", bindings)
	}
}

func TestInitializeNeverOverwritesRawOrRegistry(t *testing.T) {
	initializer, st, _ := newInitializer(t)
	first := writeSource(t, "book.txt", "第1章\n原文。")
	if _, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: first}); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}

	registry := narration.Registry{
		{Role: "旁白", Descript: "narrator", ID: 1},
		{Role: "林舟", Descript: "young scholar", ID: 2},
	}
	if err := st.WriteJSON(store.WorkScope("book"), store.KeyCharacters, registry); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	second := writeSource(t, "book.txt", "第1章\n改写。\n第2章\n新增。")
	result, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: second})
	if err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if len(result.Kept) != 1 || result.Kept[0] != 1 || len(result.Written) != 1 || result.Written[0] != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Seeded {
		t.Fatalf("registry should not be re-seeded")
	}

	raw, err := st.Read(store.ChapterScope("book", 1), store.KeyRaw)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(raw) != "第1章\n原文。" {
		t.Fatalf("raw text overwritten: %q", raw)
	}
	if got := testsupport.ReadRegistry(t, st, "book"); len(got) != 2 {
		t.Fatalf("registry replaced: %+v", got)
	}
}

func TestInitializeEmptySource(t *testing.T) {
	initializer, _, _ := newInitializer(t)
	source := writeSource(t, "empty.txt", "\n  \n")
	_, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: source})
	if !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected empty input, got %v", err)
	}
}

func TestInitializeMissingSource(t *testing.T) {
	initializer, _, _ := newInitializer(t)
	_, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: filepath.Join(t.TempDir(), "nope.txt")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInitializeNameAndPatternOverride(t *testing.T) {
	initializer, st, _ := newInitializer(t)
	source := writeSource(t, "draft.txt", "Chapter 1\nalpha\nChapter 2\nbeta")
	result, err := initializer.Initialize(context.Background(), chapterize.Request{
		SourcePath: source,
		Name:       "english",
		Pattern:    `^Chapter \d+`,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.Work != "english" || result.Chapters != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	chapters, err := st.Chapters("english")
	if err != nil || len(chapters) != 2 {
		t.Fatalf("Chapters = %v, %v", chapters, err)
	}
}

func TestInitializeBadPattern(t *testing.T) {
	initializer, _, _ := newInitializer(t)
	source := writeSource(t, "x.txt", "text")
	_, err := initializer.Initialize(context.Background(), chapterize.Request{SourcePath: source, Pattern: "("})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
