package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Work-scoped keys.
const (
	KeyRawAll     = "raw_all.txt"
	KeySource     = "source"
	KeyCharacters = "characters.json"
	KeyBindings   = "role_to_voice.json"
)

// Chapter-scoped keys.
const (
	KeyRaw      = "raw.txt"
	KeyScript   = "script.json"
	KeyAudio    = "full_drama.wav"
	KeyManifest = "assembly.json"
	KeySegments = "segments"
)

// Voice library keys.
const (
	KeyVoiceMetadata = "metadata.json"
)

const (
	chaptersDir   = "chapters"
	chapterPrefix = "ch_"
	lockFileName  = ".lock"
)

// Scope addresses a storage namespace: a whole work, one chapter of a work,
// or the shared voice library.
type Scope struct {
	Work    string
	Chapter int
	library bool
}

// WorkScope addresses work-level artifacts.
func WorkScope(work string) Scope { return Scope{Work: work} }

// ChapterScope addresses artifacts of one chapter.
func ChapterScope(work string, chapter int) Scope { return Scope{Work: work, Chapter: chapter} }

// LibraryScope addresses the shared voice library.
func LibraryScope() Scope { return Scope{library: true} }

func (s Scope) String() string {
	switch {
	case s.library:
		return "voices"
	case s.Chapter > 0:
		return s.Work + "/" + chapterPrefix + strconv.Itoa(s.Chapter)
	default:
		return s.Work
	}
}

// lockScope is the scope whose lock guards s. Chapters share their work's
// lock so registry and binding updates serialize with chapter writes.
func (s Scope) lockScope() Scope {
	if s.library {
		return s
	}
	return WorkScope(s.Work)
}

// Store is a filesystem key-value store for pipeline artifacts.
//
// Layout:
//
//	<novels>/<work>/raw_all.txt
//	<novels>/<work>/characters.json
//	<novels>/<work>/role_to_voice.json
//	<novels>/<work>/chapters/ch_<n>/{raw.txt,script.json,segments/,full_drama.wav,assembly.json}
//	<voices>/metadata.json
type Store struct {
	novelsDir string
	voiceDir  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a store rooted at novelsDir with the voice library at voiceDir.
func New(novelsDir, voiceDir string) *Store {
	return &Store{
		novelsDir: novelsDir,
		voiceDir:  voiceDir,
		locks:     make(map[string]*sync.Mutex),
	}
}

// VoiceDir returns the voice library directory.
func (s *Store) VoiceDir() string { return s.voiceDir }

// Dir returns the directory holding the scope's artifacts.
func (s *Store) Dir(scope Scope) string {
	switch {
	case scope.library:
		return s.voiceDir
	case scope.Chapter > 0:
		return filepath.Join(s.novelsDir, scope.Work, chaptersDir, chapterPrefix+strconv.Itoa(scope.Chapter))
	default:
		return filepath.Join(s.novelsDir, scope.Work)
	}
}

// Path returns the on-disk location for key within scope.
func (s *Store) Path(scope Scope, key string) string {
	return filepath.Join(s.Dir(scope), key)
}

// VoicePath resolves a voice binding value. Relative values are taken to be
// inside the voice library.
func (s *Store) VoicePath(sample string) string {
	if sample == "" || filepath.IsAbs(sample) {
		return sample
	}
	return filepath.Join(s.voiceDir, sample)
}

// ValidateScope rejects scopes that would escape the store root.
func ValidateScope(scope Scope) error {
	if scope.library {
		return nil
	}
	work := strings.TrimSpace(scope.Work)
	if work == "" {
		return errors.New("work name required")
	}
	if work != scope.Work || strings.ContainsAny(work, `/\`) || strings.HasPrefix(work, ".") {
		return fmt.Errorf("invalid work name %q", scope.Work)
	}
	if scope.Chapter < 0 {
		return fmt.Errorf("invalid chapter %d", scope.Chapter)
	}
	return nil
}

// WorkExists reports whether a work has been initialized.
func (s *Store) WorkExists(work string) bool {
	if ValidateScope(WorkScope(work)) != nil {
		return false
	}
	info, err := os.Stat(s.Path(WorkScope(work), KeyRawAll))
	return err == nil && info.Mode().IsRegular()
}

// Works lists initialized works in name order.
func (s *Store) Works() ([]string, error) {
	entries, err := os.ReadDir(s.novelsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	var works []string
	for _, entry := range entries {
		if entry.IsDir() && s.WorkExists(entry.Name()) {
			works = append(works, entry.Name())
		}
	}
	sort.Strings(works)
	return works, nil
}

// Chapters lists the chapter ordinals of a work in ascending order.
func (s *Store) Chapters(work string) ([]int, error) {
	if err := ValidateScope(WorkScope(work)); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.Dir(WorkScope(work)), chaptersDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	var chapters []int
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), chapterPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), chapterPrefix))
		if err != nil || n <= 0 {
			continue
		}
		chapters = append(chapters, n)
	}
	sort.Ints(chapters)
	return chapters, nil
}
