package assembly

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"narrate/internal/fileutil"
	"narrate/internal/logging"
	"narrate/internal/media/concat"
	"narrate/internal/narration"
	"narrate/internal/script"
	"narrate/internal/services"
	"narrate/internal/services/indextts"
	"narrate/internal/store"
)

const stageName = "assemble"

// Synthesizer renders an ordered batch of lines to WAV files.
type Synthesizer interface {
	Synthesize(ctx context.Context, lines []indextts.Line) error
}

// Result describes a chapter audio artifact.
type Result struct {
	Work       string `json:"work"`
	Chapter    int    `json:"chapter"`
	Path       string `json:"path"`
	Segments   int    `json:"segments"`
	DurationMS int64  `json:"duration_ms"`
	Reused     bool   `json:"reused"`
}

// Assembler synthesizes a chapter's lines and joins them into one file.
type Assembler struct {
	store   *store.Store
	speech  Synthesizer
	silence time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewAssembler constructs an Assembler inserting silenceMS between lines.
func NewAssembler(st *store.Store, speech Synthesizer, silenceMS int, logger *slog.Logger) *Assembler {
	return &Assembler{
		store:   st,
		speech:  speech,
		silence: time.Duration(silenceMS) * time.Millisecond,
		logger:  logging.NewComponentLogger(logger, "assembly"),
		now:     time.Now,
	}
}

// Assemble produces the chapter audio. Every role in the script must be bound
// to an existing sample. When the stored manifest matches the current inputs
// and the audio exists, the artifact is reused. Otherwise all segments are
// regenerated in one batch, verified, and concatenated into a file that only
// appears once complete.
func (a *Assembler) Assemble(ctx context.Context, work string, chapter int) (Result, error) {
	scope := store.ChapterScope(work, chapter)
	result := Result{Work: work, Chapter: chapter, Path: a.store.Path(scope, store.KeyAudio)}
	ctx = services.WithStage(services.WithChapter(services.WithWork(ctx, work), chapter), stageName)
	logger := logging.WithContext(ctx, a.logger)

	chapterScript, err := script.Load(a.store, work, chapter)
	if err != nil {
		return result, err
	}
	var bindings narration.Bindings
	if err := a.store.ReadJSON(store.WorkScope(work), store.KeyBindings, &bindings); err != nil {
		return result, err
	}
	samples, err := a.resolveSamples(chapterScript, bindings)
	if err != nil {
		return result, err
	}
	result.Segments = len(chapterScript.Lines)

	digest, err := inputDigest(chapterScript, samples, a.silence)
	if err != nil {
		return result, services.Wrap(services.ErrStructuralFormat, stageName, "digest", scope.String(), err)
	}
	if manifest, ok := a.reusable(scope, digest); ok {
		result.Reused = true
		result.DurationMS = manifest.DurationMS
		logger.Info("chapter audio up to date", logging.String("path", result.Path))
		return result, nil
	}

	// The previous audio stays until the new file is renamed over it; without
	// a manifest it is never reused.
	if err := a.store.Remove(scope, store.KeyManifest); err != nil {
		return result, err
	}
	if err := a.store.Remove(scope, store.KeySegments); err != nil {
		return result, err
	}
	segmentDir := a.store.Path(scope, store.KeySegments)
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "prepare segments", scope.String(), err)
	}

	batch := make([]indextts.Line, 0, len(chapterScript.Lines))
	paths := make([]string, 0, len(chapterScript.Lines))
	for i, line := range chapterScript.Lines {
		out := filepath.Join(segmentDir, narration.SegmentName(i))
		batch = append(batch, indextts.Line{Index: i, Text: line.Text, RefAudio: samples[line.Role], OutputWAV: out})
		paths = append(paths, out)
	}

	if a.speech == nil {
		return result, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "speech synthesis unavailable", nil)
	}
	started := time.Now()
	logger.Info("synthesizing chapter", logging.Int("lines", len(batch)))
	if err := a.speech.Synthesize(ctx, batch); err != nil {
		return result, services.Wrap(services.ErrExternalTool, stageName, "synthesize", scope.String(), err)
	}

	if missing := missingSegments(paths); len(missing) > 0 {
		return result, services.Wrap(services.ErrIntegrity, stageName, "verify segments",
			fmt.Sprintf("%s: missing %s", scope, strings.Join(missing, ", ")), nil)
	}

	info, err := concat.ConcatFile(result.Path, paths, a.silence)
	if err != nil {
		marker := services.ErrExternalTool
		if errors.Is(err, concat.ErrMissingSegment) || errors.Is(err, concat.ErrInvalidSegment) || errors.Is(err, concat.ErrFormatMismatch) {
			marker = services.ErrIntegrity
		}
		return result, services.Wrap(marker, stageName, "concatenate", scope.String(), err)
	}
	result.DurationMS = info.Duration.Milliseconds()

	manifest := narration.Manifest{
		Digest:     digest,
		Segments:   info.Segments,
		SilenceMS:  int(a.silence / time.Millisecond),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		DurationMS: result.DurationMS,
		CreatedAt:  a.now().UTC(),
	}
	if err := a.store.WriteJSON(scope, store.KeyManifest, manifest); err != nil {
		return result, err
	}

	logger.Info("chapter audio assembled",
		logging.String("path", result.Path),
		logging.Int("segments", info.Segments),
		logging.Duration("audio_duration", info.Duration),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// resolveSamples maps every script role to its sample path, failing with the
// complete list of unbound roles before anything else.
func (a *Assembler) resolveSamples(s narration.Script, bindings narration.Bindings) (map[string]string, error) {
	roles := narration.DistinctRoles(s.Lines)
	var unbound []string
	for _, role := range roles {
		if strings.TrimSpace(bindings[role]) == "" {
			unbound = append(unbound, role)
		}
	}
	if len(unbound) > 0 {
		return nil, services.Wrap(services.ErrUnboundRole, stageName, "resolve voices", strings.Join(unbound, ", "), nil)
	}

	samples := make(map[string]string, len(roles))
	for _, role := range roles {
		path := a.store.VoicePath(strings.TrimSpace(bindings[role]))
		ok, err := fileutil.NonEmpty(path)
		if err != nil || !ok {
			return nil, services.Wrap(services.ErrNotFound, stageName, "resolve voices", fmt.Sprintf("role %q sample %s", role, path), err)
		}
		samples[role] = path
	}
	return samples, nil
}

func (a *Assembler) reusable(scope store.Scope, digest string) (narration.Manifest, bool) {
	var manifest narration.Manifest
	if err := a.store.ReadJSON(scope, store.KeyManifest, &manifest); err != nil {
		return manifest, false
	}
	if manifest.Digest != digest {
		return manifest, false
	}
	ok, err := fileutil.NonEmpty(a.store.Path(scope, store.KeyAudio))
	return manifest, err == nil && ok
}

// inputDigest fingerprints everything the chapter audio depends on.
func inputDigest(s narration.Script, samples map[string]string, silence time.Duration) (string, error) {
	payload := struct {
		Lines     []narration.Line  `json:"lines"`
		Samples   map[string]string `json:"samples"`
		SilenceMS int64             `json:"silence_ms"`
	}{Lines: s.Lines, Samples: samples, SilenceMS: silence.Milliseconds()}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func missingSegments(paths []string) []string {
	var missing []string
	for _, path := range paths {
		if ok, err := fileutil.NonEmpty(path); err != nil || !ok {
			missing = append(missing, filepath.Base(path))
		}
	}
	return missing
}
