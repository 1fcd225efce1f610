package workflow

import (
	"context"
	"time"

	"narrate/internal/assembly"
	"narrate/internal/chapterize"
	"narrate/internal/characters"
	"narrate/internal/ledger"
	"narrate/internal/script"
	"narrate/internal/voices"
)

// Stage names as recorded in the ledger.
const (
	StageSplit      = "split"
	StageScript     = "script"
	StageCharacters = "characters"
	StageVoices     = "voices"
	StageAssemble   = "assemble"
)

// Initializer splits a source text into a work.
type Initializer interface {
	Initialize(context.Context, chapterize.Request) (chapterize.Result, error)
}

// Deriver produces a chapter script.
type Deriver interface {
	Derive(ctx context.Context, work string, chapter int) (script.Result, error)
}

// Registrar registers a chapter's new roles.
type Registrar interface {
	Register(ctx context.Context, work string, chapter int) (characters.Result, error)
}

// VoiceSyncer binds voice samples to registered characters.
type VoiceSyncer interface {
	Sync(ctx context.Context, work string) (voices.Result, error)
}

// Assembler renders chapter audio.
type Assembler interface {
	Assemble(ctx context.Context, work string, chapter int) (assembly.Result, error)
}

// StageSet bundles the concrete stage implementations the manager orchestrates.
type StageSet struct {
	Initializer Initializer
	Deriver     Deriver
	Registrar   Registrar
	Voices      VoiceSyncer
	Assembler   Assembler
}

// Ledger is the stage ledger surface the manager uses.
type Ledger interface {
	Record(context.Context, ledger.Event) error
	Rewind(ctx context.Context, work string, chapter int, status ledger.Status) error
	Chapters(ctx context.Context, work string) ([]ledger.ChapterState, error)
}

// Options controls a chapter run.
type Options struct {
	// Rederive regenerates the script even when one exists.
	Rederive bool
}

// Outcome reports how far one chapter got.
type Outcome struct {
	Work        string        `json:"work"`
	Chapter     int           `json:"chapter"`
	Status      ledger.Status `json:"status"`
	FailedStage string        `json:"failed_stage,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Artifact    string        `json:"artifact,omitempty"`
	RunID       string        `json:"run_id"`
	Warnings    int           `json:"warnings,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`

	Err error `json:"-"`
}

// Failed reports whether the chapter stopped on an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// ChapterStatus merges artifact presence with the ledger's view of a chapter.
type ChapterStatus struct {
	Chapter      int           `json:"chapter"`
	Status       ledger.Status `json:"status"`
	Script       bool          `json:"script"`
	Audio        bool          `json:"audio"`
	FailedStage  string        `json:"failed_stage,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Artifact     string        `json:"artifact,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at,omitempty"`
}
