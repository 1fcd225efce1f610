package stage

import "context"

// Target identifies the chapter a stage operates on.
type Target struct {
	Work    string
	Chapter int
}

// Report summarizes what a stage did.
type Report struct {
	// Artifact is the path the stage produced or confirmed.
	Artifact string
	// Skipped is set when the artifact was already current.
	Skipped bool
	// Warnings counts non-fatal problems the stage logged.
	Warnings int
	Detail   string
}

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Execute(context.Context, Target) (Report, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Target) (Report, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, target Target) (Report, error) {
	return f(ctx, target)
}
