package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyInput       = errors.New("empty input")
	ErrStructuralFormat = errors.New("structural format error")
	ErrUnboundRole      = errors.New("unbound role")
	ErrGeneration       = errors.New("generation failure")
	ErrIntegrity        = errors.New("integrity failure")
	ErrExternalTool     = errors.New("external tool error")
	ErrConfiguration    = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short machine-readable label for the marker carried by err.
// The stage ledger stores this label next to the error text.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrStructuralFormat):
		return "structural_format"
	case errors.Is(err, ErrUnboundRole):
		return "unbound_role"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

// Hint returns an operator-facing suggestion for the failure class.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "run the preceding stage for this chapter first"
	case errors.Is(err, ErrEmptyInput):
		return "check the chapter source text"
	case errors.Is(err, ErrStructuralFormat):
		return "re-run the stage; the generator returned malformed output"
	case errors.Is(err, ErrUnboundRole):
		return "run `narrate voices <work>` to bind the listed roles"
	case errors.Is(err, ErrIntegrity):
		return "inspect the speech synthesis output directory"
	case errors.Is(err, ErrConfiguration):
		return "check the configuration file and environment"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
