package services_test

import (
	"errors"
	"strings"
	"testing"

	"narrate/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembly", "synthesize", "batch failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembly", "synthesize", "batch failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToExternalTool(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[error]string{
		nil: "",
		services.Wrap(services.ErrNotFound, "script", "read", "missing", nil):           "not_found",
		services.Wrap(services.ErrUnboundRole, "assembly", "resolve", "roles", nil):     "unbound_role",
		services.Wrap(services.ErrStructuralFormat, "script", "decode", "bad", nil):     "structural_format",
		services.Wrap(services.ErrIntegrity, "assembly", "verify", "segment", nil):      "integrity",
		errors.New("plain"): "unknown",
	}
	for err, want := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestHintForUnboundRole(t *testing.T) {
	err := services.Wrap(services.ErrUnboundRole, "assembly", "resolve", "", nil)
	if hint := services.Hint(err); !strings.Contains(hint, "voices") {
		t.Fatalf("unexpected hint %q", hint)
	}
}
