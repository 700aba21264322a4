package verrors

import (
	"errors"
	"testing"
)

func TestError_UnwrapAndIs(t *testing.T) {
	err := New(ErrNotFound, "call xyz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("errors.Is should match the wrapped sentinel")
	}
	if errors.Is(err, ErrWrongState) {
		t.Fatal("should not match an unrelated sentinel")
	}
}

func TestError_Message(t *testing.T) {
	err := New(ErrInvalidArgs, "number is required")
	if got := err.Error(); got != "invalid_args: number is required" {
		t.Fatalf("Error() = %q", got)
	}
	bare := New(ErrUnsupported, "")
	if got := bare.Error(); got != "unsupported" {
		t.Fatalf("Error() with empty detail = %q", got)
	}
}

func TestCategory(t *testing.T) {
	if got := Category(New(ErrInProgress, "")); got != "in_progress" {
		t.Fatalf("Category = %q", got)
	}
	if got := Category(errors.New("some raw plugin error")); got != "plugin_failure" {
		t.Fatalf("Category(unknown) = %q, want plugin_failure fallback", got)
	}
	if got := Category(nil); got != "" {
		t.Fatalf("Category(nil) = %q, want empty", got)
	}
}

func TestWrap_NilIsNil(t *testing.T) {
	if Wrap(ErrPluginFailure, nil) != nil {
		t.Fatal("Wrap(kind, nil) must return nil")
	}
	wrapped := Wrap(ErrTimedOut, errors.New("deadline exceeded"))
	if !errors.Is(wrapped, ErrTimedOut) {
		t.Fatal("wrapped error should match its kind")
	}
}
