package utils

import (
	"errors"
	"io"
	"testing"
)

func TestKindErrorMatchesKindAndCause(t *testing.T) {
	err := NewKindError(ErrTraining, "lifecycle.Retrain", "training failed", io.ErrUnexpectedEOF)

	if !errors.Is(err, ErrTraining) {
		t.Fatalf("expected kind to match")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to match")
	}
	if errors.Is(err, ErrModelNotReady) {
		t.Fatalf("unexpected kind match")
	}
	if got := err.Error(); got != "lifecycle.Retrain: training failed: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMessagePrefersAppErrorMessage(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), NewAppError("op", "friendly", nil))
	if got := Message(wrapped); got != "friendly" {
		t.Fatalf("expected friendly message, got %q", got)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Fatalf("expected plain message, got %q", got)
	}
	if Message(nil) != "" {
		t.Fatalf("expected empty message for nil")
	}
}
