package faults

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapRoundTrip(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, CategoryBackendFailure, "backend_down", "check adapter health", true)
	if err == nil {
		t.Fatal("expected wrapped error")
	}
	if CategoryOf(err) != CategoryBackendFailure {
		t.Fatalf("unexpected category: %s", CategoryOf(err))
	}
	if CodeOf(err) != "backend_down" {
		t.Fatalf("unexpected code: %s", CodeOf(err))
	}
	if HintOf(err) != "check adapter health" {
		t.Fatalf("unexpected hint: %s", HintOf(err))
	}
	if !RetryableOf(err) {
		t.Fatal("expected retryable true")
	}
	if !stderrors.Is(err, base) {
		t.Fatal("expected wrapped error to preserve cause")
	}
}

func TestClassificationSurvivesFmtWrap(t *testing.T) {
	err := fmt.Errorf("process: %w", New(CategoryUnknownMode, "mode_not_found", "mode \"x\" not registered"))
	if CategoryOf(err) != CategoryUnknownMode {
		t.Fatalf("unexpected category: %s", CategoryOf(err))
	}
	if !IsFatal(err) {
		t.Fatal("unknown mode should be fatal")
	}
}

func TestUnknownErrorDefaults(t *testing.T) {
	err := stderrors.New("plain")
	if CategoryOf(err) != "" || CodeOf(err) != "" || HintOf(err) != "" {
		t.Fatalf("unexpected classification for plain error")
	}
	if RetryableOf(err) || IsFatal(err) {
		t.Fatal("plain error should be neither retryable nor fatal")
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if got := Wrap(nil, CategoryInternalFailure, "internal_failure", "retry later", false); got != nil {
		t.Fatalf("expected nil wrapped error, got=%v", got)
	}
}
