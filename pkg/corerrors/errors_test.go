package corerrors

import (
	"errors"
	"testing"
)

func TestPipelineErrorUnwrapsToSentinel(t *testing.T) {
	err := New("router.Execute", "router", ErrNoMapping)
	if !errors.Is(err, ErrNoMapping) {
		t.Fatal("wrapped error should unwrap to its sentinel via errors.Is")
	}
}

func TestPipelineErrorMessageIncludesOpAndID(t *testing.T) {
	err := New("orchestrator.RunPipeline", "pipeline", ErrPersistenceFailed).WithID("sess-42")
	msg := err.Error()
	if msg != "orchestrator.RunPipeline [sess-42]: persistence failed" {
		t.Errorf("Error() = %q", msg)
	}
}

func TestPipelineErrorMessageWithoutID(t *testing.T) {
	err := New("router.Execute", "router", ErrNoMapping)
	msg := err.Error()
	if msg != "router.Execute: no mapping found for phase/task/doc-type" {
		t.Errorf("Error() = %q", msg)
	}
}

func TestWithIDDoesNotMutateOriginal(t *testing.T) {
	base := New("op", "kind", ErrTimeout)
	withID := base.WithID("abc")
	if base.ID != "" {
		t.Error("WithID() should return a copy, not mutate the receiver")
	}
	if withID.ID != "abc" {
		t.Errorf("withID.ID = %q, want abc", withID.ID)
	}
}

func TestIsRetryableClassifiesTransientErrors(t *testing.T) {
	if !IsRetryable(ErrTimeout) {
		t.Error("ErrTimeout should be retryable")
	}
	if !IsRetryable(ErrConnectionFailed) {
		t.Error("ErrConnectionFailed should be retryable")
	}
	if !IsRetryable(ErrRateLimited) {
		t.Error("ErrRateLimited should be retryable")
	}
	if IsRetryable(ErrNoMapping) {
		t.Error("ErrNoMapping should not be retryable")
	}
}

func TestIsNotFoundClassifiesLookupFailures(t *testing.T) {
	for _, err := range []error{ErrNoMapping, ErrNoProviderForMapped, ErrTemplateNotFound, ErrCacheMiss} {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
	}
	if IsNotFound(ErrTimeout) {
		t.Error("ErrTimeout should not be classified as not-found")
	}
}

func TestIsConfigurationErrorClassifiesConfigFailures(t *testing.T) {
	if !IsConfigurationError(ErrMissingConfiguration) {
		t.Error("ErrMissingConfiguration should be a configuration error")
	}
	if !IsConfigurationError(ErrInvalidConfiguration) {
		t.Error("ErrInvalidConfiguration should be a configuration error")
	}
	if IsConfigurationError(ErrTimeout) {
		t.Error("ErrTimeout should not be a configuration error")
	}
}

func TestIsStateErrorClassifiesTransitionFailures(t *testing.T) {
	if !IsStateError(ErrInvalidStateTransition) {
		t.Error("ErrInvalidStateTransition should be a state error")
	}
	if !IsStateError(ErrResumeNotPossible) {
		t.Error("ErrResumeNotPossible should be a state error")
	}
	if IsStateError(ErrQueueFull) {
		t.Error("ErrQueueFull should not be a state error")
	}
}
