package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestFailureClassification(t *testing.T) {
	cases := []struct {
		kind      FailureKind
		retryable bool
	}{
		{KindUnreachable, true},
		{KindRemoteError, true},
		{KindInvalidRequest, false},
		{KindSessionNotFound, false},
		{KindPoolExhausted, false},
		{KindInvalidRelease, false},
		{KindCanceled, false},
	}

	for _, tc := range cases {
		err := NewFailure(tc.kind, "op", errors.New("boom"))
		if got := Retryable(err); got != tc.retryable {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, got, tc.retryable)
		}
		if got := KindOf(err); got != tc.kind {
			t.Errorf("KindOf(%s) = %s", tc.kind, got)
		}
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	inner := Failf(KindSessionNotFound, "send_message", "session %s unknown", "abc")
	wrapped := fmt.Errorf("item 2: %w", inner)

	if KindOf(wrapped) != KindSessionNotFound {
		t.Fatalf("classification lost through wrapping: %v", wrapped)
	}
	if Retryable(wrapped) {
		t.Fatal("SessionNotFound must not be retryable")
	}

	var f *Failure
	if !errors.As(wrapped, &f) {
		t.Fatal("errors.As failed to find Failure")
	}
	if f.Op != "send_message" {
		t.Fatalf("unexpected op %q", f.Op)
	}
}

func TestUnclassifiedErrorsAreTerminal(t *testing.T) {
	if Retryable(errors.New("plain")) {
		t.Fatal("plain errors must be terminal")
	}
	if KindOf(nil) != "" {
		t.Fatal("nil must have no kind")
	}
}
