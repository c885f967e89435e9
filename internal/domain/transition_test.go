package domain

import (
	"errors"
	"slices"
	"testing"
)

// TestValidateTransitionExhaustive enumerates every (from, to) status pair.
func TestValidateTransitionExhaustive(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusSubmitted, StatusReceived}:   true,
		{StatusReceived, StatusInProgress}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusRejected}:  true,
	}
	rejected := 0
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			err := ValidateTransition(from, to)
			if legal[[2]Status{from, to}] {
				if err != nil {
					t.Fatalf("ValidateTransition(%s, %s) error = %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("ValidateTransition(%s, %s) = %v, want ErrIllegalTransition", from, to, err)
			}
			rejected++
		}
	}
	if rejected != 21 {
		t.Fatalf("expected 21 illegal pairs, got %d", rejected)
	}
}

func TestValidateTransitionSkippingReceived(t *testing.T) {
	if err := ValidateTransition(StatusSubmitted, StatusInProgress); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestValidateTransitionFields(t *testing.T) {
	if err := ValidateTransitionFields(StatusRejected, TransitionFields{RejectionReason: "   "}); !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField for blank reason, got %v", err)
	}
	if err := ValidateTransitionFields(StatusRejected, TransitionFields{RejectionReason: "duplicate"}); err != nil {
		t.Fatalf("ValidateTransitionFields() error = %v", err)
	}
	if err := ValidateTransitionFields(StatusCompleted, TransitionFields{}); !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField for missing evidence, got %v", err)
	}
	if err := ValidateTransitionFields(StatusReceived, TransitionFields{}); err != nil {
		t.Fatalf("expected no precondition for received, got %v", err)
	}
}

func TestNextStatuses(t *testing.T) {
	got := NextStatuses(StatusInProgress)
	if !slices.Equal(got, []Status{StatusCompleted, StatusRejected}) {
		t.Fatalf("unexpected next statuses %#v", got)
	}
	if got := NextStatuses(StatusCompleted); len(got) != 0 {
		t.Fatalf("expected terminal status to have no exits, got %#v", got)
	}
}
