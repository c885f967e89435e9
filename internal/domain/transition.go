package domain

import (
	"fmt"
	"strings"
)

// transitionEdge identifies one (from, to) status pair.
type transitionEdge struct {
	From Status
	To   Status
}

// legalTransitions is the complete edge table of the request lifecycle.
var legalTransitions = map[transitionEdge]struct{}{
	{From: StatusSubmitted, To: StatusReceived}:   {},
	{From: StatusReceived, To: StatusInProgress}:  {},
	{From: StatusInProgress, To: StatusCompleted}: {},
	{From: StatusInProgress, To: StatusRejected}:  {},
}

// TransitionFields carries the per-transition payload checked by preconditions.
type TransitionFields struct {
	RejectionReason    string
	CompletionEvidence string
}

// transitionPrecondition validates fields required to enter one status.
type transitionPrecondition func(TransitionFields) error

// transitionPreconditions stores field requirements keyed by target status.
var transitionPreconditions = map[Status]transitionPrecondition{
	StatusRejected: func(f TransitionFields) error {
		if strings.TrimSpace(f.RejectionReason) == "" {
			return fmt.Errorf("rejection_reason is required when rejecting: %w", ErrMissingRequiredField)
		}
		return nil
	},
	StatusCompleted: func(f TransitionFields) error {
		if strings.TrimSpace(f.CompletionEvidence) == "" {
			return fmt.Errorf("completion_photo_url is required when completing: %w", ErrMissingRequiredField)
		}
		return nil
	},
}

// ValidateTransition reports whether the status change is a legal edge.
func ValidateTransition(from, to Status) error {
	from = NormalizeStatus(from)
	to = NormalizeStatus(to)
	if _, ok := legalTransitions[transitionEdge{From: from, To: to}]; !ok {
		return fmt.Errorf("cannot transition from %q to %q: %w", from, to, ErrIllegalTransition)
	}
	return nil
}

// ValidateTransitionFields checks the field preconditions of the target status.
func ValidateTransitionFields(to Status, fields TransitionFields) error {
	check, ok := transitionPreconditions[NormalizeStatus(to)]
	if !ok {
		return nil
	}
	return check(fields)
}

// NextStatuses returns the legal targets from one status in lifecycle order.
func NextStatuses(from Status) []Status {
	from = NormalizeStatus(from)
	out := make([]Status, 0, 2)
	for _, to := range validStatuses {
		if _, ok := legalTransitions[transitionEdge{From: from, To: to}]; ok {
			out = append(out, to)
		}
	}
	return out
}
