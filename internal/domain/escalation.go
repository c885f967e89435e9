package domain

import (
	"math"
	"time"
)

// ShouldEscalate reports whether a request has dwelt long enough at its
// priority to advance one rung up the ladder.
//
// The evaluator ignores status; callers must not pass closed requests.
func ShouldEscalate(createdAt time.Time, lastEscalatedAt *time.Time, category Category, priority Priority, now time.Time) (bool, Priority) {
	step, ok := EscalationRule(category, priority)
	if !ok {
		return false, ""
	}
	if now.UTC().Sub(escalationBase(createdAt, lastEscalatedAt)) >= hoursToDuration(step.DwellHours) {
		return true, step.Next
	}
	return false, ""
}

// HoursUntilEscalation returns whole hours left before the next rung, clamped at zero.
// The boolean is false when the priority is at the top of its ladder.
func HoursUntilEscalation(createdAt time.Time, lastEscalatedAt *time.Time, category Category, priority Priority, now time.Time) (int, bool) {
	step, ok := EscalationRule(category, priority)
	if !ok {
		return 0, false
	}
	elapsed := now.UTC().Sub(escalationBase(createdAt, lastEscalatedAt)).Hours()
	remaining := step.DwellHours - math.Floor(elapsed)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining), true
}

// escalationBase picks the instant dwell time is measured from.
func escalationBase(createdAt time.Time, lastEscalatedAt *time.Time) time.Time {
	if lastEscalatedAt != nil && !lastEscalatedAt.IsZero() {
		return lastEscalatedAt.UTC()
	}
	return createdAt.UTC()
}
