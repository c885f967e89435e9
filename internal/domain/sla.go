package domain

import "time"

// SLAInput carries the request facts the SLA calculator reads.
type SLAInput struct {
	CreatedAt time.Time
	Category  Category
	Priority  Priority
	Status    Status
	ClosedAt  *time.Time
	// Deadline is the cached deadline; nil means compute from the catalog.
	Deadline *time.Time
}

// ComputeDeadline returns createdAt plus the SLA budget for the classification.
func ComputeDeadline(createdAt time.Time, category Category, priority Priority) time.Time {
	return createdAt.UTC().Add(SLADuration(category, priority))
}

// ComputeSLAStatus classifies a request against its deadline.
//
// Closed requests compare closure time to the deadline and never look at now
// unless ClosedAt is missing. Open requests are breached once the deadline
// passes and at risk within the final quarter of their SLA budget.
func ComputeSLAStatus(in SLAInput, now time.Time) SLAStatus {
	deadline := ComputeDeadline(in.CreatedAt, in.Category, in.Priority)
	if in.Deadline != nil {
		deadline = in.Deadline.UTC()
	}

	if in.Status.IsTerminal() {
		reference := now.UTC()
		if in.ClosedAt != nil {
			reference = in.ClosedAt.UTC()
		}
		if reference.After(deadline) {
			return SLAStatusBreached
		}
		return SLAStatusMet
	}

	remaining := deadline.Sub(now.UTC())
	if remaining <= 0 {
		return SLAStatusBreached
	}
	threshold := time.Duration(float64(SLADuration(in.Category, in.Priority)) * atRiskFraction)
	if remaining <= threshold {
		return SLAStatusAtRisk
	}
	return SLAStatusMet
}

// TimeUntilDeadline returns the signed time left before the request's deadline.
func TimeUntilDeadline(req Request, now time.Time) time.Duration {
	deadline := req.SLADeadline
	if deadline.IsZero() {
		deadline = ComputeDeadline(req.CreatedAt, req.Category, req.Priority)
	}
	return deadline.Sub(now.UTC())
}
