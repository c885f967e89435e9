package domain

import "time"

// ChangeKind classifies what a change record describes.
type ChangeKind string

// ChangeKind values.
const (
	ChangeKindSubmitted       ChangeKind = "submitted"
	ChangeKindStatus          ChangeKind = "status"
	ChangeKindRejectionReason ChangeKind = "rejection_reason"
	ChangeKindPriority        ChangeKind = "priority"
	ChangeKindEscalation      ChangeKind = "escalation"
	ChangeKindAssignment      ChangeKind = "assignment"
	ChangeKindNote            ChangeKind = "note"
	ChangeKindCitizenUpdate   ChangeKind = "citizen_update"
	ChangeKindSLABreach       ChangeKind = "sla_breach"
)

// ChangeRecord is one immutable entry in a request's history.
//
// Internal records are hidden from citizen-facing views.
type ChangeRecord struct {
	ID               string
	RequestID        string
	Kind             ChangeKind
	ActorID          string
	ActorName        string
	Message          string
	FromStatus       Status
	ToStatus         Status
	FromPriority     Priority
	ToPriority       Priority
	IsAutoEscalation bool
	IsInternal       bool
	CreatedAt        time.Time
}

// HasStatusChange reports whether the record carries a status pair.
func (c ChangeRecord) HasStatusChange() bool {
	return c.ToStatus != ""
}

// HasPriorityChange reports whether the record carries a priority pair.
func (c ChangeRecord) HasPriorityChange() bool {
	return c.FromPriority != "" && c.ToPriority != ""
}

// PublicRecords filters out internal records.
func PublicRecords(records []ChangeRecord) []ChangeRecord {
	out := make([]ChangeRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsInternal {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Assignment records one staff assignment of a request.
type Assignment struct {
	ID             string
	RequestID      string
	StaffUserID    string
	StaffName      string
	AssignedByID   string
	AssignedByName string
	CreatedAt      time.Time
}

// AuditEntry is one administrative action written to the audit log.
type AuditEntry struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    string
	CreatedAt  time.Time
}
