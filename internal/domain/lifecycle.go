package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// IntentKind identifies the mutation an Apply call performs.
type IntentKind string

// IntentKind values.
const (
	IntentStatusChange   IntentKind = "status_change"
	IntentPriorityChange IntentKind = "priority_change"
	IntentAssignment     IntentKind = "assignment"
	IntentNote           IntentKind = "note"
	// IntentEscalation is system-triggered and bypasses actor authorization.
	IntentEscalation IntentKind = "escalation"
)

// intentOperations maps user intents to the operation class they are authorized as.
var intentOperations = map[IntentKind]Operation{
	IntentStatusChange:   OperationStatusChange,
	IntentPriorityChange: OperationPriorityChange,
	IntentAssignment:     OperationAssignment,
	IntentNote:           OperationNote,
}

// IntentOperation returns the operation class a user intent is authorized as.
// System escalation and unknown kinds have none.
func IntentOperation(kind IntentKind) (Operation, error) {
	op, ok := intentOperations[kind]
	if !ok {
		return "", fmt.Errorf("unknown intent %q: %w", kind, ErrInvalidIntent)
	}
	return op, nil
}

// Intent describes one requested lifecycle mutation.
type Intent struct {
	Kind               IntentKind
	Status             Status
	RejectionReason    string
	CompletionEvidence string
	Priority           Priority
	Assignee           *ActingUser
	// Note is the message of a note intent, or an optional internal note
	// attached to a status change.
	Note string
}

// StatusChange builds a status-change intent.
func StatusChange(to Status, fields TransitionFields, note string) Intent {
	return Intent{
		Kind:               IntentStatusChange,
		Status:             to,
		RejectionReason:    fields.RejectionReason,
		CompletionEvidence: fields.CompletionEvidence,
		Note:               note,
	}
}

// PriorityChange builds a manual priority-change intent.
func PriorityChange(to Priority) Intent {
	return Intent{Kind: IntentPriorityChange, Priority: to}
}

// Assign builds a staff-assignment intent.
func Assign(staff ActingUser) Intent {
	return Intent{Kind: IntentAssignment, Assignee: &staff}
}

// Note builds an internal-note intent.
func Note(message string) Intent {
	return Intent{Kind: IntentNote, Note: message}
}

// Submit creates a new request and its initial public history entry.
func Submit(in RequestInput, now time.Time) (Request, []ChangeRecord, error) {
	req, err := NewRequest(in, now)
	if err != nil {
		return Request{}, nil, err
	}
	return req, []ChangeRecord{{
		RequestID: req.ID,
		Kind:      ChangeKindSubmitted,
		Message:   "Request received",
		ToStatus:  StatusSubmitted,
		CreatedAt: req.CreatedAt,
	}}, nil
}

// Apply validates and applies one intent to a request snapshot.
//
// On success it returns the full updated snapshot plus every record the
// mutation produced; on failure it returns an error and nothing else.
func Apply(req Request, actor ActingUser, intent Intent, now time.Time) (Request, []ChangeRecord, error) {
	ts := now.UTC()
	if intent.Kind == IntentEscalation {
		next, records, ok := Escalate(req, ts)
		if !ok {
			return Request{}, nil, fmt.Errorf("escalation not due: %w", ErrNoOpChange)
		}
		return next, records, nil
	}

	op, err := IntentOperation(intent.Kind)
	if err != nil {
		return Request{}, nil, err
	}
	if err := AuthorizeRequest(actor, req, op); err != nil {
		return Request{}, nil, err
	}

	var (
		next    Request
		records []ChangeRecord
	)
	switch intent.Kind {
	case IntentStatusChange:
		next, records, err = applyStatusChange(req, intent, ts)
	case IntentPriorityChange:
		next, records, err = applyPriorityChange(req, intent.Priority, ts)
	case IntentAssignment:
		next, records, err = applyAssignment(req, intent.Assignee, ts)
	case IntentNote:
		next, records, err = applyNote(req, intent.Note, ts)
	}
	if err != nil {
		return Request{}, nil, err
	}

	records = append(records, refreshSLA(&next, ts)...)
	for i := range records {
		records[i].RequestID = next.ID
		records[i].ActorID = actor.ID
		records[i].ActorName = actor.Name
		records[i].CreatedAt = ts
	}
	return next, records, nil
}

// applyStatusChange runs the transition validator and closes terminal requests.
func applyStatusChange(req Request, intent Intent, ts time.Time) (Request, []ChangeRecord, error) {
	to := NormalizeStatus(intent.Status)
	if !IsValidStatus(to) {
		return Request{}, nil, fmt.Errorf("status %q: %w", intent.Status, ErrInvalidStatus)
	}
	if err := ValidateTransition(req.Status, to); err != nil {
		return Request{}, nil, err
	}
	fields := TransitionFields{
		RejectionReason:    strings.TrimSpace(intent.RejectionReason),
		CompletionEvidence: strings.TrimSpace(intent.CompletionEvidence),
	}
	if err := ValidateTransitionFields(to, fields); err != nil {
		return Request{}, nil, err
	}

	next := req
	from := next.Status
	next.Status = to
	next.UpdatedAt = ts
	if to.IsTerminal() && next.ClosedAt == nil {
		closedAt := ts
		next.ClosedAt = &closedAt
	}
	switch to {
	case StatusRejected:
		next.RejectionReason = fields.RejectionReason
	case StatusCompleted:
		next.CompletionPhotoURL = fields.CompletionEvidence
	}

	records := []ChangeRecord{{
		Kind:       ChangeKindStatus,
		FromStatus: from,
		ToStatus:   to,
	}}
	if to == StatusRejected {
		records = append(records, ChangeRecord{
			Kind:    ChangeKindRejectionReason,
			Message: "Rejection reason: " + fields.RejectionReason,
		})
	}
	if note := strings.TrimSpace(intent.Note); note != "" {
		records = append(records, ChangeRecord{
			Kind:       ChangeKindNote,
			Message:    "Internal note: " + note,
			IsInternal: true,
		})
	}
	return next, records, nil
}

// applyPriorityChange sets a manual priority and clears auto-escalation markers.
func applyPriorityChange(req Request, priority Priority, ts time.Time) (Request, []ChangeRecord, error) {
	to := NormalizePriority(priority)
	if !IsValidPriority(to) {
		return Request{}, nil, fmt.Errorf("priority %q: %w", priority, ErrInvalidPriority)
	}
	if req.IsClosed() {
		return Request{}, nil, fmt.Errorf("cannot change priority of a %s request: %w", req.Status, ErrIllegalTransition)
	}
	if to == req.Priority {
		return Request{}, nil, fmt.Errorf("priority unchanged: %w", ErrNoOpChange)
	}

	next := req
	from := next.Priority
	next.Priority = to
	next.IsAutoEscalated = false
	next.PriorityEscalatedAt = nil
	next.UpdatedAt = ts
	next.recomputeDeadline()

	return next, []ChangeRecord{{
		Kind:         ChangeKindPriority,
		Message:      fmt.Sprintf("Priority changed from %s to %s", from, to),
		FromPriority: from,
		ToPriority:   to,
		IsInternal:   true,
	}}, nil
}

// applyAssignment binds the request to a staff member of its district.
func applyAssignment(req Request, staff *ActingUser, ts time.Time) (Request, []ChangeRecord, error) {
	if staff == nil || strings.TrimSpace(staff.ID) == "" {
		return Request{}, nil, fmt.Errorf("assignee is required: %w", ErrMissingRequiredField)
	}
	if NormalizeRole(staff.Role) != RoleStaff || staff.DistrictID != req.DistrictID {
		return Request{}, nil, ErrInvalidAssignee
	}

	next := req
	next.AssigneeID = staff.ID
	next.AssigneeName = staff.Name
	next.UpdatedAt = ts
	return next, []ChangeRecord{{
		Kind:       ChangeKindAssignment,
		Message:    "Assigned to " + staff.Name,
		IsInternal: true,
	}}, nil
}

// applyNote appends an internal note.
func applyNote(req Request, message string, ts time.Time) (Request, []ChangeRecord, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Request{}, nil, fmt.Errorf("note message is required: %w", ErrMissingRequiredField)
	}
	next := req
	next.UpdatedAt = ts
	return next, []ChangeRecord{{
		Kind:       ChangeKindNote,
		Message:    message,
		IsInternal: true,
	}}, nil
}

// AppendCitizenUpdate records a public follow-up message from the requester.
func AppendCitizenUpdate(req Request, message string, now time.Time) (Request, []ChangeRecord, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Request{}, nil, ErrInvalidMessage
	}
	ts := now.UTC()
	next := req
	next.UpdatedAt = ts
	return next, []ChangeRecord{{
		RequestID: next.ID,
		Kind:      ChangeKindCitizenUpdate,
		Message:   message,
		CreatedAt: ts,
	}}, nil
}

// Escalate advances an open request one rung up its ladder when the dwell
// threshold has elapsed. Escalation markers are kept as evidence.
func Escalate(req Request, now time.Time) (Request, []ChangeRecord, bool) {
	if req.IsClosed() {
		return req, nil, false
	}
	ts := now.UTC()
	due, to := ShouldEscalate(req.CreatedAt, req.PriorityEscalatedAt, req.Category, req.Priority, ts)
	if !due {
		return req, nil, false
	}
	hours := math.Floor(ts.Sub(escalationBase(req.CreatedAt, req.PriorityEscalatedAt)).Hours())

	next := req
	from := next.Priority
	escalatedAt := ts
	next.Priority = to
	next.PriorityEscalatedAt = &escalatedAt
	next.IsAutoEscalated = true
	next.UpdatedAt = ts
	next.recomputeDeadline()

	records := []ChangeRecord{{
		Kind:             ChangeKindEscalation,
		Message:          fmt.Sprintf("Priority auto-escalated from %s to %s after %d hours", from, to, int(hours)),
		FromPriority:     from,
		ToPriority:       to,
		IsAutoEscalation: true,
	}}
	records = append(records, refreshSLA(&next, ts)...)
	for i := range records {
		records[i].RequestID = next.ID
		records[i].CreatedAt = ts
	}
	return next, records, true
}

// RefreshSLA recomputes the SLA status and emits a breach notice the first
// time a breach is observed.
func RefreshSLA(req Request, now time.Time) (Request, []ChangeRecord) {
	ts := now.UTC()
	next := req
	records := refreshSLA(&next, ts)
	for i := range records {
		records[i].RequestID = next.ID
		records[i].CreatedAt = ts
	}
	return next, records
}

// Reconcile evaluates on-demand escalation and SLA status at read time.
// The boolean reports whether the snapshot needs persisting.
func Reconcile(req Request, now time.Time) (Request, []ChangeRecord, bool) {
	next, records, escalated := Escalate(req, now)
	refreshed, breach := RefreshSLA(next, now)
	records = append(records, breach...)
	changed := escalated || len(records) > 0 || refreshed.SLAStatus != req.SLAStatus
	return refreshed, records, changed
}

// refreshSLA updates derived SLA fields in place.
// Any change to them bumps updated_at so concurrent writers conflict.
func refreshSLA(req *Request, ts time.Time) []ChangeRecord {
	prev := req.SLAStatus
	req.SLAStatus = ComputeSLAStatus(req.slaInput(), ts)
	if req.SLAStatus != prev {
		req.UpdatedAt = ts
	}
	if req.SLAStatus != SLAStatusBreached || req.SLABreachedAt != nil {
		return nil
	}
	breachedAt := ts
	req.SLABreachedAt = &breachedAt
	req.UpdatedAt = ts
	return []ChangeRecord{{
		Kind:    ChangeKindSLABreach,
		Message: "SLA deadline exceeded",
	}}
}
