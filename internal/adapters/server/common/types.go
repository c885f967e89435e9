// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports missing or out-of-scope resources. Both render the same response.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest reports malformed or rejected transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnauthenticated reports a missing or unknown actor.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden reports that the actor's role may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// ErrRuleViolation reports lifecycle rule failures such as illegal transitions.
var ErrRuleViolation = errors.New("rule violation")

// ErrConflict reports a lost optimistic-concurrency race.
var ErrConflict = errors.New("conflict")

// ErrServiceUnavailable reports an unconfigured adapter.
var ErrServiceUnavailable = errors.New("service unavailable")

// DistrictView is the transport shape of one district.
type DistrictView struct {
	ID             string `json:"id"`
	MunicipalityID string `json:"municipality_id"`
	Name           string `json:"name"`
}

// StaffView is the transport shape of one assignable staff member.
type StaffView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	DistrictID string `json:"district_id"`
}

// RequestView is the transport shape of one service request.
type RequestView struct {
	ID                  string     `json:"id"`
	TrackingCode        string     `json:"tracking_code"`
	MunicipalityID      string     `json:"municipality_id"`
	DistrictID          string     `json:"district_id"`
	Category            string     `json:"category"`
	Priority            string     `json:"priority"`
	Status              string     `json:"status"`
	Description         string     `json:"description"`
	Address             string     `json:"address,omitempty"`
	Latitude            *float64   `json:"latitude,omitempty"`
	Longitude           *float64   `json:"longitude,omitempty"`
	AssigneeID          string     `json:"assignee_id,omitempty"`
	AssigneeName        string     `json:"assignee_name,omitempty"`
	RejectionReason     string     `json:"rejection_reason,omitempty"`
	CompletionPhotoURL  string     `json:"completion_photo_url,omitempty"`
	IsAutoEscalated     bool       `json:"is_auto_escalated"`
	PriorityEscalatedAt *time.Time `json:"priority_escalated_at,omitempty"`
	SLADeadline         time.Time  `json:"sla_deadline"`
	SLAStatus           string     `json:"sla_status"`
	SLABreachedAt       *time.Time `json:"sla_breached_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
}

// PublicRequestView is the citizen-facing subset of a request.
type PublicRequestView struct {
	TrackingCode       string    `json:"tracking_code"`
	Category           string    `json:"category"`
	Status             string    `json:"status"`
	Description        string    `json:"description"`
	Address            string    `json:"address,omitempty"`
	RejectionReason    string    `json:"rejection_reason,omitempty"`
	CompletionPhotoURL string    `json:"completion_photo_url,omitempty"`
	SLADeadline        time.Time `json:"sla_deadline"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ChangeRecordView is the transport shape of one history entry.
type ChangeRecordView struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	ActorName        string    `json:"actor_name,omitempty"`
	Message          string    `json:"message,omitempty"`
	FromStatus       string    `json:"from_status,omitempty"`
	ToStatus         string    `json:"to_status,omitempty"`
	FromPriority     string    `json:"from_priority,omitempty"`
	ToPriority       string    `json:"to_priority,omitempty"`
	IsAutoEscalation bool      `json:"is_auto_escalation,omitempty"`
	IsInternal       bool      `json:"is_internal,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AssignmentView is the transport shape of one assignment history row.
type AssignmentView struct {
	ID             string    `json:"id"`
	StaffUserID    string    `json:"staff_user_id"`
	StaffName      string    `json:"staff_name"`
	AssignedByID   string    `json:"assigned_by_id"`
	AssignedByName string    `json:"assigned_by_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditEntryView is the transport shape of one audit log row.
type AuditEntryView struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrackingView is the citizen tracking response.
type TrackingView struct {
	Request PublicRequestView  `json:"request"`
	Updates []ChangeRecordView `json:"updates"`
}

// RequestDetailView is the admin single-request response.
type RequestDetailView struct {
	Request              RequestView        `json:"request"`
	Updates              []ChangeRecordView `json:"updates"`
	Assignments          []AssignmentView   `json:"assignments"`
	NextStatuses         []string           `json:"next_statuses"`
	HoursUntilEscalation *int               `json:"hours_until_escalation,omitempty"`
}

// RequestPageView is one page of an admin listing.
type RequestPageView struct {
	Items    []RequestView `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ComplianceBucketView is one category row of the compliance report.
type ComplianceBucketView struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Met      int    `json:"met"`
	Breached int    `json:"breached"`
	Rate     int    `json:"rate"`
}

// ComplianceView is the SLA compliance report.
type ComplianceView struct {
	Closed     int                    `json:"closed"`
	Met        int                    `json:"met"`
	Rate       int                    `json:"rate"`
	ByCategory []ComplianceBucketView `json:"by_category"`
}

// SubmitRequest captures a public submission payload.
type SubmitRequest struct {
	DistrictID  string   `json:"district_id"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Address     string   `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// CitizenUpdateRequest captures a public follow-up message.
type CitizenUpdateRequest struct {
	Message string `json:"message"`
}

// ListRequestsQuery captures admin listing filters.
type ListRequestsQuery struct {
	Status     string
	Category   string
	Priority   string
	DistrictID string
	Page       int
	PageSize   int
}

// StatusChangeRequest captures a status transition payload.
type StatusChangeRequest struct {
	Status             string `json:"status"`
	RejectionReason    string `json:"rejection_reason,omitempty"`
	CompletionPhotoURL string `json:"completion_photo_url,omitempty"`
	Note               string `json:"note,omitempty"`
}

// PriorityChangeRequest captures a manual priority payload.
type PriorityChangeRequest struct {
	Priority string `json:"priority"`
}

// AssignStaffRequest captures a staff assignment payload.
type AssignStaffRequest struct {
	StaffUserID string `json:"staff_user_id"`
}

// NoteRequest captures an internal note payload.
type NoteRequest struct {
	Message string `json:"message"`
}

// PublicService captures unauthenticated citizen operations.
type PublicService interface {
	ListDistricts(context.Context) ([]DistrictView, error)
	SubmitRequest(context.Context, SubmitRequest) (TrackingView, error)
	TrackRequest(context.Context, string) (TrackingView, error)
	AddCitizenUpdate(context.Context, string, CitizenUpdateRequest) (TrackingView, error)
}

// AdminService captures actor-scoped staff and admin operations.
// The actor is read from the context attached by the transport.
type AdminService interface {
	ListRequests(context.Context, ListRequestsQuery) (RequestPageView, error)
	GetRequest(context.Context, string) (RequestDetailView, error)
	UpdateStatus(context.Context, string, StatusChangeRequest) (RequestView, error)
	UpdatePriority(context.Context, string, PriorityChangeRequest) (RequestView, error)
	AssignStaff(context.Context, string, AssignStaffRequest) (RequestView, error)
	AddNote(context.Context, string, NoteRequest) (RequestView, error)
	ListAuditEntries(context.Context, string) ([]AuditEntryView, error)
	ListStaff(context.Context, string) ([]StaffView, error)
	SLACompliance(context.Context) (ComplianceView, error)
}
