package domain

import (
	"strings"
	"time"
)

// trackingCodeAlphabet excludes glyphs that are easy to misread (0/O, 1/I).
const trackingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TrackingCodeLength is the length of generated public tracking codes.
const TrackingCodeLength = 8

// TrackingCodeAlphabet returns the characters tracking codes are drawn from.
func TrackingCodeAlphabet() string {
	return trackingCodeAlphabet
}

// NormalizeTrackingCode canonicalizes a citizen-supplied tracking code.
func NormalizeTrackingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidTrackingCode reports whether code could have been issued.
func IsValidTrackingCode(code string) bool {
	code = NormalizeTrackingCode(code)
	if code == "" || len(code) > 16 {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(trackingCodeAlphabet, r) {
			return false
		}
	}
	return true
}

// Location stores optional geolocation details of a request.
type Location struct {
	Address   string
	Latitude  *float64
	Longitude *float64
}

// Request is one municipal service request.
type Request struct {
	ID                  string
	TrackingCode        string
	MunicipalityID      string
	DistrictID          string
	Category            Category
	Priority            Priority
	Status              Status
	Description         string
	Location            Location
	AssigneeID          string
	AssigneeName        string
	RejectionReason     string
	CompletionPhotoURL  string
	PriorityEscalatedAt *time.Time
	IsAutoEscalated     bool
	// SLADeadline is valid only for the current Priority; every priority
	// mutation recomputes it.
	SLADeadline   time.Time
	SLAStatus     SLAStatus
	SLABreachedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// RequestInput holds input values for request submission.
type RequestInput struct {
	ID             string
	TrackingCode   string
	MunicipalityID string
	DistrictID     string
	Category       Category
	Description    string
	Location       Location
}

// NewRequest constructs a submitted request at normal priority with its SLA fields set.
func NewRequest(in RequestInput, now time.Time) (Request, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TrackingCode = NormalizeTrackingCode(in.TrackingCode)
	in.MunicipalityID = strings.TrimSpace(in.MunicipalityID)
	in.DistrictID = strings.TrimSpace(in.DistrictID)
	in.Category = NormalizeCategory(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Location.Address = strings.TrimSpace(in.Location.Address)

	if in.ID == "" {
		return Request{}, ErrInvalidID
	}
	if !IsValidTrackingCode(in.TrackingCode) {
		return Request{}, ErrInvalidTrackingCode
	}
	if in.MunicipalityID == "" || in.DistrictID == "" {
		return Request{}, ErrInvalidBinding
	}
	if !IsValidCategory(in.Category) {
		return Request{}, ErrInvalidCategory
	}
	if in.Description == "" {
		return Request{}, ErrInvalidDescription
	}

	ts := now.UTC()
	req := Request{
		ID:             in.ID,
		TrackingCode:   in.TrackingCode,
		MunicipalityID: in.MunicipalityID,
		DistrictID:     in.DistrictID,
		Category:       in.Category,
		Priority:       PriorityNormal,
		Status:         StatusSubmitted,
		Description:    in.Description,
		Location:       in.Location,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	req.SLADeadline = ComputeDeadline(req.CreatedAt, req.Category, req.Priority)
	req.SLAStatus = ComputeSLAStatus(req.slaInput(), ts)
	return req, nil
}

// IsClosed reports whether the request reached a terminal status.
func (r Request) IsClosed() bool {
	return r.Status.IsTerminal()
}

// slaInput projects the request onto calculator inputs using the cached deadline.
func (r Request) slaInput() SLAInput {
	in := SLAInput{
		CreatedAt: r.CreatedAt,
		Category:  r.Category,
		Priority:  r.Priority,
		Status:    r.Status,
		ClosedAt:  r.ClosedAt,
	}
	if !r.SLADeadline.IsZero() {
		deadline := r.SLADeadline
		in.Deadline = &deadline
	}
	return in
}

// recomputeDeadline overwrites the cached deadline for the current priority.
func (r *Request) recomputeDeadline() {
	r.SLADeadline = ComputeDeadline(r.CreatedAt, r.Category, r.Priority)
}

// HoursUntilEscalation returns the hours left before auto-escalation for open requests.
func (r Request) HoursUntilEscalation(now time.Time) (int, bool) {
	if r.IsClosed() {
		return 0, false
	}
	return HoursUntilEscalation(r.CreatedAt, r.PriorityEscalatedAt, r.Category, r.Priority, now)
}
