package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/civitas/internal/domain"
)

// Audit log actions and entity types.
const (
	AuditActionAssignStaff    = "assign_staff"
	AuditActionStatusChange   = "status_change"
	AuditActionPriorityChange = "priority_change"
	AuditActionAddNote        = "add_note"

	AuditEntityServiceRequest = "service_request"
)

// SubmitRequestInput holds input values for public request submission.
type SubmitRequestInput struct {
	DistrictID  string   `validate:"required"`
	Category    string   `validate:"required,oneof=lighting water waste roads other"`
	Description string   `validate:"required,max=4000"`
	Address     string   `validate:"max=500"`
	Latitude    *float64 `validate:"omitempty,latitude"`
	Longitude   *float64 `validate:"omitempty,longitude"`
}

func (in SubmitRequestInput) normalized() SubmitRequestInput {
	in.DistrictID = strings.TrimSpace(in.DistrictID)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

// CitizenUpdateInput holds input values for a public follow-up message.
type CitizenUpdateInput struct {
	TrackingCode string `validate:"required"`
	Message      string `validate:"required,max=2000"`
}

func (in CitizenUpdateInput) normalized() CitizenUpdateInput {
	in.TrackingCode = domain.NormalizeTrackingCode(in.TrackingCode)
	in.Message = strings.TrimSpace(in.Message)
	return in
}

// ListRequestsInput holds admin listing filters.
type ListRequestsInput struct {
	Status     string `validate:"omitempty,oneof=submitted received in_progress completed rejected"`
	Category   string `validate:"omitempty,oneof=lighting water waste roads other"`
	Priority   string `validate:"omitempty,oneof=low normal high urgent"`
	DistrictID string
	Page       int `validate:"gte=0"`
	PageSize   int `validate:"gte=0"`
}

func (in ListRequestsInput) normalized() ListRequestsInput {
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	in.DistrictID = strings.TrimSpace(in.DistrictID)
	return in
}

// StatusChangeInput holds input values for a status transition.
type StatusChangeInput struct {
	RequestID          string `validate:"required"`
	Status             string `validate:"required,oneof=submitted received in_progress completed rejected"`
	RejectionReason    string `validate:"max=1000"`
	CompletionPhotoURL string `validate:"omitempty,uri"`
	Note               string `validate:"max=2000"`
}

func (in StatusChangeInput) normalized() StatusChangeInput {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.RejectionReason = strings.TrimSpace(in.RejectionReason)
	in.CompletionPhotoURL = strings.TrimSpace(in.CompletionPhotoURL)
	in.Note = strings.TrimSpace(in.Note)
	return in
}

// PriorityChangeInput holds input values for a manual priority change.
type PriorityChangeInput struct {
	RequestID string `validate:"required"`
	Priority  string `validate:"required,oneof=low normal high urgent"`
}

func (in PriorityChangeInput) normalized() PriorityChangeInput {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	return in
}

// AssignStaffInput holds input values for staff assignment.
type AssignStaffInput struct {
	RequestID   string `validate:"required"`
	StaffUserID string `validate:"required"`
}

func (in AssignStaffInput) normalized() AssignStaffInput {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.StaffUserID = strings.TrimSpace(in.StaffUserID)
	return in
}

// NoteInput holds input values for an internal note.
// Blank messages are rejected by the lifecycle engine as a missing field.
type NoteInput struct {
	RequestID string `validate:"required"`
	Message   string `validate:"max=2000"`
}

func (in NoteInput) normalized() NoteInput {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.Message = strings.TrimSpace(in.Message)
	return in
}

// newValidator builds the struct validator shared by all service inputs.
func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateInput runs struct tags and folds failures into ErrInvalidInput.
func (s *Service) validateInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fieldMessage(fe))
	}
	return fmt.Errorf("%s: %w", strings.Join(parts, "; "), ErrInvalidInput)
}

// fieldMessage renders one validation failure in snake_case field terms.
func fieldMessage(fe validator.FieldError) string {
	field := snakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// snakeCase converts Go field names like StaffUserID into staff_user_id.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
