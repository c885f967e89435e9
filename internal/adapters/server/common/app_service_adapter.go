package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/hylla/civitas/internal/app"
	"github.com/hylla/civitas/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service request lifecycle APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListDistricts lists every district a citizen may submit to.
func (a *AppServiceAdapter) ListDistricts(ctx context.Context) ([]DistrictView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	districts, err := a.service.ListDistricts(ctx, "")
	if err != nil {
		return nil, mapAppError("list districts", err)
	}
	out := make([]DistrictView, 0, len(districts))
	for _, d := range districts {
		out = append(out, DistrictView{ID: d.ID, MunicipalityID: d.MunicipalityID, Name: d.Name})
	}
	return out, nil
}

// SubmitRequest creates one citizen request and returns its tracking view.
func (a *AppServiceAdapter) SubmitRequest(ctx context.Context, in SubmitRequest) (TrackingView, error) {
	if err := a.ready(); err != nil {
		return TrackingView{}, err
	}
	req, err := a.service.SubmitRequest(ctx, app.SubmitRequestInput{
		DistrictID:  in.DistrictID,
		Category:    in.Category,
		Description: in.Description,
		Address:     in.Address,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	})
	if err != nil {
		return TrackingView{}, mapAppError("submit request", err)
	}
	return a.TrackRequest(ctx, req.TrackingCode)
}

// TrackRequest resolves a public tracking code.
func (a *AppServiceAdapter) TrackRequest(ctx context.Context, code string) (TrackingView, error) {
	if err := a.ready(); err != nil {
		return TrackingView{}, err
	}
	detail, err := a.service.TrackRequest(ctx, code)
	if err != nil {
		return TrackingView{}, mapAppError("track request", err)
	}
	return toTrackingView(detail), nil
}

// AddCitizenUpdate appends a public follow-up message.
func (a *AppServiceAdapter) AddCitizenUpdate(ctx context.Context, code string, in CitizenUpdateRequest) (TrackingView, error) {
	if err := a.ready(); err != nil {
		return TrackingView{}, err
	}
	detail, err := a.service.AddCitizenUpdate(ctx, code, in.Message)
	if err != nil {
		return TrackingView{}, mapAppError("add citizen update", err)
	}
	return toTrackingView(detail), nil
}

// ListRequests lists requests in the context actor's scope.
func (a *AppServiceAdapter) ListRequests(ctx context.Context, in ListRequestsQuery) (RequestPageView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestPageView{}, err
	}
	page, err := a.service.ListRequests(ctx, actor, app.ListRequestsInput{
		Status:     in.Status,
		Category:   in.Category,
		Priority:   in.Priority,
		DistrictID: in.DistrictID,
		Page:       in.Page,
		PageSize:   in.PageSize,
	})
	if err != nil {
		return RequestPageView{}, mapAppError("list requests", err)
	}
	out := RequestPageView{
		Items:    make([]RequestView, 0, len(page.Items)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, req := range page.Items {
		out.Items = append(out.Items, toRequestView(req))
	}
	return out, nil
}

// GetRequest returns one in-scope request with full history.
func (a *AppServiceAdapter) GetRequest(ctx context.Context, requestID string) (RequestDetailView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestDetailView{}, err
	}
	detail, err := a.service.GetRequest(ctx, actor, requestID)
	if err != nil {
		return RequestDetailView{}, mapAppError("get request", err)
	}
	out := RequestDetailView{
		Request:              toRequestView(detail.Request),
		Updates:              toChangeRecordViews(detail.Records),
		Assignments:          make([]AssignmentView, 0, len(detail.Assignments)),
		NextStatuses:         []string{},
		HoursUntilEscalation: detail.HoursUntilEscalation,
	}
	for _, asg := range detail.Assignments {
		out.Assignments = append(out.Assignments, AssignmentView{
			ID:             asg.ID,
			StaffUserID:    asg.StaffUserID,
			StaffName:      asg.StaffName,
			AssignedByID:   asg.AssignedByID,
			AssignedByName: asg.AssignedByName,
			CreatedAt:      asg.CreatedAt,
		})
	}
	for _, status := range domain.NextStatuses(detail.Request.Status) {
		out.NextStatuses = append(out.NextStatuses, string(status))
	}
	return out, nil
}

// UpdateStatus moves one request along its lifecycle.
func (a *AppServiceAdapter) UpdateStatus(ctx context.Context, requestID string, in StatusChangeRequest) (RequestView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestView{}, err
	}
	req, err := a.service.UpdateStatus(ctx, actor, app.StatusChangeInput{
		RequestID:          requestID,
		Status:             in.Status,
		RejectionReason:    in.RejectionReason,
		CompletionPhotoURL: in.CompletionPhotoURL,
		Note:               in.Note,
	})
	if err != nil {
		return RequestView{}, mapAppError("update status", err)
	}
	return toRequestView(req), nil
}

// UpdatePriority sets a manual priority.
func (a *AppServiceAdapter) UpdatePriority(ctx context.Context, requestID string, in PriorityChangeRequest) (RequestView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestView{}, err
	}
	req, err := a.service.UpdatePriority(ctx, actor, app.PriorityChangeInput{RequestID: requestID, Priority: in.Priority})
	if err != nil {
		return RequestView{}, mapAppError("update priority", err)
	}
	return toRequestView(req), nil
}

// AssignStaff assigns a district staff member.
func (a *AppServiceAdapter) AssignStaff(ctx context.Context, requestID string, in AssignStaffRequest) (RequestView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestView{}, err
	}
	req, err := a.service.AssignStaff(ctx, actor, app.AssignStaffInput{RequestID: requestID, StaffUserID: in.StaffUserID})
	if err != nil {
		return RequestView{}, mapAppError("assign staff", err)
	}
	return toRequestView(req), nil
}

// AddNote appends an internal note.
func (a *AppServiceAdapter) AddNote(ctx context.Context, requestID string, in NoteRequest) (RequestView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return RequestView{}, err
	}
	req, err := a.service.AddNote(ctx, actor, app.NoteInput{RequestID: requestID, Message: in.Message})
	if err != nil {
		return RequestView{}, mapAppError("add note", err)
	}
	return toRequestView(req), nil
}

// ListAuditEntries lists audit rows for one in-scope request.
func (a *AppServiceAdapter) ListAuditEntries(ctx context.Context, requestID string) ([]AuditEntryView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.service.ListAuditEntries(ctx, actor, requestID)
	if err != nil {
		return nil, mapAppError("list audit entries", err)
	}
	out := make([]AuditEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryView{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out, nil
}

// ListStaff lists staff the context actor may assign.
func (a *AppServiceAdapter) ListStaff(ctx context.Context, districtID string) ([]StaffView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return nil, err
	}
	users, err := a.service.ListStaff(ctx, actor, districtID)
	if err != nil {
		return nil, mapAppError("list staff", err)
	}
	out := make([]StaffView, 0, len(users))
	for _, u := range users {
		out = append(out, StaffView{ID: u.ID, Name: u.Name, Email: u.Email, DistrictID: u.DistrictID})
	}
	return out, nil
}

// SLACompliance reports compliance over closed requests in the actor's scope.
func (a *AppServiceAdapter) SLACompliance(ctx context.Context) (ComplianceView, error) {
	actor, err := a.actor(ctx)
	if err != nil {
		return ComplianceView{}, err
	}
	report, err := a.service.SLACompliance(ctx, actor)
	if err != nil {
		return ComplianceView{}, mapAppError("sla compliance", err)
	}
	return ToComplianceView(report), nil
}

// ToComplianceView converts a domain report with categories in canonical order.
func ToComplianceView(report domain.ComplianceReport) ComplianceView {
	out := ComplianceView{
		Closed:     report.Closed,
		Met:        report.Met,
		Rate:       report.Rate,
		ByCategory: make([]ComplianceBucketView, 0, len(report.ByCategory)),
	}
	for _, category := range domain.Categories() {
		bucket, ok := report.ByCategory[category]
		if !ok {
			continue
		}
		out.ByCategory = append(out.ByCategory, ComplianceBucketView{
			Category: string(category),
			Total:    bucket.Total,
			Met:      bucket.Met,
			Breached: bucket.Breached,
			Rate:     bucket.Rate,
		})
	}
	return out
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return nil
}

// actor resolves the authenticated actor attached to ctx.
func (a *AppServiceAdapter) actor(ctx context.Context) (domain.ActingUser, error) {
	if err := a.ready(); err != nil {
		return domain.ActingUser{}, err
	}
	actor, err := a.service.ResolveContextActor(ctx)
	if err != nil {
		return domain.ActingUser{}, mapAppError("resolve actor", err)
	}
	return actor, nil
}

// toRequestView converts one domain request.
func toRequestView(req domain.Request) RequestView {
	return RequestView{
		ID:                  req.ID,
		TrackingCode:        req.TrackingCode,
		MunicipalityID:      req.MunicipalityID,
		DistrictID:          req.DistrictID,
		Category:            string(req.Category),
		Priority:            string(req.Priority),
		Status:              string(req.Status),
		Description:         req.Description,
		Address:             req.Location.Address,
		Latitude:            req.Location.Latitude,
		Longitude:           req.Location.Longitude,
		AssigneeID:          req.AssigneeID,
		AssigneeName:        req.AssigneeName,
		RejectionReason:     req.RejectionReason,
		CompletionPhotoURL:  req.CompletionPhotoURL,
		IsAutoEscalated:     req.IsAutoEscalated,
		PriorityEscalatedAt: req.PriorityEscalatedAt,
		SLADeadline:         req.SLADeadline,
		SLAStatus:           string(req.SLAStatus),
		SLABreachedAt:       req.SLABreachedAt,
		CreatedAt:           req.CreatedAt,
		UpdatedAt:           req.UpdatedAt,
		ClosedAt:            req.ClosedAt,
	}
}

// toTrackingView converts the citizen view of one request.
func toTrackingView(detail app.RequestDetail) TrackingView {
	req := detail.Request
	return TrackingView{
		Request: PublicRequestView{
			TrackingCode:       req.TrackingCode,
			Category:           string(req.Category),
			Status:             string(req.Status),
			Description:        req.Description,
			Address:            req.Location.Address,
			RejectionReason:    req.RejectionReason,
			CompletionPhotoURL: req.CompletionPhotoURL,
			SLADeadline:        req.SLADeadline,
			CreatedAt:          req.CreatedAt,
			UpdatedAt:          req.UpdatedAt,
		},
		Updates: toChangeRecordViews(domain.PublicRecords(detail.Records)),
	}
}

// toChangeRecordViews converts history entries.
func toChangeRecordViews(records []domain.ChangeRecord) []ChangeRecordView {
	out := make([]ChangeRecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, ChangeRecordView{
			ID:               rec.ID,
			Kind:             string(rec.Kind),
			ActorName:        rec.ActorName,
			Message:          rec.Message,
			FromStatus:       string(rec.FromStatus),
			ToStatus:         string(rec.ToStatus),
			FromPriority:     string(rec.FromPriority),
			ToPriority:       string(rec.ToPriority),
			IsAutoEscalation: rec.IsAutoEscalation,
			IsInternal:       rec.IsInternal,
			CreatedAt:        rec.CreatedAt,
		})
	}
	return out
}

// mapAppError maps app/domain errors into transport-facing error categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnauthenticated, err))
	case errors.Is(err, domain.ErrRoleForbidden):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, app.ErrNotFound):
		// Out-of-scope and missing requests are indistinguishable to callers.
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	case errors.Is(err, app.ErrConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrNoOpChange),
		errors.Is(err, domain.ErrInvalidAssignee):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRuleViolation, err))
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrInvalidTrackingCode),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidBinding),
		errors.Is(err, domain.ErrInvalidIntent):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrTrackingCode):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrServiceUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
