package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/civitas/internal/domain"
)

// Default listing and tracking-code settings.
const (
	DefaultPageSize             = 20
	MaxPageSize                 = 100
	DefaultTrackingCodeAttempts = 10
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	TrackingCodeLength   int
	TrackingCodeAttempts int
	DefaultPageSize      int
	MaxPageSize          int
	TrackingCodes        TrackingCodeGenerator
	Observer             Observer
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// TrackingCodeGenerator returns one random public tracking code of the given length.
type TrackingCodeGenerator func(length int) (string, error)

// Service orchestrates the request lifecycle engine over a repository.
type Service struct {
	repo          Repository
	idGen         IDGenerator
	clock         Clock
	validate      *validator.Validate
	trackingCodes TrackingCodeGenerator
	observer      Observer
	codeLength    int
	codeAttempts  int
	pageSize      int
	maxPageSize   int
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.TrackingCodes == nil {
		cfg.TrackingCodes = RandomTrackingCode
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.TrackingCodeLength <= 0 {
		cfg.TrackingCodeLength = domain.TrackingCodeLength
	}
	if cfg.TrackingCodeAttempts <= 0 {
		cfg.TrackingCodeAttempts = DefaultTrackingCodeAttempts
	}
	if cfg.MaxPageSize <= 0 || cfg.MaxPageSize > MaxPageSize {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = min(DefaultPageSize, cfg.MaxPageSize)
	}

	return &Service{
		repo:          repo,
		idGen:         idGen,
		clock:         clock,
		validate:      newValidator(),
		trackingCodes: cfg.TrackingCodes,
		observer:      cfg.Observer,
		codeLength:    cfg.TrackingCodeLength,
		codeAttempts:  cfg.TrackingCodeAttempts,
		pageSize:      cfg.DefaultPageSize,
		maxPageSize:   cfg.MaxPageSize,
	}
}

// RequestDetail is one request with its history.
type RequestDetail struct {
	Request              domain.Request
	Records              []domain.ChangeRecord
	Assignments          []domain.Assignment
	HoursUntilEscalation *int
}

// RequestPage is one page of a scoped request listing.
type RequestPage struct {
	Items    []domain.Request
	Total    int
	Page     int
	PageSize int
}

// ResolveActor loads the already-authenticated user behind an actor id.
func (s *Service) ResolveActor(ctx context.Context, userID string) (domain.ActingUser, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ActingUser{}, fmt.Errorf("actor id is required: %w", ErrUnauthenticated)
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.ActingUser{}, fmt.Errorf("unknown actor %q: %w", userID, ErrUnauthenticated)
		}
		return domain.ActingUser{}, err
	}
	return user.Actor(), nil
}

// ListDistricts lists districts, optionally limited to one municipality.
func (s *Service) ListDistricts(ctx context.Context, municipalityID string) ([]domain.District, error) {
	return s.repo.ListDistricts(ctx, strings.TrimSpace(municipalityID))
}

// ListStaff lists staff users an admin may assign within its scope.
func (s *Service) ListStaff(ctx context.Context, actor domain.ActingUser, districtID string) ([]domain.User, error) {
	if err := s.authorizeOperation(actor, domain.OperationAssignment); err != nil {
		return nil, err
	}
	filter := UserFilter{MunicipalityID: actor.MunicipalityID, Role: domain.RoleStaff}
	switch domain.ScopeFilter(actor).Kind {
	case domain.ScopeDistrict:
		filter.DistrictID = actor.DistrictID
	case domain.ScopeMunicipality:
		filter.DistrictID = strings.TrimSpace(districtID)
	}
	return s.repo.ListUsers(ctx, filter)
}

// SubmitRequest creates one citizen request in the submitted state.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitRequestInput) (domain.Request, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return domain.Request{}, err
	}
	district, err := s.repo.GetDistrict(ctx, in.DistrictID)
	if err != nil {
		return domain.Request{}, err
	}
	code, err := s.allocateTrackingCode(ctx)
	if err != nil {
		return domain.Request{}, err
	}

	req, records, err := domain.Submit(domain.RequestInput{
		ID:             s.idGen(),
		TrackingCode:   code,
		MunicipalityID: district.MunicipalityID,
		DistrictID:     district.ID,
		Category:       domain.Category(in.Category),
		Description:    in.Description,
		Location: domain.Location{
			Address:   in.Address,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
		},
	}, s.clock())
	if err != nil {
		return domain.Request{}, err
	}
	s.stampRecords(records)
	if err := s.repo.CreateRequest(ctx, req, records); err != nil {
		return domain.Request{}, err
	}
	s.observer.RequestSubmitted(req)
	return req, nil
}

// allocateTrackingCode draws codes until one is unused or attempts run out.
func (s *Service) allocateTrackingCode(ctx context.Context) (string, error) {
	for range s.codeAttempts {
		code, err := s.trackingCodes(s.codeLength)
		if err != nil {
			return "", err
		}
		exists, err := s.repo.TrackingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", s.codeAttempts, ErrTrackingCode)
}

// TrackRequest resolves a public tracking code to the citizen-visible request view.
func (s *Service) TrackRequest(ctx context.Context, code string) (RequestDetail, error) {
	req, err := s.lookupTrackingCode(ctx, code)
	if err != nil {
		return RequestDetail{}, err
	}
	return s.publicDetail(ctx, req)
}

// AddCitizenUpdate appends a public follow-up message to a tracked request.
func (s *Service) AddCitizenUpdate(ctx context.Context, code, message string) (RequestDetail, error) {
	in := CitizenUpdateInput{TrackingCode: code, Message: message}.normalized()
	if err := s.validateInput(in); err != nil {
		return RequestDetail{}, err
	}
	req, err := s.lookupTrackingCode(ctx, in.TrackingCode)
	if err != nil {
		return RequestDetail{}, err
	}
	next, records, err := domain.AppendCitizenUpdate(req, in.Message, s.clock())
	if err != nil {
		return RequestDetail{}, err
	}
	s.stampRecords(records)
	if err := s.repo.CommitRequest(ctx, RequestWrite{
		Request:           next,
		ExpectedUpdatedAt: req.UpdatedAt,
		Records:           records,
	}); err != nil {
		return RequestDetail{}, err
	}
	s.observer.RecordsCommitted(next, records)
	return s.publicDetail(ctx, next)
}

// lookupTrackingCode loads and reconciles a request by its public code.
func (s *Service) lookupTrackingCode(ctx context.Context, code string) (domain.Request, error) {
	code = domain.NormalizeTrackingCode(code)
	if !domain.IsValidTrackingCode(code) {
		return domain.Request{}, fmt.Errorf("tracking code %q: %w", code, ErrNotFound)
	}
	req, err := s.repo.GetRequestByTrackingCode(ctx, code)
	if err != nil {
		return domain.Request{}, err
	}
	return s.reconcile(ctx, req)
}

// publicDetail builds the citizen view with internal records removed.
func (s *Service) publicDetail(ctx context.Context, req domain.Request) (RequestDetail, error) {
	records, err := s.repo.ListChangeRecords(ctx, req.ID, false)
	if err != nil {
		return RequestDetail{}, err
	}
	return RequestDetail{Request: req, Records: domain.PublicRecords(records)}, nil
}

// ListRequests lists requests visible to the actor, newest first.
func (s *Service) ListRequests(ctx context.Context, actor domain.ActingUser, in ListRequestsInput) (RequestPage, error) {
	if err := s.authorizeOperation(actor, domain.OperationRead); err != nil {
		return RequestPage{}, err
	}
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return RequestPage{}, err
	}
	filter := RequestFilter{
		Scope:    domain.ScopeFilter(actor),
		Status:   domain.Status(in.Status),
		Category: domain.Category(in.Category),
		Priority: domain.Priority(in.Priority),
		Page:     max(in.Page, 1),
		PageSize: in.PageSize,
	}
	if filter.PageSize == 0 {
		filter.PageSize = s.pageSize
	}
	if filter.PageSize > s.maxPageSize {
		return RequestPage{}, fmt.Errorf("page_size exceeds %d: %w", s.maxPageSize, ErrInvalidInput)
	}
	if domain.NormalizeRole(actor.Role) == domain.RoleMunicipalAdmin {
		filter.DistrictID = in.DistrictID
	}

	if err := s.reconcileScope(ctx, filter.Scope); err != nil {
		return RequestPage{}, err
	}
	items, total, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return RequestPage{}, err
	}
	return RequestPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// GetRequest returns one in-scope request with full history.
func (s *Service) GetRequest(ctx context.Context, actor domain.ActingUser, requestID string) (RequestDetail, error) {
	req, err := s.loadAuthorized(ctx, actor, requestID, domain.OperationRead)
	if err != nil {
		return RequestDetail{}, err
	}
	req, err = s.reconcile(ctx, req)
	if err != nil {
		return RequestDetail{}, err
	}
	records, err := s.repo.ListChangeRecords(ctx, req.ID, true)
	if err != nil {
		return RequestDetail{}, err
	}
	assignments, err := s.repo.ListAssignments(ctx, req.ID)
	if err != nil {
		return RequestDetail{}, err
	}
	detail := RequestDetail{Request: req, Records: records, Assignments: assignments}
	if hours, ok := req.HoursUntilEscalation(s.clock()); ok {
		detail.HoursUntilEscalation = &hours
	}
	return detail, nil
}

// UpdateStatus moves a request along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.ActingUser, in StatusChangeInput) (domain.Request, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return domain.Request{}, err
	}
	intent := domain.StatusChange(domain.Status(in.Status), domain.TransitionFields{
		RejectionReason:    in.RejectionReason,
		CompletionEvidence: in.CompletionPhotoURL,
	}, in.Note)
	return s.mutate(ctx, actor, in.RequestID, intent, func(before, after domain.Request) mutationAudit {
		return mutationAudit{action: AuditActionStatusChange, details: fmt.Sprintf("%s -> %s", before.Status, after.Status)}
	})
}

// UpdatePriority sets a manual priority.
func (s *Service) UpdatePriority(ctx context.Context, actor domain.ActingUser, in PriorityChangeInput) (domain.Request, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return domain.Request{}, err
	}
	intent := domain.PriorityChange(domain.Priority(in.Priority))
	return s.mutate(ctx, actor, in.RequestID, intent, func(before, after domain.Request) mutationAudit {
		return mutationAudit{action: AuditActionPriorityChange, details: fmt.Sprintf("%s -> %s", before.Priority, after.Priority)}
	})
}

// AssignStaff assigns a staff member of the request district.
func (s *Service) AssignStaff(ctx context.Context, actor domain.ActingUser, in AssignStaffInput) (domain.Request, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return domain.Request{}, err
	}
	staff, err := s.repo.GetUser(ctx, in.StaffUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Request{}, fmt.Errorf("staff %q: %w", in.StaffUserID, domain.ErrInvalidAssignee)
		}
		return domain.Request{}, err
	}
	return s.mutate(ctx, actor, in.RequestID, domain.Assign(staff.Actor()), func(_, after domain.Request) mutationAudit {
		return mutationAudit{
			action:  AuditActionAssignStaff,
			details: staff.ID,
			assignment: &domain.Assignment{
				RequestID:      after.ID,
				StaffUserID:    staff.ID,
				StaffName:      staff.Name,
				AssignedByID:   actor.ID,
				AssignedByName: actor.Name,
			},
		}
	})
}

// AddNote appends an internal note.
func (s *Service) AddNote(ctx context.Context, actor domain.ActingUser, in NoteInput) (domain.Request, error) {
	in = in.normalized()
	if err := s.validateInput(in); err != nil {
		return domain.Request{}, err
	}
	return s.mutate(ctx, actor, in.RequestID, domain.Note(in.Message), func(_, _ domain.Request) mutationAudit {
		return mutationAudit{action: AuditActionAddNote}
	})
}

// ListAuditEntries lists audit rows for one in-scope request.
func (s *Service) ListAuditEntries(ctx context.Context, actor domain.ActingUser, requestID string) ([]domain.AuditEntry, error) {
	req, err := s.loadAuthorized(ctx, actor, requestID, domain.OperationRead)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditEntries(ctx, req.ID)
}

// SLACompliance reports SLA outcomes over closed requests in the actor's scope.
func (s *Service) SLACompliance(ctx context.Context, actor domain.ActingUser) (domain.ComplianceReport, error) {
	if err := s.authorizeOperation(actor, domain.OperationRead); err != nil {
		return domain.ComplianceReport{}, err
	}
	requests, err := s.repo.ListClosedRequests(ctx, domain.ScopeFilter(actor))
	if err != nil {
		return domain.ComplianceReport{}, err
	}
	return domain.Compliance(requests, s.clock()), nil
}

// SweepResult summarizes one on-demand reconciliation pass.
type SweepResult struct {
	Examined  int
	Escalated int
	Breached  int
	Conflicts int
}

// EscalateDue reconciles every open request once.
func (s *Service) EscalateDue(ctx context.Context) (SweepResult, error) {
	requests, err := s.repo.ListOpenRequests(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Examined++
		next, records, changed := domain.Reconcile(req, s.clock())
		if !changed {
			continue
		}
		if err := s.commitReconcile(ctx, req, next, records); err != nil {
			if errors.Is(err, ErrConflict) {
				result.Conflicts++
				continue
			}
			return result, err
		}
		for _, rec := range records {
			switch rec.Kind {
			case domain.ChangeKindEscalation:
				result.Escalated++
			case domain.ChangeKindSLABreach:
				result.Breached++
			}
		}
	}
	return result, nil
}

// reconcileScope persists due escalation and SLA refreshes for open requests
// in scope, so list filters and totals see post-read state.
func (s *Service) reconcileScope(ctx context.Context, scope domain.Scope) error {
	open, err := s.repo.ListOpenRequests(ctx)
	if err != nil {
		return err
	}
	for _, req := range open {
		if !scope.Matches(req) {
			continue
		}
		if _, err := s.reconcile(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// reconcile applies due escalation and SLA refresh, persisting any change.
// A lost race returns the winner's snapshot instead.
func (s *Service) reconcile(ctx context.Context, req domain.Request) (domain.Request, error) {
	next, records, changed := domain.Reconcile(req, s.clock())
	if !changed {
		return req, nil
	}
	if err := s.commitReconcile(ctx, req, next, records); err != nil {
		if errors.Is(err, ErrConflict) {
			return s.repo.GetRequest(ctx, req.ID)
		}
		return domain.Request{}, err
	}
	return next, nil
}

// commitReconcile persists a system-originated refresh.
func (s *Service) commitReconcile(ctx context.Context, before, after domain.Request, records []domain.ChangeRecord) error {
	s.stampRecords(records)
	if err := s.repo.CommitRequest(ctx, RequestWrite{
		Request:           after,
		ExpectedUpdatedAt: before.UpdatedAt,
		Records:           records,
	}); err != nil {
		return err
	}
	s.observer.RecordsCommitted(after, records)
	return nil
}

// mutationAudit describes the audit side effects of one admin mutation.
type mutationAudit struct {
	action     string
	details    string
	assignment *domain.Assignment
}

// mutate loads, reconciles, applies, and commits one user intent atomically.
func (s *Service) mutate(ctx context.Context, actor domain.ActingUser, requestID string, intent domain.Intent, audit func(before, after domain.Request) mutationAudit) (domain.Request, error) {
	op, err := domain.IntentOperation(intent.Kind)
	if err != nil {
		return domain.Request{}, err
	}
	current, err := s.loadAuthorized(ctx, actor, requestID, op)
	if err != nil {
		return domain.Request{}, err
	}

	now := s.clock()
	reconciled, records, _ := domain.Reconcile(current, now)
	next, applied, err := domain.Apply(reconciled, actor, intent, now)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			s.observer.AccessDenied(op)
		}
		return domain.Request{}, err
	}
	records = append(records, applied...)
	s.stampRecords(records)

	effects := audit(reconciled, next)
	write := RequestWrite{
		Request:           next,
		ExpectedUpdatedAt: current.UpdatedAt,
		Records:           records,
		Audit: &domain.AuditEntry{
			ID:         s.idGen(),
			ActorID:    actor.ID,
			Action:     effects.action,
			EntityType: AuditEntityServiceRequest,
			EntityID:   next.ID,
			Details:    effects.details,
			CreatedAt:  now.UTC(),
		},
	}
	if effects.assignment != nil {
		assignment := *effects.assignment
		assignment.ID = s.idGen()
		assignment.CreatedAt = now.UTC()
		write.Assignment = &assignment
	}
	if err := s.repo.CommitRequest(ctx, write); err != nil {
		return domain.Request{}, err
	}
	s.observer.RecordsCommitted(next, records)
	return next, nil
}

// loadAuthorized loads one request and applies the actor's operation and scope checks.
func (s *Service) loadAuthorized(ctx context.Context, actor domain.ActingUser, requestID string, op domain.Operation) (domain.Request, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return domain.Request{}, fmt.Errorf("request id is required: %w", ErrInvalidInput)
	}
	if err := s.authorizeOperation(actor, op); err != nil {
		return domain.Request{}, err
	}
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	if err := domain.Authorize(actor, req); err != nil {
		s.observer.AccessDenied(op)
		return domain.Request{}, err
	}
	return req, nil
}

// authorizeOperation applies the role check and reports denials.
func (s *Service) authorizeOperation(actor domain.ActingUser, op domain.Operation) error {
	if err := domain.AuthorizeOperation(actor, op); err != nil {
		s.observer.AccessDenied(op)
		return err
	}
	return nil
}

// stampRecords assigns ids to freshly produced change records.
func (s *Service) stampRecords(records []domain.ChangeRecord) {
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = s.idGen()
		}
	}
}
