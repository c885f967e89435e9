package app

import (
	"context"
	"time"

	"github.com/hylla/civitas/internal/domain"
)

// Repository represents the persistence port used by the service.
type Repository interface {
	CreateMunicipality(context.Context, domain.Municipality) error
	ListMunicipalities(context.Context) ([]domain.Municipality, error)
	CreateDistrict(context.Context, domain.District) error
	GetDistrict(context.Context, string) (domain.District, error)
	ListDistricts(context.Context, string) ([]domain.District, error)
	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	ListUsers(context.Context, UserFilter) ([]domain.User, error)

	CreateRequest(context.Context, domain.Request, []domain.ChangeRecord) error
	GetRequest(context.Context, string) (domain.Request, error)
	GetRequestByTrackingCode(context.Context, string) (domain.Request, error)
	TrackingCodeExists(context.Context, string) (bool, error)
	ListRequests(context.Context, RequestFilter) ([]domain.Request, int, error)
	ListOpenRequests(context.Context) ([]domain.Request, error)
	ListClosedRequests(context.Context, domain.Scope) ([]domain.Request, error)
	CommitRequest(context.Context, RequestWrite) error

	ListChangeRecords(context.Context, string, bool) ([]domain.ChangeRecord, error)
	ListAssignments(context.Context, string) ([]domain.Assignment, error)
	ListAuditEntries(context.Context, string) ([]domain.AuditEntry, error)
}

// RequestWrite is one atomic request mutation.
//
// ExpectedUpdatedAt is the updated_at of the snapshot the mutation was computed
// from; implementations return ErrConflict when the stored row no longer matches.
type RequestWrite struct {
	Request           domain.Request
	ExpectedUpdatedAt time.Time
	Records           []domain.ChangeRecord
	Assignment        *domain.Assignment
	Audit             *domain.AuditEntry
}

// RequestFilter narrows a scoped request listing.
type RequestFilter struct {
	Scope      domain.Scope
	Status     domain.Status
	Category   domain.Category
	Priority   domain.Priority
	DistrictID string
	Page       int
	PageSize   int
}

// UserFilter narrows a user listing.
type UserFilter struct {
	MunicipalityID string
	DistrictID     string
	Role           domain.Role
}

// Observer receives lifecycle signals after they are persisted.
type Observer interface {
	RequestSubmitted(domain.Request)
	RecordsCommitted(domain.Request, []domain.ChangeRecord)
	AccessDenied(domain.Operation)
}

// noopObserver discards lifecycle signals.
type noopObserver struct{}

func (noopObserver) RequestSubmitted(domain.Request)                        {}
func (noopObserver) RecordsCommitted(domain.Request, []domain.ChangeRecord) {}
func (noopObserver) AccessDenied(domain.Operation)                          {}
