package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Role identifies what an authenticated user may see and do.
type Role string

// Role values.
const (
	RoleCitizen        Role = "citizen"
	RoleDistrictAdmin  Role = "district_admin"
	RoleMunicipalAdmin Role = "municipal_admin"
	RoleStaff          Role = "staff"
)

// validRoles stores supported roles.
var validRoles = []Role{RoleCitizen, RoleDistrictAdmin, RoleMunicipalAdmin, RoleStaff}

// NormalizeRole canonicalizes a role value.
func NormalizeRole(r Role) Role {
	return Role(strings.TrimSpace(strings.ToLower(string(r))))
}

// IsValidRole reports whether the role is supported.
func IsValidRole(r Role) bool {
	return slices.Contains(validRoles, NormalizeRole(r))
}

// ActingUser is the already-authenticated caller of an engine operation.
type ActingUser struct {
	ID             string
	Name           string
	Role           Role
	MunicipalityID string
	DistrictID     string
}

// NewActingUser validates the role-dependent organizational binding.
func NewActingUser(id, name string, role Role, municipalityID, districtID string) (ActingUser, error) {
	actor := ActingUser{
		ID:             strings.TrimSpace(id),
		Name:           strings.TrimSpace(name),
		Role:           NormalizeRole(role),
		MunicipalityID: strings.TrimSpace(municipalityID),
		DistrictID:     strings.TrimSpace(districtID),
	}
	if actor.ID == "" {
		return ActingUser{}, ErrInvalidID
	}
	if !IsValidRole(actor.Role) {
		return ActingUser{}, ErrInvalidRole
	}
	if actor.MunicipalityID == "" {
		return ActingUser{}, fmt.Errorf("municipality binding is required: %w", ErrInvalidBinding)
	}
	switch actor.Role {
	case RoleDistrictAdmin, RoleStaff:
		if actor.DistrictID == "" {
			return ActingUser{}, fmt.Errorf("%s requires a district binding: %w", actor.Role, ErrInvalidBinding)
		}
	case RoleMunicipalAdmin, RoleCitizen:
		actor.DistrictID = ""
	}
	return actor, nil
}

// ScopeKind identifies the organizational field a scope constrains.
type ScopeKind string

// ScopeKind values.
const (
	ScopeNone         ScopeKind = "none"
	ScopeMunicipality ScopeKind = "municipality"
	ScopeDistrict     ScopeKind = "district"
)

// Scope is the set of requests one actor may see.
//
// Storage adapters translate it into a query filter and Authorize evaluates
// Matches, so the list path and the single-entity guard share one definition.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Matches reports whether the request falls inside the scope.
func (s Scope) Matches(req Request) bool {
	switch s.Kind {
	case ScopeMunicipality:
		return s.ID != "" && req.MunicipalityID == s.ID
	case ScopeDistrict:
		return s.ID != "" && req.DistrictID == s.ID
	default:
		return false
	}
}

// IsEmpty reports whether the scope can never match a request.
func (s Scope) IsEmpty() bool {
	return (s.Kind != ScopeMunicipality && s.Kind != ScopeDistrict) || s.ID == ""
}

// scopeResolvers selects the scope predicate per role.
// Citizens have no authenticated scope; they use tracking-code lookup instead.
var scopeResolvers = map[Role]func(ActingUser) Scope{
	RoleMunicipalAdmin: func(u ActingUser) Scope { return Scope{Kind: ScopeMunicipality, ID: u.MunicipalityID} },
	RoleDistrictAdmin:  func(u ActingUser) Scope { return Scope{Kind: ScopeDistrict, ID: u.DistrictID} },
	RoleStaff:          func(u ActingUser) Scope { return Scope{Kind: ScopeDistrict, ID: u.DistrictID} },
}

// ScopeFilter returns the visibility scope of the actor.
func ScopeFilter(user ActingUser) Scope {
	resolve, ok := scopeResolvers[NormalizeRole(user.Role)]
	if !ok {
		return Scope{Kind: ScopeNone}
	}
	scope := resolve(user)
	if scope.IsEmpty() {
		return Scope{Kind: ScopeNone}
	}
	return scope
}

// Authorize rejects access to a request outside the actor's scope.
func Authorize(user ActingUser, req Request) error {
	if !ScopeFilter(user).Matches(req) {
		return ErrForbidden
	}
	return nil
}

// Operation is a class of action an actor performs on requests.
type Operation string

// Operation values.
const (
	OperationRead           Operation = "read"
	OperationStatusChange   Operation = "status_change"
	OperationPriorityChange Operation = "priority_change"
	OperationAssignment     Operation = "assignment"
	OperationNote           Operation = "note"
)

// operationRoles stores which roles may perform each operation class.
var operationRoles = map[Operation][]Role{
	OperationRead:           {RoleDistrictAdmin, RoleMunicipalAdmin, RoleStaff},
	OperationStatusChange:   {RoleDistrictAdmin, RoleMunicipalAdmin, RoleStaff},
	OperationNote:           {RoleDistrictAdmin, RoleMunicipalAdmin, RoleStaff},
	OperationPriorityChange: {RoleDistrictAdmin, RoleMunicipalAdmin},
	OperationAssignment:     {RoleDistrictAdmin, RoleMunicipalAdmin},
}

// AuthorizeOperation rejects roles not allowed to perform the operation class.
func AuthorizeOperation(user ActingUser, op Operation) error {
	if !slices.Contains(operationRoles[op], NormalizeRole(user.Role)) {
		return fmt.Errorf("%s may not perform %s: %w", NormalizeRole(user.Role), op, ErrRoleForbidden)
	}
	return nil
}

// AuthorizeRequest combines the operation-class and scope checks.
func AuthorizeRequest(user ActingUser, req Request, op Operation) error {
	if err := AuthorizeOperation(user, op); err != nil {
		return err
	}
	return Authorize(user, req)
}
