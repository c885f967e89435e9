package domain

import (
	"errors"
	"fmt"
)

// Business-rule failures returned by the lifecycle and policy engine.
var (
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrNoOpChange           = errors.New("no-op change")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidAssignee      = errors.New("assignee is not staff in the request district")
	ErrInvalidIntent        = errors.New("invalid intent")
)

// ErrRoleForbidden marks denials of an operation class, as opposed to scope
// denials of one request. It matches ErrForbidden.
var ErrRoleForbidden = fmt.Errorf("role not permitted: %w", ErrForbidden)

// Validation failures for entity construction.
var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidDescription  = errors.New("invalid description")
	ErrInvalidTrackingCode = errors.New("invalid tracking code")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrInvalidBinding      = errors.New("invalid organizational binding")
)
