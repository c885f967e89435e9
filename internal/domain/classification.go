package domain

import (
	"slices"
	"strings"
)

// Category is the department-facing classification of a request.
type Category string

// Category values.
const (
	CategoryLighting Category = "lighting"
	CategoryWater    Category = "water"
	CategoryWaste    Category = "waste"
	CategoryRoads    Category = "roads"
	CategoryOther    Category = "other"
)

// validCategories stores supported categories in display order.
var validCategories = []Category{
	CategoryLighting,
	CategoryWater,
	CategoryWaste,
	CategoryRoads,
	CategoryOther,
}

// Categories returns every supported category.
func Categories() []Category {
	return append([]Category(nil), validCategories...)
}

// NormalizeCategory canonicalizes a category value.
func NormalizeCategory(c Category) Category {
	return Category(strings.TrimSpace(strings.ToLower(string(c))))
}

// IsValidCategory reports whether the category is supported.
func IsValidCategory(c Category) bool {
	return slices.Contains(validCategories, NormalizeCategory(c))
}

// Priority is an ordered urgency level.
type Priority string

// Priority values, lowest first.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// priorityOrder stores priorities from low to urgent.
var priorityOrder = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// Priorities returns every priority from low to urgent.
func Priorities() []Priority {
	return append([]Priority(nil), priorityOrder...)
}

// NormalizePriority canonicalizes a priority value.
func NormalizePriority(p Priority) Priority {
	return Priority(strings.TrimSpace(strings.ToLower(string(p))))
}

// IsValidPriority reports whether the priority is supported.
func IsValidPriority(p Priority) bool {
	return slices.Contains(priorityOrder, NormalizePriority(p))
}

// Rank returns the position of p in the low→urgent order, or -1 when unknown.
func (p Priority) Rank() int {
	return slices.Index(priorityOrder, NormalizePriority(p))
}

// Status is the lifecycle stage of a request.
type Status string

// Status values.
const (
	StatusSubmitted  Status = "submitted"
	StatusReceived   Status = "received"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// validStatuses stores every status in lifecycle order.
var validStatuses = []Status{
	StatusSubmitted,
	StatusReceived,
	StatusInProgress,
	StatusCompleted,
	StatusRejected,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), validStatuses...)
}

// NormalizeStatus canonicalizes a status value.
func NormalizeStatus(s Status) Status {
	return Status(strings.TrimSpace(strings.ToLower(string(s))))
}

// IsValidStatus reports whether the status is supported.
func IsValidStatus(s Status) bool {
	return slices.Contains(validStatuses, NormalizeStatus(s))
}

// IsTerminal reports whether no further transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// SLAStatus is the derived health of a request against its deadline.
type SLAStatus string

// SLAStatus values.
const (
	SLAStatusMet      SLAStatus = "met"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusBreached SLAStatus = "breached"
)
