package domain

import "time"

// DefaultSLADays applies when a (category, priority) pair has no catalog entry.
// It silently masks bad classification data, so callers should validate first.
const DefaultSLADays = 5.0

// atRiskFraction is the share of the SLA duration that counts as at risk.
const atRiskFraction = 0.25

// slaDays stores resolution budgets in days per category and priority.
var slaDays = map[Category]map[Priority]float64{
	CategoryWater:    {PriorityLow: 2, PriorityNormal: 1, PriorityHigh: 0.5, PriorityUrgent: 0.25},
	CategoryWaste:    {PriorityLow: 3, PriorityNormal: 2, PriorityHigh: 1, PriorityUrgent: 0.5},
	CategoryLighting: {PriorityLow: 5, PriorityNormal: 3, PriorityHigh: 2, PriorityUrgent: 1},
	CategoryRoads:    {PriorityLow: 10, PriorityNormal: 7, PriorityHigh: 5, PriorityUrgent: 2},
	CategoryOther:    {PriorityLow: 7, PriorityNormal: 5, PriorityHigh: 3, PriorityUrgent: 1},
}

// EscalationStep describes one rung of the auto-escalation ladder.
type EscalationStep struct {
	DwellHours float64
	Next       Priority
}

// escalationLadder stores dwell thresholds per category and priority.
// Urgent is the top of every ladder and has no entry.
var escalationLadder = map[Category]map[Priority]EscalationStep{
	CategoryWater: {
		PriorityLow:    {DwellHours: 12, Next: PriorityNormal},
		PriorityNormal: {DwellHours: 12, Next: PriorityHigh},
		PriorityHigh:   {DwellHours: 6, Next: PriorityUrgent},
	},
	CategoryWaste: {
		PriorityLow:    {DwellHours: 24, Next: PriorityNormal},
		PriorityNormal: {DwellHours: 24, Next: PriorityHigh},
		PriorityHigh:   {DwellHours: 12, Next: PriorityUrgent},
	},
	CategoryLighting: {
		PriorityLow:    {DwellHours: 48, Next: PriorityNormal},
		PriorityNormal: {DwellHours: 72, Next: PriorityHigh},
		PriorityHigh:   {DwellHours: 48, Next: PriorityUrgent},
	},
	CategoryRoads: {
		PriorityLow:    {DwellHours: 72, Next: PriorityNormal},
		PriorityNormal: {DwellHours: 120, Next: PriorityHigh},
		PriorityHigh:   {DwellHours: 72, Next: PriorityUrgent},
	},
	CategoryOther: {
		PriorityLow:    {DwellHours: 48, Next: PriorityNormal},
		PriorityNormal: {DwellHours: 72, Next: PriorityHigh},
		PriorityHigh:   {DwellHours: 48, Next: PriorityUrgent},
	},
}

// SLADays returns the resolution budget in days, falling back to DefaultSLADays.
func SLADays(category Category, priority Priority) float64 {
	byPriority, ok := slaDays[NormalizeCategory(category)]
	if !ok {
		return DefaultSLADays
	}
	days, ok := byPriority[NormalizePriority(priority)]
	if !ok {
		return DefaultSLADays
	}
	return days
}

// SLADuration returns the resolution budget as a duration.
func SLADuration(category Category, priority Priority) time.Duration {
	return daysToDuration(SLADays(category, priority))
}

// EscalationRule returns the ladder step for a classification, if any.
func EscalationRule(category Category, priority Priority) (EscalationStep, bool) {
	byPriority, ok := escalationLadder[NormalizeCategory(category)]
	if !ok {
		return EscalationStep{}, false
	}
	step, ok := byPriority[NormalizePriority(priority)]
	if !ok || step.Next == "" || step.DwellHours <= 0 {
		return EscalationStep{}, false
	}
	return step, true
}

// daysToDuration converts fractional days.
func daysToDuration(days float64) time.Duration {
	return time.Duration(days * float64(24*time.Hour))
}

// hoursToDuration converts fractional hours.
func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
