package domain

import (
	"math"
	"time"
)

// ComplianceBucket aggregates closed-request outcomes for one category.
type ComplianceBucket struct {
	Total    int
	Met      int
	Breached int
	// Rate is the rounded percentage of closed requests that met their SLA.
	Rate int
}

// ComplianceReport summarizes SLA outcomes over closed requests.
type ComplianceReport struct {
	Closed     int
	Met        int
	Rate       int
	ByCategory map[Category]ComplianceBucket
}

// Compliance evaluates closed requests against their deadlines.
// With no closed requests the overall rate is 100; empty categories report 0.
func Compliance(requests []Request, now time.Time) ComplianceReport {
	report := ComplianceReport{
		Rate:       100,
		ByCategory: make(map[Category]ComplianceBucket, len(validCategories)),
	}
	for _, category := range validCategories {
		report.ByCategory[category] = ComplianceBucket{}
	}

	for _, req := range requests {
		if !req.IsClosed() {
			continue
		}
		status := ComputeSLAStatus(req.slaInput(), now)
		bucket := report.ByCategory[req.Category]
		bucket.Total++
		report.Closed++
		switch status {
		case SLAStatusMet:
			bucket.Met++
			report.Met++
		case SLAStatusBreached:
			bucket.Breached++
		}
		report.ByCategory[req.Category] = bucket
	}

	if report.Closed > 0 {
		report.Rate = percent(report.Met, report.Closed)
	}
	for category, bucket := range report.ByCategory {
		if bucket.Total > 0 {
			bucket.Rate = percent(bucket.Met, bucket.Total)
			report.ByCategory[category] = bucket
		}
	}
	return report
}

// percent returns part/total as a rounded whole percentage.
func percent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}
