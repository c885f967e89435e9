package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	servercommon "github.com/hylla/civitas/internal/adapters/server/common"
)

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	reportHeadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	reportCellStyle  = lipgloss.NewStyle().Padding(0, 1)
	rateGoodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#02BA84"))
	rateWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	rateBadStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672"))
)

// renderComplianceReport formats one compliance view as a titled table.
func renderComplianceReport(actorName string, view servercommon.ComplianceView) string {
	var b strings.Builder
	b.WriteString(reportTitleStyle.Render(fmt.Sprintf("SLA compliance for %s", actorName)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d closed, %d within deadline, rate %s\n", view.Closed, view.Met, styleRate(view.Rate)))
	if view.Closed == 0 {
		b.WriteString("no closed requests yet")
		return b.String()
	}

	rows := make([][]string, 0, len(view.ByCategory))
	for _, bucket := range view.ByCategory {
		rows = append(rows, []string{
			bucket.Category,
			strconv.Itoa(bucket.Total),
			strconv.Itoa(bucket.Met),
			strconv.Itoa(bucket.Breached),
			styleRate(bucket.Rate),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("Category", "Closed", "Met", "Breached", "Rate").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return reportHeadStyle
			}
			return reportCellStyle
		})
	b.WriteString(t.String())
	return b.String()
}

// styleRate colors a percentage by how close it is to full compliance.
func styleRate(rate int) string {
	text := fmt.Sprintf("%d%%", rate)
	switch {
	case rate >= 90:
		return rateGoodStyle.Render(text)
	case rate >= 70:
		return rateWarnStyle.Render(text)
	default:
		return rateBadStyle.Render(text)
	}
}
