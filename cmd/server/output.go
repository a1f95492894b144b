package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/archhealth/backend-go/internal/domain"
)

func writeJSON(w io.Writer, report *domain.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeTable(w io.Writer, report *domain.AnalysisReport, failed []string) {
	fmt.Fprintf(w, "\n%s %s\n", text.FgBlue.Sprint("Account:"), report.TenantID)
	fmt.Fprintf(w, "%s %s\n", text.FgBlue.Sprint("Overall:"),
		colorScore(report.OverallScore, fmt.Sprintf("%.1f (%s)", report.OverallScore, report.OverallRating)))
	if len(failed) > 0 {
		fmt.Fprintf(w, "%s %s\n", text.FgYellow.Sprint("Unavailable sources:"), strings.Join(failed, ", "))
	}

	pillars := table.NewWriter()
	pillars.SetOutputMirror(w)
	pillars.SetTitle("Pillar Scores")
	pillars.AppendHeader(table.Row{"Pillar", "Score", "Rating", "Summary"})
	for _, p := range domain.Pillars {
		ps, ok := report.Pillars[p]
		if !ok {
			continue
		}
		pillars.AppendRow(table.Row{string(p), colorScore(ps.Score, fmt.Sprintf("%.1f", ps.Score)), ps.Rating, ps.Description})
	}
	pillars.SetStyle(table.StyleRounded)
	pillars.Render()

	costs := table.NewWriter()
	costs.SetOutputMirror(w)
	costs.SetTitle("Top Services by Cost")
	costs.AppendHeader(table.Row{"Service", "Cost (USD)"})
	for _, sc := range report.Cost.TopServices {
		costs.AppendRow(table.Row{sc.Service, fmt.Sprintf("$%.2f", sc.Cost)})
	}
	costs.AppendFooter(table.Row{"Total", fmt.Sprintf("$%.2f", report.Cost.TotalMonthlyCost)})
	costs.SetStyle(table.StyleRounded)
	costs.Render()

	if len(report.Recommendations) > 0 {
		recs := table.NewWriter()
		recs.SetOutputMirror(w)
		recs.SetTitle("Recommendations")
		recs.AppendHeader(table.Row{"Priority", "Category", "Title", "Effort", "Savings"})
		for _, r := range report.Recommendations {
			savings := "-"
			if r.PotentialSavings > 0 {
				savings = fmt.Sprintf("$%.2f", r.PotentialSavings)
			}
			recs.AppendRow(table.Row{colorPriority(r.Priority), r.Category, r.Title, r.Effort, savings})
		}
		recs.SetStyle(table.StyleRounded)
		recs.Render()
	}

	if report.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\n%s\n", report.ExecutiveSummary)
	}
}

func colorScore(score float64, s string) string {
	switch {
	case score >= 80:
		return text.FgGreen.Sprint(s)
	case score >= 60:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgRed.Sprint(s)
	}
}

func colorPriority(p domain.Priority) string {
	switch p {
	case domain.PriorityCritical:
		return text.FgRed.Sprint(p)
	case domain.PriorityHigh:
		return text.FgHiRed.Sprint(p)
	case domain.PriorityMedium:
		return text.FgYellow.Sprint(p)
	default:
		return text.FgCyan.Sprint(p)
	}
}
