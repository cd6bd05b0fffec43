package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"event-analytics/internal/analytics"
)

// FunnelReport is the serialized form of an optimized funnel.
type FunnelReport struct {
	Event            string                        `json:"event,omitempty" yaml:"event,omitempty"`
	Stages           []analytics.FunnelStageResult `json:"stages" yaml:"stages"`
	TotalRecoverable float64                       `json:"total_recoverable" yaml:"total_recoverable"`
}

// NewFunnelReport totals the recoverable counts of the stages.
func NewFunnelReport(event string, stages []analytics.FunnelStageResult) FunnelReport {
	report := FunnelReport{Event: event, Stages: stages}
	for _, stage := range stages {
		report.TotalRecoverable += stage.RecoverableCount
	}
	return report
}

// RenderFunnel writes a funnel report in the requested format.
func RenderFunnel(w io.Writer, format Format, report FunnelReport, colored bool) error {
	if format != FormatText {
		return encode(w, format, report)
	}

	title := "Funnel"
	if report.Event != "" {
		title = fmt.Sprintf("Funnel %s", report.Event)
	}
	writeTitle(w, title, colored)
	fmt.Fprintln(w)

	rows := make([][]string, len(report.Stages))
	for i, stage := range report.Stages {
		gap := fmt.Sprintf("%.2f", stage.Gap)
		if stage.Gap > 0 {
			gap = paint(gap, colored, color.FgRed)
		}
		rows[i] = []string{
			stage.StageID,
			formatNumber(stage.ObservedCount),
			fmt.Sprintf("%.2f%%", stage.ObservedRate),
			fmt.Sprintf("%.2f%%", stage.BenchmarkRate),
			gap,
			formatNumber(stage.RecoverableCount),
		}
	}
	writeTable(w, []string{"stage", "count", "observed", "benchmark", "gap", "recoverable"}, rows)
	fmt.Fprintf(w, "Total recoverable: %s\n", formatNumber(report.TotalRecoverable))
	return nil
}
