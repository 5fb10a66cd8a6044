package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// Colours follow the TUI palette.
var (
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
	colourMuted   = lipgloss.Color("#6C7086")
	colourPrimary = lipgloss.Color("#7C3AED")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	labelStyle   = lipgloss.NewStyle().Width(12).Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// statusStyle picks a colour for a job status.
func statusStyle(status domain.JobStatus) lipgloss.Style {
	switch status {
	case domain.JobSuccess, domain.JobSuccessEmpty:
		return successStyle
	case domain.JobCompletedWithIssues:
		return warningStyle
	default:
		return errorStyle
	}
}

// printReport writes a job report in the long form.
func printReport(cmd *cobra.Command, r *domain.JobReport) {
	cmd.Println(titleStyle.Render(r.Name))
	row := func(label, value string) {
		cmd.Println(labelStyle.Render(label) + value)
	}
	row("Status", statusStyle(r.Status).Render(string(r.Status)))
	if r.Source != "" && r.Source != r.Name {
		row("Source", r.Source)
	}
	row("Items", fmt.Sprintf("%d total, %d ok, %d failed, %d skipped",
		r.Summary.Total, r.Summary.Successful, r.Summary.Failed, r.Summary.Skipped))
	if r.Summary.OutageInterrupted {
		row("Outage", errorStyle.Render("interrupted by connection outage"))
	}
	if r.Message != "" {
		row("Message", r.Message)
	}
	if d := r.Duration(); d > 0 {
		row("Duration", d.Round(time.Millisecond).String())
	}
	if r.ID != "" {
		row("Run", mutedStyle.Render(r.ID))
	}
}

// reportLine renders a job report as a single history line.
func reportLine(r *domain.JobReport) string {
	started := "-"
	if !r.StartedAt.IsZero() {
		started = r.StartedAt.Local().Format("2006-01-02 15:04:05")
	}
	parts := []string{
		mutedStyle.Render(started),
		fmt.Sprintf("%-16s", r.Kind),
		statusStyle(r.Status).Render(fmt.Sprintf("%-32s", r.Status)),
		fmt.Sprintf("%d/%d ok", r.Summary.Successful, r.Summary.Total),
		r.Name,
	}
	return strings.Join(parts, "  ")
}

// reportError turns a configuration failure into a command error.
func reportError(r *domain.JobReport) error {
	if r.Status != domain.JobErrorConfig {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrConfig, r.Message)
}
