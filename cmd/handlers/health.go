package handlers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"citydigest/internal/health"
)

var (
	healthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// NewHealthCmd creates the health command for checking source freshness
func NewHealthCmd() *cobra.Command {
	var heal bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check source freshness and overall health",
		Long: `Check every registered source against its expected update cadence
and print a health report. With --heal, stale sources are refreshed in
priority order before the report is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, heal)
		},
	}

	cmd.Flags().BoolVar(&heal, "heal", false, "refresh stale sources before reporting")
	return cmd
}

func runHealth(cmd *cobra.Command, heal bool) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.monitor.ProduceHealthReport(ctx, heal)

	fmt.Printf("Overall: %s  health %.0f%%  ready=%v\n\n",
		statusStyle(report.Status).Render(string(report.Status)),
		report.OverallHealth, report.ReadyForNextStage)

	for _, f := range report.Freshness {
		marker := healthyStyle.Render("fresh")
		if f.IsStale {
			marker = criticalStyle.Render("STALE")
		}
		age := "never"
		if !f.LastDataAt.IsZero() {
			age = fmt.Sprintf("%.1fh old", f.HoursOld)
		}
		fmt.Printf("  %-16s %s  %s  %s\n", f.SourceID, marker,
			dimStyle.Render(age),
			dimStyle.Render(fmt.Sprintf("%d items/24h", f.ItemCount)))
	}

	if len(report.HealingActions) > 0 {
		fmt.Println("\nHealing actions:")
		for _, action := range report.HealingActions {
			outcome := "skipped"
			if action.Executed {
				outcome = fmt.Sprintf("attempts=%d success=%v created=%d",
					action.Attempts, action.Success, action.Result.Created)
			}
			fmt.Printf("  %-16s %s\n", action.SourceID, outcome)
		}
	}

	for _, e := range report.Errors {
		fmt.Printf("  %s %s\n", degradedStyle.Render("!"), e.Message)
	}

	if report.Status == health.StatusCritical {
		return fmt.Errorf("required sources are stale")
	}
	return nil
}

func statusStyle(status health.Status) lipgloss.Style {
	switch status {
	case health.StatusHealthy:
		return healthyStyle
	case health.StatusDegraded:
		return degradedStyle
	default:
		return criticalStyle
	}
}
