package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"citydigest/internal/render"
)

// NewDigestCmd creates the digest command for generating a digest run
func NewDigestCmd() *cobra.Command {
	var (
		slot      string
		userID    string
		outputDir string
		noHeal    bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run the curation pipeline and write a digest",
		Long: `Run the full pipeline: check source health, select and score
candidates, curate the final set, optionally personalize it, and write
the digest to a markdown file.

Examples:
  # Morning digest with defaults
  citydigest digest

  # Evening digest personalized for one user
  citydigest digest --slot evening --user u1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, slot, userID, outputDir, noHeal)
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "morning", "digest slot (morning or evening)")
	cmd.Flags().StringVar(&userID, "user", "", "personalize for this user id")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&noHeal, "no-heal", false, "skip self-healing of stale sources")

	return cmd
}

func runDigest(cmd *cobra.Command, slot, userID, outputDir string, noHeal bool) error {
	if slot != "morning" && slot != "evening" {
		return fmt.Errorf("slot must be morning or evening, got %q", slot)
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.runOptions()
	opts.Slot = slot
	if userID != "" {
		opts.UserID = userID
		opts.Personalize = true
	}
	if noHeal {
		opts.AutoHeal = false
	}

	result := a.orch.Run(ctx, opts)

	fmt.Fprintf(os.Stderr, "Health: %s (%.0f%%)\n", result.Health.Status, result.Health.OverallHealth)
	fmt.Fprintf(os.Stderr, "Selected %d of %d evaluated items\n",
		result.Selection.Stats.TotalSelected, result.Selection.Stats.TotalEvaluated)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  [%s] %s: %s\n", e.Severity, e.Stage, e.Message)
	}

	if result.Digest == nil {
		return fmt.Errorf("pipeline aborted before producing a digest")
	}

	if outputDir == "" {
		outputDir = a.cfg.Output.Directory
	}
	path, err := render.WriteDigestFile(*result.Digest, outputDir)
	if err != nil {
		return err
	}
	fmt.Printf("Digest written to %s (%d items)\n", path, len(result.Digest.Items))

	if !result.Success {
		return fmt.Errorf("pipeline finished with unrecovered errors")
	}
	return nil
}
