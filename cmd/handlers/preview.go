package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"citydigest/internal/tui"
)

// NewPreviewCmd creates the preview command for browsing the latest digest
func NewPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Browse the most recent digest in the terminal",
		Long:  `Open the latest generated digest in an interactive terminal viewer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			digest, err := a.store.LatestDigest(ctx)
			if err != nil {
				return fmt.Errorf("failed to load latest digest: %w", err)
			}
			if digest == nil {
				return fmt.Errorf("no digest found, run 'citydigest digest' first")
			}

			tui.StartTUI(*digest)
			return nil
		},
	}
}
