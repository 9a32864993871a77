package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"citydigest/internal/config"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "citydigest",
		Short: "citydigest curates NYC news, alerts, events, and deals into a daily email digest.",
		Long: `citydigest pulls from the city's feeds and listings, scores and
deduplicates what it finds, and assembles a short ranked digest worth
reading over coffee.

Run 'citydigest digest' to generate one, 'citydigest health' to check
your sources, or 'citydigest serve' to expose the cron trigger endpoint.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.citydigest.yaml)")

	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewHealthCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewPreviewCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}
