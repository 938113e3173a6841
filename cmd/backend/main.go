package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitforge/fitforge/cmd/backend/commands"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fitforge",
		Short: "FitForge - Multi-agent fitness assistant backend",
		Long: `FitForge - Multi-agent fitness assistant backend

An HTTP gateway that routes fitness questions to specialized agents
(trainer, nutrition, recovery) with scoped authorization, wearable
metric integration, and conversational history.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(commands.ServeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("FitForge version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
