package main

import (
	"fmt"
	"os"

	"github.com/benvon/tubecompanion/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "tubecompanion-configure",
		Short:        "Administration tool for the TubeCompanion API",
		Long:         "CLI tool for migrations, user plans, usage reports and provider settings",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewPlanCmd())
	rootCmd.AddCommand(commands.NewUsageCmd())
	rootCmd.AddCommand(commands.NewPricingCmd())
	rootCmd.AddCommand(commands.NewOIDCCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
