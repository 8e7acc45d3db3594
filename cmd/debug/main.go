package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run the custom resource handlers locally",
	Long: `debug invokes a custom resource handler outside Lambda against real AWS
clients, using an event fixture instead of a CloudFormation request.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newInvokeCmd())
	rootCmd.AddCommand(newOutcomesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
