package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "billwatch",
	Short: "Track state legislation from LegiScan",
	Long: `billwatch mirrors state bills from the LegiScan API into PostgreSQL,
generates plain-language AI summaries of bill text, and serves them over HTTP.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
