package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for SecScan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secscan",
		Short: "Web vulnerability scanner for SQL injection, XSS and CSRF",
		Long: `SecScan scans web pages for common vulnerabilities.

For every seed URL it fetches the page, extracts links, forms and query
parameters, and runs three detectors:
- SQL injection: database error signatures after injecting payloads
- Cross-site scripting: payloads reflected verbatim in the response
- Missing anti-CSRF token: forms without a recognizable token field

Only scan systems you are authorized to test.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
