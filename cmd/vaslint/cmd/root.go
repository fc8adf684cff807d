package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vaslint",
	Short: "Offline diagnostics for Class of Service, Roles, and Views definitions",
	Long: `vaslint loads a directory of LDIF-like fixture entries and builds the
same COS, Roles, and Views snapshots the virtual attribute subsystem builds
at runtime, without a live backend, reporting any InvalidDefinition or
FilterParseError diagnostics it finds.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
