package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/389ds/389-ds-base-sub010/internal/cos"
	"github.com/389ds/389-ds-base-sub010/internal/fixture"
	"github.com/389ds/389-ds-base-sub010/internal/roles"
	"github.com/389ds/389-ds-base-sub010/internal/slapi"
	"github.com/389ds/389-ds-base-sub010/internal/views"
)

var (
	fixturesDir string
	suffixFlag  string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build COS, Roles, and Views snapshots from fixtures and report diagnostics",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&fixturesDir, "fixtures", "", "directory of *.ldif fixture entries (required)")
	checkCmd.Flags().StringVar(&suffixFlag, "suffix", "", "suffix DN to evaluate definitions under (required)")
	checkCmd.MarkFlagRequired("fixtures")
	checkCmd.MarkFlagRequired("suffix")
}

// diagnostic is one reportable problem found while building a snapshot.
type diagnostic struct {
	source string // "cos", "roles", or "views"
	err    error
}

func runCheck(_ *cobra.Command, _ []string) error {
	suffix, err := slapi.ParseDN(suffixFlag)
	if err != nil {
		return fmt.Errorf("invalid --suffix %q: %w", suffixFlag, err)
	}

	backend, err := fixture.LoadDir(fixturesDir)
	if err != nil {
		return fmt.Errorf("loading fixtures: %w", err)
	}

	ctx := context.Background()
	var diags []diagnostic

	if _, err := cos.NewBuilder(backend).Build(ctx, suffix, 0); err != nil {
		diags = append(diags, diagnostic{source: "cos", err: err})
	}

	if err := checkRoles(ctx, backend, suffix); err != nil {
		diags = append(diags, diagnostic{source: "roles", err: err})
	}

	if err := views.NewCache(backend).Refresh(ctx, suffix); err != nil {
		diags = append(diags, diagnostic{source: "views", err: err})
	}

	report(diags)

	if len(diags) > 0 {
		return fmt.Errorf("%d diagnostic(s) found", len(diags))
	}
	fmt.Println("no diagnostics found")
	return nil
}

// checkRoles loads every role definition entry under suffix and validates
// each one plus the nested-role dependency graph as a whole, mirroring
// roles.SuffixRecord.Refresh without spinning up its background updater
// (spec.md §4.3).
func checkRoles(ctx context.Context, backend *fixture.Backend, suffix slapi.DN) error {
	filter, err := slapi.ParseFilter(fmt.Sprintf(
		"(|(objectClass=%s)(objectClass=%s)(objectClass=%s))",
		slapi.OCNsManagedRoleDefinition, slapi.OCNsFilteredRoleDefinition, slapi.OCNsNestedRoleDefinition,
	))
	if err != nil {
		return err
	}
	entries, err := backend.SearchSubtree(ctx, suffix, filter)
	if err != nil {
		return err
	}

	defs := make(map[string]*roles.Definition, len(entries))
	var firstErr error
	for _, e := range entries {
		def, err := roles.ParseDefinition(e)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		defs[e.DN.String()] = def
	}
	if firstErr != nil {
		return firstErr
	}

	return roles.CheckNestedCycles(defs)
}

func report(diags []diagnostic) {
	if len(diags) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tKIND\tMESSAGE")
	for _, d := range diags {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.source, kindOf(d.err), d.err)
	}
	w.Flush()
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, slapi.ErrInvalidDefinition):
		return "InvalidDefinition"
	case errors.Is(err, slapi.ErrFilterParseError):
		return "FilterParseError"
	case errors.Is(err, slapi.ErrLoopDetected):
		return "LoopDetected"
	default:
		return "Error"
	}
}
