// Command vaslint is a standalone offline diagnostic tool built on top of
// the VAS packages (spec.md §6 names the subsystem itself as carrying no
// CLI; this tool sits outside that in-process contract, see SPEC_FULL.md
// §10).
package main

import "github.com/389ds/389-ds-base-sub010/cmd/vaslint/cmd"

func main() {
	cmd.Execute()
}
