// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Check that templates compile",
		Long: `Compile every template given and print one file:line: message for each
template that does not compile.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, paths []string) error {
	logger := GetLogger(cmd.Context())
	w := cmd.OutOrStdout()
	failed := 0
	for _, path := range paths {
		if _, err := compileFile(path); err != nil {
			failed++
			fmt.Fprintln(w, err)
			continue
		}
		logger.Debug("template ok", "file", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to compile", failed, len(paths))
	}
	return nil
}
