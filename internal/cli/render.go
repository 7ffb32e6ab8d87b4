// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRenderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render <file>",
		Short: "Render a template and print the SQL and its arguments",
		Long: `Render a template against the argument given with --args and print the
resulting SQL. When there are query arguments they follow the SQL after a
"---" line, as a YAML list in placeholder order.`,
		Example: `  # Render with numbered placeholders
  sqltmpl render find_person.sql --args person.yaml -p dollar`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}
}

func runRender(cmd *cobra.Command, path string) error {
	t, arg, ph, err := prepare(cmd, path)
	if err != nil {
		return err
	}
	stmt, args, err := t.Render(arg, ph)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, stmt)
	if len(args) == 0 {
		return nil
	}
	plain := make([]any, len(args))
	for i, a := range args {
		plain[i] = a.Interface()
	}
	out, err := yaml.Marshal(plain)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "---")
	_, err = w.Write(out)
	return err
}
