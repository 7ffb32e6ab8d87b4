// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqltmpl"
	"github.com/canonical/sqltmpl/value"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <file>",
		Short: "Run a template and print the rows it returns",
		Example: `  # Query a SQLite database
  sqltmpl query --dsn shop.db --args filter.yaml find_orders.sql

  # Query PostgreSQL and print CSV
  SQLTMPL_DSN=postgres://localhost/shop sqltmpl query --driver pgx -f csv find_orders.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0])
		},
	}
	cmd.Flags().StringP("format", "f", "", "output format (table|csv|yaml)")
	return cmd
}

func newExecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <file>",
		Short: "Run a template that returns no rows and print the rows affected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args[0])
		},
	}
}

// openDB opens the configured database.
func openDB(cfg *Config, ph sqltmpl.Placeholder) (*sqltmpl.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("no data source name: set --dsn, SQLTMPL_DSN or dsn in the config file")
	}
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s database: %w", cfg.Driver, err)
	}
	return sqltmpl.NewDB(sqldb, ph), nil
}

func runQuery(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	t, arg, ph, err := prepare(cmd, path)
	if err != nil {
		return err
	}
	db, err := openDB(cfg, ph)
	if err != nil {
		return err
	}
	defer db.PlainDB().Close()

	GetLogger(ctx).Debug("running template", "file", path, "driver", cfg.Driver)
	iter := db.Query(ctx, t, arg).Iter()
	var rows []value.Value
	for iter.Next() {
		row, err := iter.Row()
		if err != nil {
			iter.Close()
			return err
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return writeRows(cmd.OutOrStdout(), cfg.Format, iter.Columns(), rows)
}

func runExec(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	t, arg, ph, err := prepare(cmd, path)
	if err != nil {
		return err
	}
	db, err := openDB(cfg, ph)
	if err != nil {
		return err
	}
	defer db.PlainDB().Close()

	GetLogger(ctx).Debug("executing template", "file", path, "driver", cfg.Driver)
	res, err := db.Query(ctx, t, arg).Run()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
	return nil
}

func writeRows(w io.Writer, format string, cols []string, rows []value.Value) error {
	switch format {
	case "csv":
		return writeCSV(w, cols, rows)
	case "yaml":
		return writeYAML(w, rows)
	case "table", "":
		return writeTable(w, cols, rows)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeTable(w io.Writer, cols []string, rows []value.Value) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i, col := range cols {
			r[i] = formatValue(row.Lookup(col))
		}
		t.AppendRow(r)
	}
	t.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func writeCSV(w io.Writer, cols []string, rows []value.Value) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = formatValue(row.Lookup(col))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeYAML(w io.Writer, rows []value.Value) error {
	plain := make([]any, len(rows))
	for i, row := range rows {
		plain[i] = row.Interface()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return err
	}
	return enc.Close()
}

func formatValue(v value.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}
