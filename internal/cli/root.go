// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package cli implements the sqltmpl command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	// Drivers available to the query and exec commands.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/sqltmpl"
	"github.com/canonical/sqltmpl/value"
)

// Version is set at build time.
var Version = "0.1.0"

type configKey struct{}

type loggerKey struct{}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sqltmpl",
		Short: "Render and run SQL templates",
		Long: `sqltmpl renders SQL templates with control flow into SQL text and
query arguments, and runs them against a database.

Settings are read from ./sqltmpl.yaml (or --config), then from SQLTMPL_*
environment variables, then from flags.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			flags := cmd.Flags()
			cfgFile, _ := flags.GetString("config")
			cfg, err := LoadConfig(cfgFile, flags)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			sqltmpl.SetLogger(logger)

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./"+DefaultConfigFile+")")
	pf.String("driver", "", "database driver (sqlite3|pgx|mysql)")
	pf.String("dsn", "", "data source name passed to the driver")
	pf.StringP("placeholder", "p", "", "placeholder style (question|dollar|colon|atp|named)")
	pf.StringP("args", "a", "", "YAML or JSON file holding the template argument, - for stdin")
	pf.BoolP("verbose", "v", false, "log debug records to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"sqlite3", "pgx", "mysql"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("placeholder", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"question", "dollar", "colon", "atp", "named"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newExecCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, _ := LoadConfig("", nil)
	return cfg
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// compileFile reads and compiles a template file. Parse errors are reported
// as file:line: message.
func compileFile(path string) (*sqltmpl.Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := sqltmpl.Compile(string(src))
	if err != nil {
		var pe *sqltmpl.ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%s:%d: %w", path, pe.Line, pe.Err)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// loadArgs reads the template argument from a YAML or JSON file. With no
// file the argument is an empty map.
func loadArgs(cmd *cobra.Command, path string) (value.Value, error) {
	if path == "" {
		return value.Map(), nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return value.Null(), fmt.Errorf("cannot read arguments: %w", err)
	}
	arg, err := value.FromYAML(data)
	if err != nil {
		return value.Null(), fmt.Errorf("cannot read arguments from %s: %w", path, err)
	}
	return arg, nil
}

// prepare compiles the template at path and loads the configured argument
// and placeholder style.
func prepare(cmd *cobra.Command, path string) (*sqltmpl.Template, value.Value, sqltmpl.Placeholder, error) {
	cfg := GetConfig(cmd.Context())
	t, err := compileFile(path)
	if err != nil {
		return nil, value.Null(), nil, err
	}
	arg, err := loadArgs(cmd, cfg.Args)
	if err != nil {
		return nil, value.Null(), nil, err
	}
	ph, err := cfg.PlaceholderStyle()
	if err != nil {
		return nil, value.Null(), nil, err
	}
	return t, arg, ph, nil
}
