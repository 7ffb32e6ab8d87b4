// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Command sqltmpl renders SQL templates and runs them against a database.
package main

import (
	"os"

	"github.com/canonical/sqltmpl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
