// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl

import (
	"database/sql"
	"strconv"

	"github.com/canonical/sqltmpl/internal/render"
	"github.com/canonical/sqltmpl/value"
)

// Placeholder formats the token written into rendered SQL for the n-th
// bound argument, counting from 1. The style depends on the database driver.
type Placeholder = render.Placeholder

// PlaceholderFunc adapts a function to the [Placeholder] interface.
type PlaceholderFunc = render.PlaceholderFunc

type question struct{}

func (question) Placeholder(int) string { return "?" }

// numbered writes a fixed prefix followed by the argument number.
type numbered string

func (p numbered) Placeholder(n int) string { return string(p) + strconv.Itoa(n) }

// named writes @<prefix><n>. Arguments rendered with it are passed to the
// driver as sql.NamedArg values.
type named string

func (p named) Placeholder(n int) string { return "@" + string(p) + strconv.Itoa(n) }

var (
	// Question writes "?" for every argument (SQLite, MySQL).
	Question Placeholder = question{}
	// Dollar writes $1, $2, ... (PostgreSQL).
	Dollar Placeholder = numbered("$")
	// Colon writes :1, :2, ... (Oracle, SQLite).
	Colon Placeholder = numbered(":")
	// AtP writes @p1, @p2, ... (SQL Server).
	AtP Placeholder = numbered("@p")
)

// Named returns a placeholder style that writes @<prefix>1, @<prefix>2, ...
// When it is used with a [DB], arguments are passed as [sql.Named] values.
// The prefix must start with a letter.
func Named(prefix string) Placeholder {
	return named(prefix)
}

// PlaceholderByName returns one of the predefined styles by name: question,
// dollar, colon, atp or named (which uses the prefix "p").
func PlaceholderByName(name string) (Placeholder, bool) {
	switch name {
	case "question":
		return Question, true
	case "dollar":
		return Dollar, true
	case "colon":
		return Colon, true
	case "atp":
		return AtP, true
	case "named":
		return Named("p"), true
	}
	return nil, false
}

// QueryArgs converts rendered arguments into arguments for database/sql. For
// a [Named] style they are wrapped in [sql.Named] with the matching name.
func QueryArgs(ph Placeholder, args []value.Value) []any {
	out := make([]any, len(args))
	prefix, isNamed := ph.(named)
	for i, arg := range args {
		if isNamed {
			out[i] = sql.Named(string(prefix)+strconv.Itoa(i+1), arg)
		} else {
			out[i] = arg
		}
	}
	return out
}
