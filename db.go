// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/canonical/sqltmpl/value"
)

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

// DB runs templates on a database. Templates are rendered with the
// placeholder style of the database's driver.
type DB struct {
	sqldb *sql.DB
	ph    Placeholder
}

// NewDB creates a new [DB] from a [sql.DB]. If ph is nil, [Question] is
// used.
func NewDB(sqldb *sql.DB, ph Placeholder) *DB {
	if sqldb == nil {
		return nil
	}
	if ph == nil {
		ph = Question
	}
	return &DB{sqldb: sqldb, ph: ph}
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Placeholder returns the placeholder style templates are rendered with.
func (db *DB) Placeholder() Placeholder {
	return db.ph
}

// substrate is an object that rendered queries can be run on, e.g. a sql.DB
// or a sql.Tx.
type substrate interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Query represents a rendered template ready to run on a database. It is
// designed to be run once.
type Query struct {
	ctx  context.Context
	err  error
	on   substrate
	sql  string
	args []any
}

// Iterator is used to iterate over the results of the query.
type Iterator struct {
	rows    *sql.Rows
	cols    []string
	err     error
	started bool
}

func newQuery(ctx context.Context, on substrate, ph Placeholder, t *Template, arg any) *Query {
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := value.FromGo(arg)
	if err != nil {
		return &Query{ctx: ctx, err: err}
	}
	stmt, args, err := t.Render(v, ph)
	if err != nil {
		return &Query{ctx: ctx, err: err}
	}
	return &Query{ctx: ctx, on: on, sql: stmt, args: QueryArgs(ph, args)}
}

// Query renders a template against arg and builds a query from the result.
// The argument is converted with [value.FromGo], so it may be a [value.Value],
// a map, a struct with db tags or nil. The query is run on the database when
// one of [Query.Run], [Query.Get], [Query.GetAll] or [Query.Iter] is
// executed.
func (db *DB) Query(ctx context.Context, t *Template, arg any) *Query {
	return newQuery(ctx, db.sqldb, db.ph, t, arg)
}

// SQL returns the rendered SQL and the arguments that will be passed to the
// driver. It returns the render error if there was one.
func (q *Query) SQL() (string, []any, error) {
	return q.sql, q.args, q.err
}

// Run executes the query and returns the result. Any rows returned are
// discarded.
func (q *Query) Run() (sql.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	getLogger().Debug("executing query", "sql", q.sql, "args", len(q.args))
	return q.on.ExecContext(q.ctx, q.sql, q.args...)
}

// Iter runs the query and returns an [Iterator] to go through the results
// row by row. [Iterator.Close] must be run once iteration is finished.
func (q *Query) Iter() *Iterator {
	if q.err != nil {
		return &Iterator{err: q.err}
	}
	getLogger().Debug("running query", "sql", q.sql, "args", len(q.args))
	rows, err := q.on.QueryContext(q.ctx, q.sql, q.args...)
	if err != nil {
		return &Iterator{err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &Iterator{err: err}
	}
	return &Iterator{rows: rows, cols: cols}
}

// Get runs the query and scans the first row into dest, as [sql.Rows.Scan]
// does. It returns [ErrNoRows] if no rows were found.
func (q *Query) Get(dest ...any) error {
	iter := q.Iter()
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return err
	}
	err := iter.Scan(dest...)
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetAll runs the query and returns every row as a Map from column name to
// column value, in column order. An empty result is not an error.
func (q *Query) GetAll() ([]value.Value, error) {
	rows := []value.Value{}
	iter := q.Iter()
	for iter.Next() {
		row, err := iter.Row()
		if err != nil {
			iter.Close()
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Next prepares the next row for [Iterator.Scan] or [Iterator.Row]. If an
// error occurs during iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Columns returns the column names of the result.
func (iter *Iterator) Columns() []string {
	return iter.cols
}

// Scan copies the columns of the current row into dest.
func (iter *Iterator) Scan(dest ...any) error {
	if err := iter.check(); err != nil {
		return err
	}
	if err := iter.rows.Scan(dest...); err != nil {
		return fmt.Errorf("cannot get result: %s", err)
	}
	return nil
}

// Row returns the current row as a Map from column name to value.
func (iter *Iterator) Row() (value.Value, error) {
	if err := iter.check(); err != nil {
		return value.Null(), err
	}
	raw := make([]any, len(iter.cols))
	ptrs := make([]any, len(iter.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		return value.Null(), fmt.Errorf("cannot get result: %s", err)
	}
	row := value.NewObject()
	for i, col := range iter.cols {
		v, err := value.FromGo(raw[i])
		if err != nil {
			return value.Null(), fmt.Errorf("cannot get result: column %q: %s", col, err)
		}
		row.Set(col, v)
	}
	return value.FromObject(row), nil
}

func (iter *Iterator) check() error {
	if iter.err != nil {
		return iter.err
	}
	if !iter.started {
		return fmt.Errorf("cannot get result: Next has not been called")
	}
	if iter.rows == nil {
		return fmt.Errorf("cannot get result: iteration ended")
	}
	return nil
}

// Close finishes the iteration and returns any errors encountered. Close can
// be called multiple times on the [Iterator] and the same error will be
// returned.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Err()
	if cerr := iter.rows.Close(); err == nil {
		err = cerr
	}
	iter.rows = nil
	if iter.err != nil {
		return iter.err
	}
	iter.err = err
	return err
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended
// with a [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Query renders a template against arg and builds a query that runs in the
// transaction.
func (tx *TX) Query(ctx context.Context, t *Template, arg any) *Query {
	if tx.isDone() {
		if ctx == nil {
			ctx = context.Background()
		}
		return &Query{ctx: ctx, err: ErrTXDone}
	}
	return newQuery(ctx, tx.sqltx, tx.db.ph, t, arg)
}
