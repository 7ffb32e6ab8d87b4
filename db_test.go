// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl_test

import (
	"context"
	"database/sql"
	"errors"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqltmpl"
	"github.com/canonical/sqltmpl/value"
)

type DBSuite struct{}

var _ = Suite(&DBSuite{})

type Employee struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
	Team string `db:"team"`
}

var employees = []Employee{
	{1, "Alastair", "engineering"},
	{2, "Ed", "engineering"},
	{3, "Pedro", "management"},
	{4, "Joe", "marketing"},
}

var insertEmployee = sqltmpl.MustCompile(`
insert into person (id, name, team)
values (#{id}, #{name}, #{team})`)

var selectEmployees = sqltmpl.MustCompile(`
select id, name, team from person
where:
  if team != null: AND team = #{team}
  if ids:
    AND id in (
    trim ',': for id in ids:
      if id == skip: continue
      #{id},
    )
order by id`)

// openDB returns an in-memory database holding the employees. A single
// connection is used so that every query sees the same database.
func (s *DBSuite) openDB(c *C, ph sqltmpl.Placeholder) *sqltmpl.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	sqldb.SetMaxOpenConns(1)

	db := sqltmpl.NewDB(sqldb, ph)
	_, err = db.Query(context.Background(), sqltmpl.MustCompile("create table person (id integer, name text, team text)"), nil).Run()
	c.Assert(err, IsNil)
	for _, e := range employees {
		res, err := db.Query(context.Background(), insertEmployee, e).Run()
		c.Assert(err, IsNil)
		n, err := res.RowsAffected()
		c.Assert(err, IsNil)
		c.Assert(n, Equals, int64(1))
	}
	return db
}

func (s *DBSuite) TestGetAll(c *C) {
	db := s.openDB(c, nil)
	defer db.PlainDB().Close()

	var tests = []struct {
		summary  string
		arg      any
		expected []int64
	}{{
		summary:  "no filter",
		arg:      nil,
		expected: []int64{1, 2, 3, 4},
	}, {
		summary:  "team filter",
		arg:      map[string]any{"team": "engineering"},
		expected: []int64{1, 2},
	}, {
		summary:  "id list with skip",
		arg:      map[string]any{"ids": []int{1, 3, 4}, "skip": 3},
		expected: []int64{1, 4},
	}, {
		summary:  "no match",
		arg:      map[string]any{"team": "legal"},
		expected: []int64{},
	}}
	for i, t := range tests {
		rows, err := db.Query(nil, selectEmployees, t.arg).GetAll()
		c.Assert(err, IsNil, Commentf("test %d failed (%s)", i, t.summary))
		ids := []int64{}
		for _, row := range rows {
			c.Check(row.Object().Keys(), DeepEquals, []string{"id", "name", "team"})
			ids = append(ids, row.Lookup("id").Int())
		}
		c.Check(ids, DeepEquals, t.expected, Commentf("test %d failed (%s)", i, t.summary))
	}

	rows, err := db.Query(nil, selectEmployees, map[string]any{"ids": []int{3}}).GetAll()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 1)
	c.Check(value.Equal(rows[0], value.Map(
		value.P("id", value.Int(3)),
		value.P("name", value.String("Pedro")),
		value.P("team", value.String("management")),
	)), Equals, true, Commentf("got %#v", rows[0]))
}

func (s *DBSuite) TestGet(c *C) {
	db := s.openDB(c, sqltmpl.Named("p"))
	defer db.PlainDB().Close()

	find := sqltmpl.MustCompile("select name, team from person where id = #{_}")
	var name, team string
	err := db.Query(nil, find, 2).Get(&name, &team)
	c.Assert(err, IsNil)
	c.Check(name, Equals, "Ed")
	c.Check(team, Equals, "engineering")

	err = db.Query(nil, find, 99).Get(&name, &team)
	c.Check(errors.Is(err, sqltmpl.ErrNoRows), Equals, true)
}

func (s *DBSuite) TestIter(c *C) {
	db := s.openDB(c, nil)
	defer db.PlainDB().Close()

	iter := db.Query(nil, selectEmployees, map[string]any{"team": "engineering"}).Iter()
	var names []string
	for iter.Next() {
		row, err := iter.Row()
		c.Assert(err, IsNil)
		names = append(names, row.Lookup("name").Text())
	}
	c.Assert(iter.Close(), IsNil)
	c.Check(names, DeepEquals, []string{"Alastair", "Ed"})
	c.Check(iter.Columns(), DeepEquals, []string{"id", "name", "team"})

	// Getting a result after the iteration has ended fails.
	_, err := iter.Row()
	c.Check(err, ErrorMatches, "cannot get result: iteration ended")
	// Close can be called again.
	c.Check(iter.Close(), IsNil)
}

func (s *DBSuite) TestRenderErrorIsReturnedByRun(c *C) {
	db := s.openDB(c, nil)
	defer db.PlainDB().Close()

	bad := sqltmpl.MustCompile("select * from person\nfor x in team:\n  #{x}")
	_, err := db.Query(nil, bad, map[string]any{"team": "engineering"}).Run()
	c.Check(err, ErrorMatches, `line 2: cannot evaluate "team": cannot iterate over string value`)

	err = db.Query(nil, bad, map[string]any{"team": "engineering"}).Get()
	c.Check(err, ErrorMatches, `line 2: .*`)

	_, _, err = db.Query(nil, bad, map[string]any{"team": "engineering"}).SQL()
	var ee *sqltmpl.EvalError
	c.Check(errors.As(err, &ee), Equals, true)
}

func (s *DBSuite) TestTransaction(c *C) {
	db := s.openDB(c, nil)
	defer db.PlainDB().Close()
	ctx := context.Background()
	count := sqltmpl.MustCompile("select count(*) from person")

	tx, err := db.Begin(ctx, nil)
	c.Assert(err, IsNil)
	_, err = tx.Query(ctx, insertEmployee, Employee{5, "Ben", "legal"}).Run()
	c.Assert(err, IsNil)
	c.Assert(tx.Rollback(), IsNil)
	c.Check(tx.Commit(), Equals, sqltmpl.ErrTXDone)
	_, err = tx.Query(ctx, insertEmployee, Employee{5, "Ben", "legal"}).Run()
	c.Check(err, Equals, sqltmpl.ErrTXDone)

	var n int
	c.Assert(db.Query(ctx, count, nil).Get(&n), IsNil)
	c.Check(n, Equals, 4)

	tx, err = db.Begin(ctx, &sqltmpl.TXOptions{Isolation: sql.LevelSerializable})
	c.Assert(err, IsNil)
	_, err = tx.Query(ctx, insertEmployee, Employee{5, "Ben", "legal"}).Run()
	c.Assert(err, IsNil)
	var name string
	c.Assert(tx.Query(ctx, sqltmpl.MustCompile("select name from person where id = #{_}"), 5).Get(&name), IsNil)
	c.Check(name, Equals, "Ben")
	c.Assert(tx.Commit(), IsNil)

	c.Assert(db.Query(ctx, count, nil).Get(&n), IsNil)
	c.Check(n, Equals, 5)
}

func (s *DBSuite) TestDriverReceivesRenderedSQL(c *C) {
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	c.Assert(err, IsNil)
	defer sqldb.Close()
	db := sqltmpl.NewDB(sqldb, sqltmpl.Dollar)

	update := sqltmpl.MustCompile(`
update person
set:
  if name != null: name = #{name},
  if team != null: team = #{team},
where id = #{id}`)

	mock.ExpectExec("update person SET team = $1 where id = $2").
		WithArgs("legal", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := db.Query(nil, update, map[string]any{"team": "legal", "id": 3}).Run()
	c.Assert(err, IsNil)
	n, err := res.RowsAffected()
	c.Assert(err, IsNil)
	c.Check(n, Equals, int64(1))

	mock.ExpectQuery("select id, name, team from person WHERE id in ( $1, $2 ) order by id").
		WithArgs(int64(1), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "team"}).
			AddRow(1, "Alastair", "engineering").
			AddRow(4, "Joe", "marketing"))
	rows, err := db.Query(nil, selectEmployees, map[string]any{"ids": []int{1, 2, 4}, "skip": 2}).GetAll()
	c.Assert(err, IsNil)
	c.Assert(rows, HasLen, 2)
	c.Check(rows[1].Lookup("name").Text(), Equals, "Joe")

	c.Check(mock.ExpectationsWereMet(), IsNil)
}
