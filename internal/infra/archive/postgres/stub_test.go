package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// stubConn emulates the snapshots table so store tests run without a server.
type stubConn struct {
	execs      []string
	rows       map[string]stubRow
	failPing   bool
	failExec   bool
	failSelect bool
}

type stubRow struct {
	seq         int64
	createdAt   int64
	description string
	payload     []byte
}

var stubSeq atomic.Int64

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{rows: make(map[string]stubRow)}
	name := fmt.Sprintf("stubpg%d_%d", time.Now().UnixNano(), stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(_ context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO SNAPSHOTS"):
		if len(args) != 5 {
			return nil, fmt.Errorf("insert arg count %d", len(args))
		}
		name, _ := args[0].Value.(string)
		seq, _ := args[1].Value.(int64)
		createdAt, _ := args[2].Value.(int64)
		description, _ := args[3].Value.(string)
		payload, _ := args[4].Value.([]byte)
		c.rows[name] = stubRow{
			seq:         seq,
			createdAt:   createdAt,
			description: description,
			payload:     append([]byte(nil), payload...),
		}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM SNAPSHOTS"):
		if len(args) != 1 {
			return nil, fmt.Errorf("delete arg count %d", len(args))
		}
		name, _ := args[0].Value.(string)
		if _, ok := c.rows[name]; !ok {
			return driver.RowsAffected(0), nil
		}
		delete(c.rows, name)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unexpected exec: %s", query)
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.failSelect {
		return nil, fmt.Errorf("select fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "SELECT PAYLOAD FROM SNAPSHOTS"):
		if len(args) != 1 {
			return nil, fmt.Errorf("select arg count %d", len(args))
		}
		name, _ := args[0].Value.(string)
		row, ok := c.rows[name]
		if !ok {
			return &stubRows{cols: []string{"payload"}}, nil
		}
		return &stubRows{
			cols: []string{"payload"},
			rows: [][]driver.Value{{append([]byte(nil), row.payload...)}},
		}, nil
	case strings.HasPrefix(upper, "SELECT NAME, SEQ, CREATED_AT"):
		names := make([]string, 0, len(c.rows))
		for name := range c.rows {
			names = append(names, name)
		}
		sort.Strings(names)
		values := make([][]driver.Value, 0, len(names))
		for _, name := range names {
			row := c.rows[name]
			values = append(values, []driver.Value{name, row.seq, row.createdAt, row.description, int64(len(row.payload))})
		}
		return &stubRows{cols: []string{"name", "seq", "created_at", "description", "length"}, rows: values}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
