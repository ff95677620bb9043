//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 The TabPort Authors
//
// This file is part of TabPort.
//
// TabPort is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TabPort is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TabPort. If not, see https://www.gnu.org/licenses/.

package sources

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tabport/tabport/core"
)

// DefaultFetchChunk is how many rows a database source buffers per round trip.
const DefaultFetchChunk = 100

// QuoteIdent quotes an identifier for the given driver: backticks for
// MySQL-family drivers, double quotes otherwise. Embedded quote characters
// are doubled.
func QuoteIdent(driver, ident string) string {
	switch driver {
	case "mysql", "mariadb":
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// DatabaseSourceOptions configures the relational source.
type DatabaseSourceOptions struct {
	FetchChunk int
}

// DatabaseOption is a functional option for DatabaseSource.
type DatabaseOption func(*DatabaseSourceOptions)

// WithFetchChunk sets the per-round-trip row buffer size.
func WithFetchChunk(n int) DatabaseOption {
	return func(o *DatabaseSourceOptions) { o.FetchChunk = n }
}

// DatabaseSource implements core.RowSource over a table or arbitrary query in
// a remote relational database. Rows are fetched in chunks and served one at
// a time.
type DatabaseSource struct {
	driver string
	dsn    string
	query  string
	opts   DatabaseSourceOptions

	db      *sql.DB
	rows    *sql.Rows
	columns []string
	buffer  []core.Record
	done    bool
}

// NewTableSource reads an entire table. The table identifier is quoted per
// the driver's dialect.
func NewTableSource(driver, dsn, table string, options ...DatabaseOption) (*DatabaseSource, error) {
	if table == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("table name is required")}
	}
	query := fmt.Sprintf("SELECT * FROM %s", QuoteIdent(driver, table))
	return NewQuerySource(driver, dsn, query, options...)
}

// NewQuerySource reads the result set of an arbitrary SELECT.
func NewQuerySource(driver, dsn, query string, options ...DatabaseOption) (*DatabaseSource, error) {
	if driver == "" || dsn == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("driver and dsn are required")}
	}
	if query == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("query is required")}
	}

	opts := DatabaseSourceOptions{FetchChunk: DefaultFetchChunk}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.FetchChunk <= 0 {
		opts.FetchChunk = DefaultFetchChunk
	}
	return &DatabaseSource{driver: driver, dsn: dsn, query: query, opts: opts}, nil
}

// ListTables returns the user table names of a database, for letting an
// operator pick a source table before importing.
func ListTables(ctx context.Context, driver, dsn string) ([]string, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &SourceError{Op: "connect", Err: err}
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, &SourceError{Op: "connect", Err: err}
	}

	var listQuery string
	switch driver {
	case "mysql", "mariadb":
		listQuery = "SHOW TABLES"
	case "postgres":
		listQuery = "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	default:
		listQuery = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}

	rows, err := db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, &SourceError{Op: "list_tables", Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &SourceError{Op: "list_tables", Err: err}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceError{Op: "list_tables", Err: err}
	}
	return tables, nil
}

// open connects and runs the query.
func (d *DatabaseSource) open(ctx context.Context) error {
	db, err := sql.Open(d.driver, d.dsn)
	if err != nil {
		return &SourceError{Op: "connect", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &SourceError{Op: "connect", Err: err}
	}

	rows, err := db.QueryContext(ctx, d.query)
	if err != nil {
		db.Close()
		return &SourceError{Op: "query", Err: err}
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		db.Close()
		return &SourceError{Op: "read_headers", Err: err}
	}
	if len(columns) == 0 {
		rows.Close()
		db.Close()
		return core.ErrNoHeaders
	}

	d.db, d.rows, d.columns = db, rows, columns
	return nil
}

// fetchChunk pulls the next buffer of rows from the open result set.
func (d *DatabaseSource) fetchChunk() error {
	d.buffer = d.buffer[:0]
	for len(d.buffer) < d.opts.FetchChunk && d.rows.Next() {
		values := make([]interface{}, len(d.columns))
		scanArgs := make([]interface{}, len(d.columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := d.rows.Scan(scanArgs...); err != nil {
			return &SourceError{Op: "read_row", Err: err}
		}

		rec := make(core.Record, len(d.columns))
		for i, col := range d.columns {
			rec[col] = normalizeSQLValue(values[i])
		}
		d.buffer = append(d.buffer, rec)
	}
	if err := d.rows.Err(); err != nil {
		return &SourceError{Op: "read_row", Err: err}
	}
	if len(d.buffer) < d.opts.FetchChunk {
		d.done = true
	}
	return nil
}

// Headers implements core.RowSource via a LIMIT-free metadata query.
func (d *DatabaseSource) Headers() ([]string, error) {
	fresh, err := NewQuerySource(d.driver, d.dsn, d.query, WithFetchChunk(d.opts.FetchChunk))
	if err != nil {
		return nil, err
	}
	defer fresh.Close()
	if err := fresh.open(context.Background()); err != nil {
		return nil, err
	}
	return fresh.columns, nil
}

// Preview implements core.RowSource.
func (d *DatabaseSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	fresh, err := NewQuerySource(d.driver, d.dsn, d.query, WithFetchChunk(d.opts.FetchChunk))
	if err != nil {
		return nil, err
	}
	return previewFrom(ctx, fresh, n)
}

// Read implements core.RowSource.
func (d *DatabaseSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if d.rows == nil && !d.done {
		if err := d.open(ctx); err != nil {
			return nil, err
		}
	}

	if len(d.buffer) == 0 {
		if d.done {
			return nil, io.EOF
		}
		if err := d.fetchChunk(); err != nil {
			return nil, err
		}
		if len(d.buffer) == 0 {
			return nil, io.EOF
		}
	}

	rec := d.buffer[0]
	d.buffer = d.buffer[1:]
	return rec, nil
}

// Close implements core.RowSource.
func (d *DatabaseSource) Close() error {
	var firstErr error
	if d.rows != nil {
		if err := d.rows.Close(); err != nil {
			firstErr = err
		}
		d.rows = nil
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.db = nil
	}
	return firstErr
}

// normalizeSQLValue converts driver-specific scan results into the pipeline's
// scalar set. MySQL in particular returns []byte for text columns.
func normalizeSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return parseScalar(string(val))
	case int64:
		return int(val)
	default:
		return val
	}
}
