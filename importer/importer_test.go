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

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
	"github.com/tabport/tabport/schema"
	"github.com/tabport/tabport/store"
)

// sliceSource serves canned rows, optionally failing partway through.
type sliceSource struct {
	headers []string
	rows    []core.Record
	failAt  int // 1-based row index at which Read errors; 0 disables
	pos     int
}

func (s *sliceSource) Headers() ([]string, error) { return s.headers, nil }

func (s *sliceSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	if n > len(s.rows) {
		n = len(s.rows)
	}
	return s.rows[:n], nil
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if s.failAt > 0 && s.pos == s.failAt-1 {
		return nil, errors.New("simulated source failure")
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceSource) Close() error { return nil }

func newTestImporter(t *testing.T) (*Importer, *store.SQLiteStore) {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func contactMapping() core.ColumnMapping {
	return core.ColumnMapping{"name": "Name", "email": "Email"}
}

func countRows(t *testing.T, st *store.SQLiteStore, table string) int {
	t.Helper()
	var count int
	err := st.DB().QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestRunInsertsAllValidRows(t *testing.T) {
	imp, st := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "john@example.com"},
		{"Name": "Jane", "Email": "jane@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		Constraints: core.Constraints{Unique: []string{"email"}},
	})

	assert.Equal(t, 2, result.RowsSeen)
	assert.Equal(t, 2, result.RowsInserted)
	assert.Equal(t, 0, result.RowsSkipped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, countRows(t, st, "contacts"))
}

func TestRunSkipsDuplicateUniqueValue(t *testing.T) {
	imp, st := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "john@example.com"},
		{"Name": "Jane", "Email": "jane@example.com"},
		{"Name": "Johnny", "Email": "john@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		Constraints: core.Constraints{Unique: []string{"email"}},
	})

	assert.Equal(t, 3, result.RowsSeen)
	assert.Equal(t, 2, result.RowsInserted)
	assert.Equal(t, 1, result.RowsSkipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "3", result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Error, "Duplicate value for 'Email'")
	assert.Equal(t, 2, countRows(t, st, "contacts"))
}

func TestRunSkipsMissingRequiredField(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "", "Email": "x@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		Constraints: core.Constraints{Required: []string{"name"}},
	})

	assert.Equal(t, 1, result.RowsSeen)
	assert.Equal(t, 0, result.RowsInserted)
	assert.Equal(t, 1, result.RowsSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "Required field 'Name' is missing or empty.")
}

func TestRunSkipsInvalidEmail(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "not-an-email"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		Constraints: core.Constraints{EmailFields: []string{"email"}},
	})

	assert.Equal(t, 1, result.RowsSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "Invalid format for field")
	assert.Contains(t, result.Errors[0].Error, "not-an-email")
}

func TestRunZeroRowSource(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{headers: []string{"Name", "Email"}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName: "contacts",
		Mapping:   contactMapping(),
	})

	assert.Equal(t, 0, result.RowsSeen)
	assert.Equal(t, 0, result.RowsInserted)
	assert.Equal(t, 0, result.RowsSkipped)
	assert.Empty(t, result.Errors)
}

func TestRunCounterInvariant(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "john@example.com"},
		{"Name": "", "Email": ""},
		{"Name": "Jane", "Email": "bad-email"},
		{"Name": "Johnny", "Email": "john@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName: "contacts",
		Mapping:   contactMapping(),
		Constraints: core.Constraints{
			Required:    []string{"name"},
			Unique:      []string{"email"},
			EmailFields: []string{"email"},
		},
	})

	assert.Equal(t, result.RowsSeen, result.RowsInserted+result.RowsSkipped)
	assert.Equal(t, 4, result.RowsSeen)
	assert.Equal(t, 1, result.RowsInserted)
}

func TestRunInvalidTableName(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{{"Name": "John"}}}

	// Punctuation-only names sanitize to underscores and survive; only a name
	// that sanitizes to nothing at all is rejected before the row loop.
	result := imp.Run(context.Background(), src, RunOptions{
		TableName: "",
		Mapping:   contactMapping(),
	})

	assert.Equal(t, 0, result.RowsSeen)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "0", result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Error, "Invalid table name provided")
}

func TestRunSourceFailureMidway(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{
		rows: []core.Record{
			{"Name": "John", "Email": "john@example.com"},
			{"Name": "Jane", "Email": "jane@example.com"},
		},
		failAt: 2,
	}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName: "contacts",
		Mapping:   contactMapping(),
	})

	// Row one survives; the failure lands as a single header-row entry.
	assert.Equal(t, 1, result.RowsSeen)
	assert.Equal(t, 1, result.RowsInserted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "0", result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Error, "Failed to read or process source")
}

func TestRunEmptyMappedRowSkipped(t *testing.T) {
	imp, _ := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Unmapped": "value"},
		{"Name": "   ", "Email": ""},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName: "contacts",
		Mapping:   contactMapping(),
	})

	assert.Equal(t, 2, result.RowsSeen)
	assert.Equal(t, 0, result.RowsInserted)
	assert.Equal(t, 2, result.RowsSkipped)
	require.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Contains(t, e.Error, "Row is empty after mapping")
	}
}

func TestRunBatchCommit(t *testing.T) {
	imp, st := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "john@example.com"},
		{"Name": "Jane", "Email": "jane@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		BatchCommit: true,
	})

	assert.Equal(t, 2, result.RowsInserted)
	assert.Empty(t, result.Errors)
	assert.False(t, st.InTransaction())
	assert.Equal(t, 2, countRows(t, st, "contacts"))
}

func TestRunBatchCommitSurvivesConstraintViolation(t *testing.T) {
	imp, st := newTestImporter(t)
	src := &sliceSource{rows: []core.Record{
		{"Name": "John", "Email": "john@example.com"},
		{"Name": "Johnny", "Email": "john@example.com"},
		{"Name": "Jane", "Email": "jane@example.com"},
	}}

	result := imp.Run(context.Background(), src, RunOptions{
		TableName:   "contacts",
		Mapping:     contactMapping(),
		Constraints: core.Constraints{Unique: []string{"email"}},
		BatchCommit: true,
	})

	// The duplicate is skipped but the staged rows around it still commit.
	assert.Equal(t, 2, result.RowsInserted)
	assert.Equal(t, 1, result.RowsSkipped)
	assert.Equal(t, 2, countRows(t, st, "contacts"))
}

func TestNewPanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}

func TestWithLoggerKeepsConfiguredPlanner(t *testing.T) {
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	custom := schema.NewPlanner(nil)
	custom.IsEmailField = func(string) bool { return false }

	imp := New(st, WithPlanner(custom), WithLogger(zap.NewNop()))
	assert.Same(t, custom, imp.planner)

	imp = New(st, WithLogger(zap.NewNop()), WithPlanner(custom))
	assert.Same(t, custom, imp.planner)
}
