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

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabport/tabport/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreExecuteAutocommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE t ("id" INTEGER PRIMARY KEY, "name" TEXT)`, nil, true))
	require.NoError(t, s.Execute(ctx, `INSERT INTO t ("name") VALUES (?)`, []interface{}{"a"}, true))
	assert.False(t, s.InTransaction())
}

func TestSQLiteStoreTransactionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE t ("name" TEXT)`, nil, true))

	require.NoError(t, s.Execute(ctx, `INSERT INTO t ("name") VALUES (?)`, []interface{}{"a"}, false))
	assert.True(t, s.InTransaction())

	require.NoError(t, s.Commit())
	assert.False(t, s.InTransaction())

	// Commit with no pending transaction is a no-op.
	require.NoError(t, s.Commit())
	require.NoError(t, s.Rollback())
}

func TestSQLiteStoreUniqueViolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE people ("email" TEXT UNIQUE)`, nil, true))
	require.NoError(t, s.Execute(ctx, `INSERT INTO people ("email") VALUES (?)`, []interface{}{"a@b.co"}, true))

	err := s.Execute(ctx, `INSERT INTO people ("email") VALUES (?)`, []interface{}{"a@b.co"}, true)
	require.Error(t, err)

	v, ok := s.Classify(err)
	require.True(t, ok)
	assert.Equal(t, core.ConstraintUnique, v.Kind)
	assert.Equal(t, "email", v.Column)
}

func TestSQLiteStoreNotNullViolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE people ("name" TEXT NOT NULL)`, nil, true))

	err := s.Execute(ctx, `INSERT INTO people ("name") VALUES (?)`, []interface{}{nil}, true)
	require.Error(t, err)

	v, ok := s.Classify(err)
	require.True(t, ok)
	assert.Equal(t, core.ConstraintNotNull, v.Kind)
	assert.Equal(t, "name", v.Column)
}

func TestSQLiteStoreConstraintKeepsTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE people ("email" TEXT UNIQUE)`, nil, true))
	require.NoError(t, s.Execute(ctx, `INSERT INTO people ("email") VALUES (?)`, []interface{}{"a@b.co"}, false))
	require.True(t, s.InTransaction())

	// A rejected row must not discard rows already staged in the batch.
	err := s.Execute(ctx, `INSERT INTO people ("email") VALUES (?)`, []interface{}{"a@b.co"}, false)
	require.Error(t, err)
	assert.True(t, s.InTransaction())

	require.NoError(t, s.Commit())
}

func TestSQLiteStoreNonConstraintErrorRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Execute(ctx, `CREATE TABLE t ("name" TEXT)`, nil, true))
	require.NoError(t, s.Execute(ctx, `INSERT INTO t ("name") VALUES (?)`, []interface{}{"a"}, false))

	err := s.Execute(ctx, `INSERT INTO nope ("name") VALUES (?)`, []interface{}{"a"}, false)
	require.Error(t, err)
	assert.False(t, s.InTransaction())
}

func TestSQLiteStoreQuote(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, `"name"`, s.Quote("name"))
	assert.Equal(t, `"a""b"`, s.Quote(`a"b`))
}

func TestSQLiteStoreClosed(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Execute(context.Background(), "SELECT 1", nil, true))
	assert.NoError(t, s.Close())
}
