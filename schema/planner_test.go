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

package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabport/tabport/core"
)

// fakeStore records executed statements for DDL assertions.
type fakeStore struct {
	executed []string
	failWith error
}

func (f *fakeStore) Execute(ctx context.Context, query string, args []interface{}, commit bool) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.executed = append(f.executed, query)
	return nil
}

func (f *fakeStore) Quote(identifier string) string { return `"` + identifier + `"` }
func (f *fakeStore) Classify(err error) (*core.ConstraintViolation, bool) {
	return nil, false
}
func (f *fakeStore) InTransaction() bool { return false }
func (f *fakeStore) Commit() error       { return nil }
func (f *fakeStore) Rollback() error     { return nil }
func (f *fakeStore) Close() error        { return nil }

func TestInferDefaultsToText(t *testing.T) {
	p := NewPlanner(nil)
	def := p.Infer([]string{"name", "amount"})

	assert.Equal(t, core.ColumnSpec{Type: "TEXT"}, def["name"])
	assert.Equal(t, core.ColumnSpec{Type: "TEXT"}, def["amount"])
}

func TestInferEmailHeuristic(t *testing.T) {
	p := NewPlanner(nil)
	def := p.Infer([]string{"email", "contact_email", "name"})

	assert.True(t, def["email"].Unique)
	assert.True(t, def["email"].Email)
	assert.True(t, def["contact_email"].Unique)
	assert.False(t, def["name"].Unique)
}

func TestInferHeuristicOverride(t *testing.T) {
	p := NewPlanner(nil)
	p.IsEmailField = func(string) bool { return false }
	def := p.Infer([]string{"email"})

	assert.False(t, def["email"].Unique)
}

func TestCreateTableInjectsSurrogateKey(t *testing.T) {
	p := NewPlanner(nil)
	store := &fakeStore{}

	err := p.CreateTable(context.Background(), store, "people", core.SchemaDefinition{
		"name":  {Type: "TEXT"},
		"email": {Type: "TEXT", Unique: true},
	})
	require.NoError(t, err)
	require.Len(t, store.executed, 1)

	ddl := store.executed[0]
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "people"`)
	assert.Contains(t, ddl, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.Contains(t, ddl, `"email" TEXT UNIQUE`)
	assert.Contains(t, ddl, `"name" TEXT`)
}

func TestCreateTableRespectsDeclaredID(t *testing.T) {
	p := NewPlanner(nil)
	store := &fakeStore{}

	err := p.CreateTable(context.Background(), store, "people", core.SchemaDefinition{
		"id":   {Type: "INTEGER PRIMARY KEY"},
		"name": {Type: "TEXT"},
	})
	require.NoError(t, err)

	ddl := store.executed[0]
	assert.Contains(t, ddl, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	// The surrogate key must not be injected twice.
	assert.Equal(t, 1, countOccurrences(ddl, `"id"`))
}

func TestCreateTableSanitizesNames(t *testing.T) {
	p := NewPlanner(nil)
	store := &fakeStore{}

	err := p.CreateTable(context.Background(), store, "Order Items", core.SchemaDefinition{
		"Unit Price": {Type: "REAL"},
	})
	require.NoError(t, err)

	ddl := store.executed[0]
	assert.Contains(t, ddl, `"order_items"`)
	assert.Contains(t, ddl, `"unit_price" REAL`)
}

func TestCreateTableFatalConditions(t *testing.T) {
	p := NewPlanner(nil)

	err := p.CreateTable(context.Background(), &fakeStore{}, "!!!", core.SchemaDefinition{"a": {Type: "TEXT"}})
	assert.Error(t, err)

	err = p.CreateTable(context.Background(), &fakeStore{}, "ok", core.SchemaDefinition{})
	assert.ErrorIs(t, err, ErrEmptySchema)
}

func TestCreateTableIdempotent(t *testing.T) {
	p := NewPlanner(nil)
	store := &fakeStore{}
	def := core.SchemaDefinition{"name": {Type: "TEXT"}}

	require.NoError(t, p.CreateTable(context.Background(), store, "t", def))
	require.NoError(t, p.CreateTable(context.Background(), store, "t", def))

	assert.Equal(t, store.executed[0], store.executed[1])
	assert.Contains(t, store.executed[0], "IF NOT EXISTS")
}

func TestValidateTypeString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"TEXT", "TEXT"},
		{"varchar(255)", "VARCHAR(255)"},
		{"INTEGER PRIMARY KEY", "INTEGER PRIMARY KEY"},
		{"TEXT; DROP TABLE users", "TEXT DROP TABLE USERS"},
		{"TEXT--", "TEXT"},
		{"';!@#$", "TEXT"},
		{"", "TEXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateTypeString(tt.input), "input %q", tt.input)
	}
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
