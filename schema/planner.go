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
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
)

// Package schema infers target column types and materializes the target
// table. The planner runs once per import, before the row loop; all of its
// failure modes are run-level, never per-row.

var (
	// ErrEmptySchema is returned when no columns are defined at all.
	ErrEmptySchema = errors.New("schema has no columns")
	// ErrNoColumns is returned when sanitization rejects every declared column.
	ErrNoColumns = errors.New("no valid columns after sanitization")
)

// invalidTypeChars is the complement of the type-string allow-list: letters,
// digits, parentheses, underscore and whitespace. Anything else is stripped
// so a declared type can never act as an injection vector.
var invalidTypeChars = regexp.MustCompile(`[^A-Za-z0-9()_\s]`)

// reservedPrimaryKey is the column name under which a surrogate key is
// injected when the schema does not declare one.
const reservedPrimaryKey = "id"

// Planner owns type inference and DDL materialization for one target store.
type Planner struct {
	logger *zap.Logger

	// IsEmailField decides which field names get the uniqueness-constrained
	// email treatment during inference. Overridable; defaults to an
	// "email"-substring check.
	IsEmailField func(name string) bool
}

// NewPlanner returns a Planner with default inference heuristics. A nil
// logger is replaced with a no-op logger.
func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		logger: logger,
		IsEmailField: func(name string) bool {
			return strings.Contains(strings.ToLower(name), "email")
		},
	}
}

// Infer builds a default schema when the caller supplies none: every field is
// generic TEXT, upgraded to unique email TEXT when the field name carries an
// email-like token.
func (p *Planner) Infer(targetFields []string) core.SchemaDefinition {
	def := make(core.SchemaDefinition, len(targetFields))
	for _, field := range targetFields {
		spec := core.ColumnSpec{Type: "TEXT"}
		if p.IsEmailField(field) {
			spec.Unique = true
			spec.Email = true
		}
		def[field] = spec
	}
	return def
}

// CreateTable sanitizes the table and column names, validates declared type
// strings, injects a surrogate integer primary key when the schema does not
// define one, and issues a single idempotent CREATE TABLE IF NOT EXISTS. A
// pre-existing table of a different shape is never reconciled.
func (p *Planner) CreateTable(ctx context.Context, store core.TargetStore, tableName string, def core.SchemaDefinition) error {
	sanitizedTable, err := core.SanitizeName(tableName)
	if err != nil {
		return fmt.Errorf("table name %q: %w", tableName, err)
	}
	if len(def) == 0 {
		return ErrEmptySchema
	}

	// Sorted column order keeps the generated DDL stable across runs.
	fields := make([]string, 0, len(def))
	for f := range def {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var columnDefs []string
	hasPrimaryKey := false
	userColumns := 0

	for _, field := range fields {
		col, err := core.SanitizeName(field)
		if err != nil {
			p.logger.Warn("dropping column with invalid name",
				zap.String("table", sanitizedTable),
				zap.String("column", field))
			continue
		}
		if col == reservedPrimaryKey {
			hasPrimaryKey = true
		}
		columnDefs = append(columnDefs, p.columnDef(store, col, def[field]))
		userColumns++
	}

	if userColumns == 0 {
		return ErrNoColumns
	}
	if !hasPrimaryKey {
		pk := fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", store.Quote(reservedPrimaryKey))
		columnDefs = append([]string{pk}, columnDefs...)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		store.Quote(sanitizedTable), strings.Join(columnDefs, ", "))
	p.logger.Info("materializing target table",
		zap.String("table", sanitizedTable),
		zap.Int("columns", userColumns))
	p.logger.Debug("create table statement", zap.String("sql", ddl))

	if err := store.Execute(ctx, ddl, nil, true); err != nil {
		return fmt.Errorf("create table %q: %w", sanitizedTable, err)
	}
	return nil
}

// columnDef renders one column definition from its spec.
func (p *Planner) columnDef(store core.TargetStore, col string, spec core.ColumnSpec) string {
	colType := ValidateTypeString(spec.Type)
	if col == reservedPrimaryKey && strings.Contains(colType, "INTEGER PRIMARY KEY") {
		// Standardize an explicitly mapped integer id to the surrogate form.
		return fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", store.Quote(col))
	}
	parts := []string{store.Quote(col), colType}
	if spec.Unique {
		parts = append(parts, "UNIQUE")
	}
	if spec.NotNull {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

// ValidateTypeString strips every character outside the allow-list from a
// declared type and upper-cases the remainder. An empty or fully rejected
// type defaults to TEXT.
func ValidateTypeString(colType string) string {
	validated := strings.TrimSpace(invalidTypeChars.ReplaceAllString(colType, ""))
	if validated == "" {
		return "TEXT"
	}
	return strings.ToUpper(validated)
}
