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
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
)

// insertRow builds and executes one parameterized insert over exactly the
// mapped row's sanitized keys. It reports success; every failure path appends
// its own ledger entry. Rows whose mapped values are all nil never get here.
func (imp *Importer) insertRow(ctx context.Context, table string, mapped core.Record, opts RunOptions, result *core.ImportResult, rowNumber int) bool {
	columns, args := imp.insertColumns(mapped)
	if len(columns) == 0 {
		result.AddError(rowNumber, "No data to insert (empty mapped row).", "")
		return false
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = imp.store.Quote(col)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		imp.store.Quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	err := imp.store.Execute(ctx, query, args, !opts.BatchCommit)
	if err == nil {
		return true
	}

	if violation, ok := imp.store.Classify(err); ok {
		imp.logger.Warn("constraint violation",
			zap.String("table", table),
			zap.Int("row", rowNumber),
			zap.String("column", violation.Column))
		result.AddError(rowNumber, imp.constraintMessage(violation, opts.Mapping), core.FormatSnippet(mapped))
		return false
	}

	imp.logger.Error("insert failed",
		zap.String("table", table),
		zap.Int("row", rowNumber),
		zap.Error(err))
	result.AddError(rowNumber, fmt.Sprintf("Unexpected DB insert error: %v", err), core.FormatSnippet(mapped))
	return false
}

// insertColumns returns the sanitized column names of a mapped row in sorted
// order, paired with the matching argument values. Fields whose names
// sanitize to empty were dropped from the DDL and are dropped here too, so
// insert identifiers can never diverge from the created table.
func (imp *Importer) insertColumns(mapped core.Record) ([]string, []interface{}) {
	fields := make([]string, 0, len(mapped))
	for f := range mapped {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	columns := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		col, err := core.SanitizeName(field)
		if err != nil {
			continue
		}
		columns = append(columns, col)
		args = append(args, mapped[field])
	}
	return columns, args
}

// constraintMessage renders a classified violation into the operator-facing
// skip message, mapping the sanitized column back to the original source
// header through the column mapping.
func (imp *Importer) constraintMessage(v *core.ConstraintViolation, colMapping core.ColumnMapping) string {
	sourceName := v.Column
	for targetField := range colMapping {
		if col, err := core.SanitizeName(targetField); err == nil && col == v.Column {
			sourceName = colMapping.SourceHeader(targetField)
			break
		}
	}

	switch v.Kind {
	case core.ConstraintUnique:
		return fmt.Sprintf("Skipped: Duplicate value for '%s'.", sourceName)
	case core.ConstraintNotNull:
		return fmt.Sprintf("Skipped: Required field '%s' is missing.", sourceName)
	default:
		return fmt.Sprintf("Skipped: Data integrity issue - %s.", v.Raw)
	}
}
