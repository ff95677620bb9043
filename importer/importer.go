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
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
	"github.com/tabport/tabport/mapping"
	"github.com/tabport/tabport/schema"
	"github.com/tabport/tabport/validate"
)

// Package importer drives the per-record import pipeline:
//
//	Row Source -> Column Mapper -> Row Validator -> Insert Executor -> Ledger
//
// The schema planner runs once before the loop. Processing is single-threaded
// and pull-based: each row is fully mapped, validated and inserted before the
// next one is read. Row-level failures become ledger entries and never abort
// the batch; run-level failures short-circuit with a single sentinel entry.

// Importer coordinates one or more import runs against a target store.
type Importer struct {
	store     core.TargetStore
	planner   *schema.Planner
	validator *validate.Validator
	logger    *zap.Logger
}

// Option customizes an Importer.
type Option func(*Importer)

// WithLogger sets the run logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) { i.logger = logger }
}

// WithPlanner swaps the schema planner (e.g. to override type inference).
func WithPlanner(p *schema.Planner) Option {
	return func(i *Importer) { i.planner = p }
}

// WithValidator swaps the row validator.
func WithValidator(v *validate.Validator) Option {
	return func(i *Importer) { i.validator = v }
}

// New returns an Importer bound to a run-scoped target store. A nil store is
// a programmer error and panics.
func New(store core.TargetStore, options ...Option) *Importer {
	if store == nil {
		panic("importer: target store is required")
	}
	imp := &Importer{
		store:     store,
		validator: validate.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(imp)
	}
	// The default planner is built last so it picks up a configured logger
	// without clobbering one supplied via WithPlanner.
	if imp.planner == nil {
		imp.planner = schema.NewPlanner(imp.logger)
	}
	return imp
}

// RunOptions configures one import run. Mapping and Schema are built once and
// read-only for the duration of the run.
type RunOptions struct {
	// TableName is the target table; it is sanitized before use.
	TableName string
	// Mapping maps target field names to source headers.
	Mapping core.ColumnMapping
	// Schema declares the target columns. When nil, a schema is inferred
	// from the mapping's target fields.
	Schema core.SchemaDefinition
	// Constraints carries the required/unique/email field lists.
	Constraints core.Constraints
	// BatchCommit stages all rows in one transaction committed after the
	// loop instead of committing each row individually. Under batch commit a
	// non-constraint store failure mid-run discards the staged rows; the
	// default per-row commit favors partial-success durability instead.
	BatchCommit bool
}

// Run executes the pipeline for every row the source produces and returns the
// ledger. Row-level errors are always converted to ledger entries; collaborator
// failures at the run level are caught and recorded the same way, so callers
// always receive one result type.
func (imp *Importer) Run(ctx context.Context, src core.RowSource, opts RunOptions) *core.ImportResult {
	result := core.NewImportResult()

	table, err := core.SanitizeName(opts.TableName)
	if err != nil {
		result.AddError(core.RowHeader, fmt.Sprintf("Invalid table name provided: '%s'", opts.TableName), "")
		return result
	}

	def := opts.Schema
	if def == nil {
		def = imp.planner.Infer(targetFields(opts.Mapping))
	}
	if err := imp.planner.CreateTable(ctx, imp.store, opts.TableName, def); err != nil {
		result.AddError(core.RowHeader, fmt.Sprintf("Failed to prepare target table: %v", err), "")
		return result
	}

	imp.logger.Info("starting import run",
		zap.String("table", table),
		zap.Int("mapped_columns", len(opts.Mapping)),
		zap.Bool("batch_commit", opts.BatchCommit))

	rowNumber := 0
	for {
		raw, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			// The source failed to produce; everything already processed
			// stays counted, the run stops with one sentinel entry.
			imp.logger.Error("row source failed", zap.Int("after_row", rowNumber), zap.Error(err))
			result.AddError(core.RowHeader, fmt.Sprintf("Failed to read or process source: %v", err), "")
			break
		}

		rowNumber++
		result.RowsSeen++

		mapped := mapping.MapRow(raw, opts.Mapping)
		if len(mapped) == 0 || mapping.AllNull(mapped) {
			result.AddError(rowNumber, "Row is empty after mapping or source row was effectively empty.", core.FormatSnippet(raw))
			result.RowsSkipped++
			continue
		}

		outcome := imp.validator.Validate(mapped, opts.Mapping, opts.Constraints)
		if !outcome.Valid {
			result.AddError(rowNumber, strings.Join(outcome.Errors, "; "), core.FormatSnippet(mapped))
			result.RowsSkipped++
			continue
		}

		if imp.insertRow(ctx, table, mapped, opts, result, rowNumber) {
			result.RowsInserted++
		} else {
			result.RowsSkipped++
		}
	}

	imp.finishRun(result)

	imp.logger.Info("import run finished",
		zap.String("table", table),
		zap.Int("seen", result.RowsSeen),
		zap.Int("inserted", result.RowsInserted),
		zap.Int("skipped", result.RowsSkipped),
		zap.Int("errors", len(result.Errors)))
	return result
}

// finishRun commits any still-open transaction. A failed final commit is
// rolled back and appended as one more ledger entry; rows committed
// individually earlier are unaffected.
func (imp *Importer) finishRun(result *core.ImportResult) {
	if !imp.store.InTransaction() {
		return
	}
	if err := imp.store.Commit(); err != nil {
		imp.logger.Error("final commit failed, rolling back", zap.Error(err))
		if rbErr := imp.store.Rollback(); rbErr != nil {
			imp.logger.Error("rollback after failed commit also failed", zap.Error(rbErr))
		}
		result.AddError(core.RowUnknown, fmt.Sprintf("Database commit error at end of import: %v", err), "")
	}
}

func targetFields(m core.ColumnMapping) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
