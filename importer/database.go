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

	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
	"github.com/tabport/tabport/sources"
)

// DatabaseImporter pulls rows out of a remote relational database and feeds
// them through the same pipeline as file imports. The source side speaks the
// remote dialect (identifier quoting, chunked fetches); the target side is
// whatever store the inner Importer is bound to.
type DatabaseImporter struct {
	inner  *Importer
	driver string
	dsn    string
	logger *zap.Logger
}

// NewDatabaseImporter wraps an Importer with a remote connection.
func NewDatabaseImporter(imp *Importer, driver, dsn string) (*DatabaseImporter, error) {
	if imp == nil {
		return nil, fmt.Errorf("importer is required")
	}
	if driver == "" || dsn == "" {
		return nil, fmt.Errorf("driver and dsn are required")
	}
	return &DatabaseImporter{inner: imp, driver: driver, dsn: dsn, logger: imp.logger}, nil
}

// Tables lists the user tables of the remote database.
func (d *DatabaseImporter) Tables(ctx context.Context) ([]string, error) {
	return sources.ListTables(ctx, d.driver, d.dsn)
}

// ImportTable imports an entire remote table. When opts.Mapping is empty, a
// pass-through mapping is derived from the remote column names.
func (d *DatabaseImporter) ImportTable(ctx context.Context, table string, opts RunOptions) *core.ImportResult {
	src, err := sources.NewTableSource(d.driver, d.dsn, table)
	if err != nil {
		return sourceFailure(err)
	}
	return d.runFrom(ctx, src, opts)
}

// ImportQuery imports the result set of an arbitrary SELECT.
func (d *DatabaseImporter) ImportQuery(ctx context.Context, query string, opts RunOptions) *core.ImportResult {
	src, err := sources.NewQuerySource(d.driver, d.dsn, query)
	if err != nil {
		return sourceFailure(err)
	}
	return d.runFrom(ctx, src, opts)
}

func (d *DatabaseImporter) runFrom(ctx context.Context, src core.RowSource, opts RunOptions) *core.ImportResult {
	defer src.Close()

	if len(opts.Mapping) == 0 {
		headers, err := src.Headers()
		if err != nil {
			return sourceFailure(err)
		}
		opts.Mapping = passThroughMapping(headers)
		d.logger.Debug("derived pass-through mapping from remote columns",
			zap.Int("columns", len(headers)))
	}
	return d.inner.Run(ctx, src, opts)
}

// sourceFailure wraps a run-level source error into the single-result shape
// every import entry point returns.
func sourceFailure(err error) *core.ImportResult {
	result := core.NewImportResult()
	result.AddError(core.RowHeader, fmt.Sprintf("Failed to read or process source: %v", err), "")
	return result
}

// passThroughMapping maps each remote column onto a same-named target field.
func passThroughMapping(headers []string) core.ColumnMapping {
	m := make(core.ColumnMapping, len(headers))
	for _, h := range headers {
		m[h] = h
	}
	return m
}
