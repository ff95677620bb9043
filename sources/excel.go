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
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tabport/tabport/core"
)

func init() {
	Register(".xlsx", func(path string) (core.RowSource, error) {
		return NewExcelSource(path), nil
	})
	Register(".xlsm", func(path string) (core.RowSource, error) {
		return NewExcelSource(path), nil
	})
}

// ExcelSource implements core.RowSource for one worksheet of an Excel
// workbook. The first worksheet is used unless a sheet name is given; the
// first row is the header row. Rows stream through excelize's row iterator so
// large sheets are never materialized.
type ExcelSource struct {
	path  string
	sheet string

	file    *excelize.File
	rows    *excelize.Rows
	headers []string
	cols    []int
}

// ExcelOption allows functional customization of ExcelSource.
type ExcelOption func(*ExcelSource)

// WithExcelSheet selects a worksheet by name.
func WithExcelSheet(sheet string) ExcelOption {
	return func(e *ExcelSource) { e.sheet = sheet }
}

// NewExcelSource creates an Excel source over a file path.
func NewExcelSource(path string, options ...ExcelOption) *ExcelSource {
	e := &ExcelSource{path: path}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// open loads the workbook and positions the row iterator after the header row.
func (e *ExcelSource) open() error {
	f, err := excelize.OpenFile(e.path)
	if err != nil {
		return &SourceError{Op: "open", Err: err}
	}

	sheet := e.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return &SourceError{Op: "open", Err: fmt.Errorf("workbook has no sheets")}
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return &SourceError{Op: "open_sheet", Err: err}
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return core.ErrNoHeaders
	}
	rawHeaders, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return &SourceError{Op: "read_headers", Err: err}
	}

	headers, cols := headerColumns(rawHeaders)
	if len(headers) == 0 {
		rows.Close()
		f.Close()
		return core.ErrNoHeaders
	}

	e.file, e.rows, e.headers, e.cols = f, rows, headers, cols
	return nil
}

// Headers implements core.RowSource.
func (e *ExcelSource) Headers() ([]string, error) {
	fresh := NewExcelSource(e.path, WithExcelSheet(e.sheet))
	if err := fresh.open(); err != nil {
		return nil, err
	}
	defer fresh.Close()
	return fresh.headers, nil
}

// Preview implements core.RowSource.
func (e *ExcelSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	return previewFrom(ctx, NewExcelSource(e.path, WithExcelSheet(e.sheet)), n)
}

// Read implements core.RowSource.
func (e *ExcelSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if e.rows == nil {
		if err := e.open(); err != nil {
			return nil, err
		}
	}

	if !e.rows.Next() {
		if err := e.rows.Error(); err != nil {
			return nil, &SourceError{Op: "read_row", Err: err}
		}
		return nil, io.EOF
	}
	cells, err := e.rows.Columns()
	if err != nil {
		return nil, &SourceError{Op: "read_row", Err: err}
	}

	row := make(core.Record, len(e.headers))
	for j, header := range e.headers {
		i := e.cols[j]
		if i >= len(cells) || strings.TrimSpace(cells[i]) == "" {
			row[header] = nil
			continue
		}
		row[header] = parseScalar(cells[i])
	}
	return row, nil
}

// Close implements core.RowSource.
func (e *ExcelSource) Close() error {
	var firstErr error
	if e.rows != nil {
		if err := e.rows.Close(); err != nil {
			firstErr = err
		}
		e.rows = nil
	}
	if e.file != nil {
		if err := e.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.file = nil
	}
	return firstErr
}
