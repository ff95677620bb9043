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
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/tabport/tabport/core"
)

func init() {
	Register(".csv", func(path string) (core.RowSource, error) {
		return NewCSVSource(path), nil
	})
}

// CSVSourceOptions configures the CSV source.
type CSVSourceOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
}

// CSVOption allows functional customization of CSVSource.
type CSVOption func(*CSVSourceOptions)

// WithCSVComma sets the field delimiter.
func WithCSVComma(r rune) CSVOption {
	return func(o *CSVSourceOptions) { o.Comma = r }
}

// WithCSVComment sets the comment rune.
func WithCSVComment(r rune) CSVOption {
	return func(o *CSVSourceOptions) { o.Comment = r }
}

// WithCSVLazyQuotes tolerates bare quotes inside unquoted fields.
func WithCSVLazyQuotes(lazy bool) CSVOption {
	return func(o *CSVSourceOptions) { o.LazyQuotes = lazy }
}

// CSVSource implements core.RowSource for delimited files. The first record
// is the header row. Each call to Headers or Preview reopens the file; Read
// streams a single pass lazily opened on first use.
type CSVSource struct {
	path    string
	opts    CSVSourceOptions
	file    *os.File
	reader  *csv.Reader
	headers []string
	cols    []int
}

// NewCSVSource creates a CSV source over a file path.
func NewCSVSource(path string, options ...CSVOption) *CSVSource {
	opts := CSVSourceOptions{
		Comma:            ',',
		TrimLeadingSpace: true,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &CSVSource{path: path, opts: opts}
}

// open prepares a csv.Reader positioned after the header row.
func (c *CSVSource) open() (*os.File, *csv.Reader, []string, []int, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, nil, nil, nil, &SourceError{Op: "open", Err: err}
	}

	r := csv.NewReader(f)
	r.Comma = c.opts.Comma
	r.Comment = c.opts.Comment
	r.LazyQuotes = c.opts.LazyQuotes
	r.TrimLeadingSpace = c.opts.TrimLeadingSpace
	// Source rows may be ragged; the mapper treats missing cells as null.
	r.FieldsPerRecord = -1

	rawHeaders, err := r.Read()
	if err == io.EOF {
		f.Close()
		return nil, nil, nil, nil, core.ErrNoHeaders
	}
	if err != nil {
		f.Close()
		return nil, nil, nil, nil, &SourceError{Op: "read_headers", Err: err}
	}

	if len(rawHeaders) > 0 {
		// Excel exports commonly carry a UTF-8 BOM.
		rawHeaders[0] = strings.TrimPrefix(rawHeaders[0], "\uFEFF")
	}
	headers, cols := headerColumns(rawHeaders)
	if len(headers) == 0 {
		f.Close()
		return nil, nil, nil, nil, core.ErrNoHeaders
	}
	return f, r, headers, cols, nil
}

// Headers implements core.RowSource.
func (c *CSVSource) Headers() ([]string, error) {
	f, _, headers, _, err := c.open()
	if err != nil {
		return nil, err
	}
	f.Close()
	return headers, nil
}

// Preview implements core.RowSource, reading up to n rows from a fresh pass.
func (c *CSVSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	fresh := NewCSVSource(c.path)
	fresh.opts = c.opts
	return previewFrom(ctx, fresh, n)
}

// Read implements core.RowSource. The underlying file opens lazily on the
// first call; replaying the sequence requires a new source.
func (c *CSVSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if c.reader == nil {
		f, r, headers, cols, err := c.open()
		if err != nil {
			return nil, err
		}
		c.file, c.reader, c.headers, c.cols = f, r, headers, cols
	}

	record, err := c.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &SourceError{Op: "read_row", Err: err}
	}

	row := make(core.Record, len(c.headers))
	for j, header := range c.headers {
		i := c.cols[j]
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			row[header] = nil
			continue
		}
		row[header] = parseScalar(record[i])
	}
	return row, nil
}

// Close implements core.RowSource.
func (c *CSVSource) Close() error {
	if c.file != nil {
		err := c.file.Close()
		c.file, c.reader = nil, nil
		return err
	}
	return nil
}
