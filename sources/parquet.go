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
	"os"

	"github.com/apache/arrow/go/arrow/memory"
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/tabport/tabport/core"
)

func init() {
	Register(".parquet", func(path string) (core.RowSource, error) {
		return NewParquetSource(path), nil
	})
}

// ParquetSource implements core.RowSource over a Parquet file, decoding
// through Arrow record batches. Column names come from the Arrow schema, so
// Headers never touches row data.
type ParquetSource struct {
	path      string
	batchSize int64

	fileHandle   *os.File
	reader       *file.Reader
	recordReader pqarrow.RecordReader
	schema       *arrow.Schema

	currentBatch    arrow.Record
	currentBatchIdx int
}

// ParquetOption allows functional customization of ParquetSource.
type ParquetOption func(*ParquetSource)

// WithParquetBatchSize sets the rows-per-batch hint for the Arrow reader.
func WithParquetBatchSize(size int64) ParquetOption {
	return func(p *ParquetSource) { p.batchSize = size }
}

// NewParquetSource creates a Parquet source over a file path.
func NewParquetSource(path string, options ...ParquetOption) *ParquetSource {
	p := &ParquetSource{path: path, batchSize: 1000}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// open prepares the Arrow record reader over the file.
func (p *ParquetSource) open(ctx context.Context) error {
	f, err := os.Open(p.path)
	if err != nil {
		return &SourceError{Op: "open", Err: err}
	}

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return &SourceError{Op: "create_reader", Err: err}
	}

	allocator := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: p.batchSize}, allocator)
	if err != nil {
		f.Close()
		return &SourceError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		f.Close()
		return &SourceError{Op: "get_schema", Err: err}
	}
	if len(schema.Fields()) == 0 {
		f.Close()
		return core.ErrNoHeaders
	}

	recordReader, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		f.Close()
		return &SourceError{Op: "create_record_reader", Err: err}
	}

	p.fileHandle = f
	p.reader = parquetReader
	p.recordReader = recordReader
	p.schema = schema
	return nil
}

// Headers implements core.RowSource, returning the schema field names in
// file order.
func (p *ParquetSource) Headers() ([]string, error) {
	fresh := NewParquetSource(p.path, WithParquetBatchSize(p.batchSize))
	if err := fresh.open(context.Background()); err != nil {
		return nil, err
	}
	defer fresh.Close()

	fields := fresh.schema.Fields()
	headers := make([]string, 0, len(fields))
	for _, field := range fields {
		headers = append(headers, field.Name)
	}
	return headers, nil
}

// Preview implements core.RowSource.
func (p *ParquetSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	return previewFrom(ctx, NewParquetSource(p.path, WithParquetBatchSize(p.batchSize)), n)
}

// Read implements core.RowSource.
func (p *ParquetSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if p.recordReader == nil {
		if err := p.open(ctx); err != nil {
			return nil, err
		}
	}

	if p.currentBatch == nil || p.currentBatchIdx >= int(p.currentBatch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &SourceError{Op: "load_batch", Err: err}
		}
	}

	rec := p.extractRecord(p.currentBatch, p.currentBatchIdx)
	p.currentBatchIdx++
	return rec, nil
}

// Close implements core.RowSource.
func (p *ParquetSource) Close() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.fileHandle != nil {
		err := p.fileHandle.Close()
		p.fileHandle = nil
		return err
	}
	return nil
}

func (p *ParquetSource) loadNextBatch() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}

	rec, err := p.recordReader.Read()
	if err != nil {
		return err
	}
	if rec == nil || rec.NumRows() == 0 {
		return io.EOF
	}

	p.currentBatch = rec
	p.currentBatchIdx = 0
	return nil
}

// extractRecord builds a core.Record from one row of an Arrow batch.
func (p *ParquetSource) extractRecord(record arrow.Record, pos int) core.Record {
	res := make(core.Record, int(record.NumCols()))
	sch := record.Schema()
	for i := 0; i < int(record.NumCols()); i++ {
		res[sch.Field(i).Name] = extractValue(record.Column(i), pos)
	}
	return res
}

// extractValue converts an Arrow cell into a Go primitive, nil for nulls.
func extractValue(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(rowIdx)
	case *array.Int8:
		return int(arr.Value(rowIdx))
	case *array.Int16:
		return int(arr.Value(rowIdx))
	case *array.Int32:
		return int(arr.Value(rowIdx))
	case *array.Int64:
		return int(arr.Value(rowIdx))
	case *array.Uint8:
		return int(arr.Value(rowIdx))
	case *array.Uint16:
		return int(arr.Value(rowIdx))
	case *array.Uint32:
		return int(arr.Value(rowIdx))
	case *array.Uint64:
		return int(arr.Value(rowIdx))
	case *array.Float32:
		return float64(arr.Value(rowIdx))
	case *array.Float64:
		return arr.Value(rowIdx)
	case *array.String:
		return arr.Value(rowIdx)
	case *array.Binary:
		return string(arr.Value(rowIdx))
	case *array.Timestamp:
		return arr.Value(rowIdx).ToTime(arrow.Microsecond)
	case *array.Date32:
		return arr.Value(rowIdx).ToTime()
	case *array.Date64:
		return arr.Value(rowIdx).ToTime()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(rowIdx))
	}
}
