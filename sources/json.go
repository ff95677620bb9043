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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/tabport/tabport/core"
)

func init() {
	Register(".json", func(path string) (core.RowSource, error) {
		return NewJSONSource(path), nil
	})
	Register(".jsonl", func(path string) (core.RowSource, error) {
		return NewJSONSource(path), nil
	})
}

// JSONSource implements core.RowSource for JSON files carrying either a
// top-level array of objects or line-delimited objects. Entries that are not
// objects are skipped and reported, never aborting the sequence.
type JSONSource struct {
	path   string
	logger *zap.Logger

	file    *os.File
	decoder *json.Decoder
	inArray bool
	index   int
	skipped int
}

// JSONOption allows functional customization of JSONSource.
type JSONOption func(*JSONSource)

// WithJSONLogger sets the logger used to report skipped entries.
func WithJSONLogger(logger *zap.Logger) JSONOption {
	return func(j *JSONSource) { j.logger = logger }
}

// NewJSONSource creates a JSON source over a file path.
func NewJSONSource(path string, options ...JSONOption) *JSONSource {
	j := &JSONSource{path: path, logger: zap.NewNop()}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// open positions a decoder at the first entry. A 0-byte file is treated as an
// empty dataset.
func (j *JSONSource) open() error {
	f, err := os.Open(j.path)
	if err != nil {
		return &SourceError{Op: "open", Err: err}
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		// Empty file: no entries, Read reports EOF immediately.
		j.file, j.decoder = f, dec
		return nil
	}
	if err != nil {
		f.Close()
		return &SourceError{Op: "parse", Err: err}
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return &SourceError{Op: "parse", Err: fmt.Errorf("top-level JSON value must be an array of objects")}
	}

	j.inArray = true
	j.file, j.decoder = f, dec
	return nil
}

// openLines positions a decoder for line-delimited objects.
func (j *JSONSource) openLines() error {
	f, err := os.Open(j.path)
	if err != nil {
		return &SourceError{Op: "open", Err: err}
	}
	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()
	j.file, j.decoder = f, dec
	return nil
}

// Headers implements core.RowSource: the sorted key set of the first object.
func (j *JSONSource) Headers() ([]string, error) {
	fresh := NewJSONSource(j.path, WithJSONLogger(j.logger))
	defer fresh.Close()

	rec, err := fresh.Read(context.Background())
	if err == io.EOF {
		return nil, core.ErrNoHeaders
	}
	if err != nil {
		return nil, err
	}

	headers := make([]string, 0, len(rec))
	for k := range rec {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers, nil
}

// Preview implements core.RowSource.
func (j *JSONSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	return previewFrom(ctx, NewJSONSource(j.path, WithJSONLogger(j.logger)), n)
}

// Read implements core.RowSource.
func (j *JSONSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if j.decoder == nil {
		if err := j.openAuto(); err != nil {
			return nil, err
		}
	}

	for {
		if j.inArray && !j.decoder.More() {
			return nil, io.EOF
		}

		var value interface{}
		if err := j.decoder.Decode(&value); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &SourceError{Op: "read_row", Err: err}
		}
		j.index++

		obj, ok := value.(map[string]interface{})
		if !ok {
			// Non-record entry: report and move on.
			j.skipped++
			j.logger.Warn("skipping non-object entry in JSON source",
				zap.String("path", j.path),
				zap.Int("entry", j.index))
			continue
		}
		return normalizeJSONRecord(obj), nil
	}
}

// openAuto sniffs the file shape: an array opener switches to array mode,
// anything else is read as line-delimited objects.
func (j *JSONSource) openAuto() error {
	f, err := os.Open(j.path)
	if err != nil {
		return &SourceError{Op: "open", Err: err}
	}
	br := bufio.NewReader(f)
	first, err := firstNonSpace(br)
	f.Close()
	if err != nil && err != io.EOF {
		return &SourceError{Op: "open", Err: err}
	}

	if first == '[' {
		return j.open()
	}
	return j.openLines()
}

// SkippedEntries reports how many non-record entries were passed over.
func (j *JSONSource) SkippedEntries() int {
	return j.skipped
}

// Close implements core.RowSource.
func (j *JSONSource) Close() error {
	if j.file != nil {
		err := j.file.Close()
		j.file, j.decoder = nil, nil
		return err
	}
	return nil
}

// normalizeJSONRecord converts json.Number values into int or float and
// leaves everything else untouched.
func normalizeJSONRecord(obj map[string]interface{}) core.Record {
	rec := make(core.Record, len(obj))
	for k, v := range obj {
		if num, ok := v.(json.Number); ok {
			if i, err := num.Int64(); err == nil {
				rec[k] = int(i)
			} else if f, err := num.Float64(); err == nil {
				rec[k] = f
			} else {
				rec[k] = num.String()
			}
			continue
		}
		rec[k] = v
	}
	return rec
}

func firstNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b, nil
		}
	}
}
