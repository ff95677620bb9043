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
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tabport/tabport/core"
)

// Package sources provides core.RowSource implementations for the supported
// feed formats. File-backed sources are selected through a registry keyed on
// file extension; there is no inheritance-style dispatch.

// SourceError wraps structured error information for row source operations.
type SourceError struct {
	Op  string // operation that failed (e.g. "open", "read_headers", "read_row")
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("row source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Opener constructs a RowSource for one file path.
type Opener func(path string) (core.RowSource, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes a file source available under an extension such as ".csv".
// Registering a nil opener or the same extension twice panics.
func Register(ext string, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if opener == nil {
		panic("sources: Register opener is nil")
	}
	ext = strings.ToLower(ext)
	if _, dup := openers[ext]; dup {
		panic("sources: Register called twice for extension " + ext)
	}
	openers[ext] = opener
}

// Open selects a source by the path's extension.
func Open(path string) (core.RowSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	openersMu.RLock()
	opener, ok := openers[ext]
	openersMu.RUnlock()
	if !ok {
		return nil, &SourceError{Op: "open", Err: fmt.Errorf("unsupported file extension %q", ext)}
	}
	return opener(path)
}

// Extensions returns the sorted list of registered file extensions.
func Extensions() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	list := make([]string, 0, len(openers))
	for ext := range openers {
		list = append(list, ext)
	}
	sort.Strings(list)
	return list
}

// parseScalar attempts to infer int, float, or bool from a raw cell value,
// falling back to the trimmed string.
func parseScalar(value string) interface{} {
	value = strings.TrimSpace(value)
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

// headerColumns trims a raw header row and drops blank cells, keeping each
// retained header's original column index so data cells stay aligned with
// their headers.
func headerColumns(raw []string) ([]string, []int) {
	headers := make([]string, 0, len(raw))
	cols := make([]int, 0, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		headers = append(headers, h)
		cols = append(cols, i)
	}
	return headers, cols
}

// previewFrom drains up to n rows from a freshly opened source. It backs the
// Preview implementations so an empty source yields an empty slice, never an
// error.
func previewFrom(ctx context.Context, src core.RowSource, n int) ([]core.Record, error) {
	defer src.Close()

	rows := make([]core.Record, 0, n)
	for len(rows) < n {
		rec, err := src.Read(ctx)
		if err == io.EOF || errors.Is(err, core.ErrNoHeaders) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
