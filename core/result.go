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

package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Row sentinels for ledger entries that do not correspond to a produced row.
const (
	// RowHeader marks run-level failures raised before the row loop (invalid
	// table name, source open/parse failure).
	RowHeader = 0
	// RowUnknown marks failures with no row context at all, such as the
	// trailing commit sweep.
	RowUnknown = -1
)

// snippetMaxLen bounds the serialized data snippet attached to ledger entries.
const snippetMaxLen = 100

// ImportError is one ledger entry: the 1-based row it belongs to (or a
// sentinel), a human-readable message, and a truncated snippet of the row.
type ImportError struct {
	Row   string `json:"row"`
	Error string `json:"error"`
	Data  string `json:"data"`
}

// ImportResult accumulates the outcome of one import run. It is created at
// run start, mutated incrementally by the orchestrator, and immutable once
// returned to the caller. At completion RowsSeen == RowsInserted + RowsSkipped.
type ImportResult struct {
	RowsSeen     int           `json:"total"`
	RowsInserted int           `json:"inserted"`
	RowsSkipped  int           `json:"skipped"`
	Errors       []ImportError `json:"errors"`
}

// NewImportResult returns an empty ledger ready for one run.
func NewImportResult() *ImportResult {
	return &ImportResult{Errors: make([]ImportError, 0)}
}

// AddError appends a ledger entry. rowNumber is 1-based for data rows, or one
// of the RowHeader/RowUnknown sentinels. Entries keep insertion order so any
// serialized report preserves row order.
func (r *ImportResult) AddError(rowNumber int, message, dataSnippet string) {
	row := "Unknown"
	if rowNumber >= 0 {
		row = strconv.Itoa(rowNumber)
	}
	if dataSnippet == "" {
		dataSnippet = "{}"
	}
	r.Errors = append(r.Errors, ImportError{Row: row, Error: message, Data: dataSnippet})
}

// FormatSnippet serializes a record into a short JSON fragment for ledger
// entries. Non-scalar values are stringified first so the snippet never fails
// to marshal; output longer than the cap is truncated with an ellipsis.
func FormatSnippet(record Record) string {
	if record == nil {
		return "{}"
	}
	flat := make(map[string]interface{}, len(record))
	for k, v := range record {
		switch v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
			flat[k] = v
		default:
			flat[k] = fmt.Sprintf("%v", v)
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	s := string(b)
	if len(s) > snippetMaxLen {
		// Back off to a rune boundary so the snippet stays valid UTF-8.
		cut := snippetMaxLen - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
