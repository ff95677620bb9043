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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportResultAddError(t *testing.T) {
	r := NewImportResult()
	r.AddError(3, "Skipped: Duplicate value for 'Email'.", `{"email":"a@b.co"}`)
	r.AddError(RowHeader, "Invalid table name provided: ''", "")
	r.AddError(RowUnknown, "Database commit error at end of import", "")

	require.Len(t, r.Errors, 3)
	assert.Equal(t, "3", r.Errors[0].Row)
	assert.Equal(t, "0", r.Errors[1].Row)
	assert.Equal(t, "Unknown", r.Errors[2].Row)
	assert.Equal(t, "{}", r.Errors[1].Data)
}

func TestImportResultJSONShape(t *testing.T) {
	r := NewImportResult()
	r.RowsSeen = 2
	r.RowsInserted = 1
	r.RowsSkipped = 1
	r.AddError(2, "no data to insert", "{}")

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, float64(2), decoded["total"])
	assert.Equal(t, float64(1), decoded["inserted"])
	assert.Equal(t, float64(1), decoded["skipped"])
	errs, ok := decoded["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestImportResultErrorOrderPreserved(t *testing.T) {
	r := NewImportResult()
	for row := 1; row <= 5; row++ {
		r.AddError(row, "err", "{}")
	}
	for i, e := range r.Errors {
		assert.Equal(t, string(rune('1'+i)), e.Row)
	}
}

func TestFormatSnippet(t *testing.T) {
	snippet := FormatSnippet(Record{"name": "John", "age": 30, "active": true, "note": nil})
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(snippet), &decoded))
	assert.Equal(t, "John", decoded["name"])
	assert.Equal(t, float64(30), decoded["age"])

	assert.Equal(t, "{}", FormatSnippet(nil))
}

func TestFormatSnippetTruncates(t *testing.T) {
	snippet := FormatSnippet(Record{"blob": strings.Repeat("x", 500)})
	assert.LessOrEqual(t, len(snippet), 100)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestFormatSnippetTruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte content landing across the cap must not leave a torn rune.
	for pad := 0; pad < 4; pad++ {
		snippet := FormatSnippet(Record{"blob": strings.Repeat("x", pad) + strings.Repeat("é", 200)})
		assert.LessOrEqual(t, len(snippet), 100)
		assert.True(t, strings.HasSuffix(snippet, "..."))
		assert.True(t, utf8.ValidString(snippet), "pad %d: %q", pad, snippet)
	}
}

func TestFormatSnippetNonScalar(t *testing.T) {
	snippet := FormatSnippet(Record{"tags": []string{"a", "b"}})
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(snippet), &decoded))
	_, isString := decoded["tags"].(string)
	assert.True(t, isString)
}
