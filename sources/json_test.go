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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabport/tabport/core"
)

func TestJSONSourceArray(t *testing.T) {
	path := writeTempFile(t, "feed.json", `[
		{"name": "alice", "age": 30, "score": 9.5},
		{"name": "bob", "age": null}
	]`)

	src := NewJSONSource(path)
	defer src.Close()
	ctx := context.Background()

	row, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Record{"name": "alice", "age": 30, "score": 9.5}, row)

	row, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Record{"name": "bob", "age": nil}, row)

	_, err = src.Read(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestJSONSourceLineDelimited(t *testing.T) {
	path := writeTempFile(t, "feed.jsonl", `{"id": 1}
{"id": 2}
{"id": 3}
`)

	src := NewJSONSource(path)
	defer src.Close()
	ctx := context.Background()

	var ids []interface{}
	for {
		row, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ids = append(ids, row["id"])
	}
	assert.Equal(t, []interface{}{1, 2, 3}, ids)
}

func TestJSONSourceSkipsNonObjectEntries(t *testing.T) {
	path := writeTempFile(t, "feed.json", `[{"id": 1}, "junk", 42, {"id": 2}]`)

	src := NewJSONSource(path)
	defer src.Close()
	ctx := context.Background()

	row, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, row["id"])

	row, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, row["id"])

	_, err = src.Read(ctx)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, src.SkippedEntries())
}

func TestJSONSourceHeadersSorted(t *testing.T) {
	path := writeTempFile(t, "feed.json", `[{"zeta": 1, "alpha": 2, "mid": 3}]`)

	src := NewJSONSource(path)
	headers, err := src.Headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, headers)
}

func TestJSONSourceEmptyFile(t *testing.T) {
	path := writeTempFile(t, "feed.json", "")

	src := NewJSONSource(path)
	_, err := src.Headers()
	assert.ErrorIs(t, err, core.ErrNoHeaders)

	_, err = src.Read(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestJSONSourceTopLevelObjectIsLineDelimited(t *testing.T) {
	// A bare object stream with no array wrapper still reads row by row.
	path := writeTempFile(t, "feed.json", `{"id": 1}{"id": 2}`)

	src := NewJSONSource(path)
	defer src.Close()
	ctx := context.Background()

	row, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, row["id"])

	row, err = src.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, row["id"])
}

func TestJSONSourcePreview(t *testing.T) {
	path := writeTempFile(t, "feed.json", `[{"id": 1}, {"id": 2}, {"id": 3}]`)

	src := NewJSONSource(path)
	rows, err := src.Preview(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, 2, rows[1]["id"])
}

func TestNormalizeJSONRecordNumbers(t *testing.T) {
	path := writeTempFile(t, "feed.json", `[{"int": 7, "float": 2.5, "big": 900000000000000000000}]`)

	src := NewJSONSource(path)
	defer src.Close()

	row, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, row["int"])
	assert.Equal(t, 2.5, row["float"])
	assert.Equal(t, 9e20, row["big"])
}
