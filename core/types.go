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

// Package core defines the shared types for the TabPort import pipeline.
//
// TabPort moves tabular records from heterogeneous sources (delimited files,
// spreadsheets, structured documents, object storage, relational and document
// databases) into a target relational store under a caller-supplied column
// mapping and schema, with row-level failure isolation.

// Record represents a single raw or mapped data row.
// Each record is a map from field names to values, supporting heterogeneous data.
// Values are strings, numbers, booleans, or nil; key order is irrelevant.
type Record map[string]interface{}

// ColumnMapping maps a target field name to the source field name it is
// populated from. It is caller-supplied, built once per run, and read-only
// thereafter. The key set of every mapped row equals the key set of the
// mapping: a missing source value becomes nil, never an absent key.
type ColumnMapping map[string]string

// SourceHeader returns the original source header mapped to the given target
// field, falling back to the target field name itself when no mapping entry
// exists. Error messages use source headers so operators see the names they
// supplied, not the sanitized ones.
func (m ColumnMapping) SourceHeader(targetField string) string {
	if src, ok := m[targetField]; ok && src != "" {
		return src
	}
	return targetField
}

// ColumnSpec describes one target column for DDL generation.
type ColumnSpec struct {
	Type    string // store type descriptor, e.g. "TEXT", "INTEGER", "REAL", "DATETIME"
	Unique  bool
	NotNull bool
	Email   bool // value must look like an email address when present
}

// SchemaDefinition maps target field names to their column specs. It drives
// table creation and is read-only once the run starts.
type SchemaDefinition map[string]ColumnSpec

// Constraints carries the caller-supplied validation rules for one run.
// Unique informs error messaging only; uniqueness itself is enforced by the
// target store. EmailFields supplements the name-based email detection.
type Constraints struct {
	Required    []string
	Unique      []string
	EmailFields []string
}

// IsRequired reports whether the given target field is in the required list.
func (c Constraints) IsRequired(targetField string) bool {
	for _, f := range c.Required {
		if f == targetField {
			return true
		}
	}
	return false
}

// IsEmail reports whether the given target field is explicitly flagged as an
// email field.
func (c Constraints) IsEmail(targetField string) bool {
	for _, f := range c.EmailFields {
		if f == targetField {
			return true
		}
	}
	return false
}
