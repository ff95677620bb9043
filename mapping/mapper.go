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

package mapping

import (
	"strings"

	"github.com/tabport/tabport/core"
)

// Package mapping reshapes raw source rows into target-shaped rows per the
// caller-supplied column mapping. Mapping is pure: no side effects, no store
// access.

// MapRow builds a mapped row from a raw row. For every target field in the
// mapping the source value is looked up by source header; an absent or nil
// source value maps to nil. String values are trimmed, and a value that is
// empty after trimming collapses to nil so required-field checks treat
// whitespace-only input as missing. Non-string values pass through unchanged.
//
// The returned row's key set always equals the mapping's key set.
func MapRow(raw core.Record, mapping core.ColumnMapping) core.Record {
	mapped := make(core.Record, len(mapping))
	for targetField, sourceHeader := range mapping {
		value, ok := raw[sourceHeader]
		if !ok || value == nil {
			mapped[targetField] = nil
			continue
		}
		if s, isString := value.(string); isString {
			s = strings.TrimSpace(s)
			if s == "" {
				mapped[targetField] = nil
			} else {
				mapped[targetField] = s
			}
			continue
		}
		mapped[targetField] = value
	}
	return mapped
}

// AllNull reports whether every value of a mapped row is nil. Rows that are
// empty after mapping are skipped before validation and never reach the store.
func AllNull(mapped core.Record) bool {
	for _, v := range mapped {
		if v != nil {
			return false
		}
	}
	return true
}
