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

package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tabport/tabport/core"
)

// Package validate enforces required-field and format constraints on mapped
// rows. Validation is pure and deterministic; store-level constraints such as
// uniqueness are the target store's job.

// emailPattern is the default format check for email-flagged fields.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Outcome is the result of validating one mapped row: valid iff Errors is
// empty. Errors keeps a stable order across runs.
type Outcome struct {
	Valid  bool
	Errors []string
}

// Validator checks mapped rows against caller constraints. The zero value is
// not usable; construct with New.
type Validator struct {
	// EmailPattern overrides the format applied to email-flagged fields.
	EmailPattern *regexp.Regexp
	// IsEmailField overrides the name-based email detection. The default
	// treats any target field whose name contains "email" as an email field;
	// this is a convenience heuristic, not a contract.
	IsEmailField func(targetField string) bool
}

// New returns a Validator with the default email heuristics.
func New() *Validator {
	return &Validator{
		EmailPattern: emailPattern,
		IsEmailField: func(targetField string) bool {
			return strings.Contains(strings.ToLower(targetField), "email")
		},
	}
}

// Validate checks one mapped row. Required fields whose mapped value is nil
// and email-flagged fields whose non-nil string value fails the format check
// each contribute one error; all violations on a row accumulate. Error
// messages name the original source header recovered through the mapping.
func (v *Validator) Validate(mapped core.Record, mapping core.ColumnMapping, cons core.Constraints) Outcome {
	var errs []string

	// Sorted field order keeps the error list deterministic.
	fields := make([]string, 0, len(mapped))
	for f := range mapped {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := mapped[field]
		sourceName := mapping.SourceHeader(field)

		if cons.IsRequired(field) && value == nil {
			errs = append(errs, fmt.Sprintf("Required field '%s' is missing or empty.", sourceName))
		}

		if value == nil {
			continue
		}
		if cons.IsEmail(field) || v.IsEmailField(field) {
			if s, ok := value.(string); ok && !v.EmailPattern.MatchString(s) {
				errs = append(errs, fmt.Sprintf("Invalid format for field '%s': '%s'.", sourceName, s))
			}
		}
	}

	return Outcome{Valid: len(errs) == 0, Errors: errs}
}
