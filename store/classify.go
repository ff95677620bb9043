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

package store

import (
	"errors"
	"regexp"

	"github.com/lib/pq"

	"github.com/tabport/tabport/core"
)

// Constraint classification is deliberately string-sniffing for SQLite: the
// driver surfaces the engine's message verbatim and there is no structured
// column field to read. Keeping the rules behind core.ConstraintClassifier
// lets other dialects substitute structured matching (see PostgresClassifier).

var (
	sqliteUniquePattern  = regexp.MustCompile(`(?i)UNIQUE constraint failed: \w+\.([A-Za-z0-9_]+)`)
	sqliteNotNullPattern = regexp.MustCompile(`(?i)NOT NULL constraint failed: \w+\.([A-Za-z0-9_]+)`)
	sqliteConstraintHint = regexp.MustCompile(`(?i)constraint`)
)

// SQLiteClassifier parses SQLite integrity error text into constraint
// violations.
type SQLiteClassifier struct{}

// NewSQLiteClassifier returns the default classifier for SQLite targets.
func NewSQLiteClassifier() *SQLiteClassifier {
	return &SQLiteClassifier{}
}

// Classify implements core.ConstraintClassifier.
func (c *SQLiteClassifier) Classify(err error) (*core.ConstraintViolation, bool) {
	if err == nil {
		return nil, false
	}
	msg := err.Error()

	if m := sqliteUniquePattern.FindStringSubmatch(msg); m != nil {
		return &core.ConstraintViolation{Kind: core.ConstraintUnique, Column: m[1], Raw: msg}, true
	}
	if m := sqliteNotNullPattern.FindStringSubmatch(msg); m != nil {
		return &core.ConstraintViolation{Kind: core.ConstraintNotNull, Column: m[1], Raw: msg}, true
	}
	if sqliteConstraintHint.MatchString(msg) {
		return &core.ConstraintViolation{Kind: core.ConstraintOther, Raw: msg}, true
	}
	return nil, false
}

// pgKeyDetail extracts the column list from a unique-violation detail such as
// `Key (email)=(a@b.co) already exists.`
var pgKeyDetail = regexp.MustCompile(`Key \(([A-Za-z0-9_]+)[^)]*\)=`)

// PostgresClassifier maps lib/pq errors onto constraint violations using
// SQLSTATE codes instead of message sniffing.
type PostgresClassifier struct{}

// NewPostgresClassifier returns the classifier for PostgreSQL targets.
func NewPostgresClassifier() *PostgresClassifier {
	return &PostgresClassifier{}
}

// Classify implements core.ConstraintClassifier.
func (c *PostgresClassifier) Classify(err error) (*core.ConstraintViolation, bool) {
	if err == nil {
		return nil, false
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		column := ""
		if m := pgKeyDetail.FindStringSubmatch(pqErr.Detail); m != nil {
			column = m[1]
		}
		return &core.ConstraintViolation{Kind: core.ConstraintUnique, Column: column, Raw: pqErr.Message}, true
	case "23502": // not_null_violation
		return &core.ConstraintViolation{Kind: core.ConstraintNotNull, Column: pqErr.Column, Raw: pqErr.Message}, true
	case "23000", "23001", "23503", "23514": // other integrity violations
		return &core.ConstraintViolation{Kind: core.ConstraintOther, Raw: pqErr.Message}, true
	}
	return nil, false
}
