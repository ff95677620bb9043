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
	"context"
	"errors"
	"fmt"
)

// This file contains the collaborator contracts consumed by the import
// orchestrator: row sources, the target store, and constraint classification.

// ErrNoHeaders is returned by RowSource.Headers when the source exposes no
// discoverable field names (empty file, empty result set, missing header row).
var ErrNoHeaders = errors.New("source has no headers")

// RowSource produces a lazy, single-pass sequence of raw rows from one
// concrete source (a CSV file, a spreadsheet sheet, a database table, ...).
// Replaying the sequence requires reopening the source. Implementations that
// carry multiple record shapes (document stores, JSON arrays) must skip or
// report non-record entries rather than abort the sequence.
type RowSource interface {
	// Headers returns the ordered source field names, or ErrNoHeaders when
	// none are discoverable.
	Headers() ([]string, error)
	// Preview returns up to n raw rows from the start of the source. An empty
	// source yields an empty slice, never an error.
	Preview(ctx context.Context, n int) ([]Record, error)
	// Read returns the next raw row or io.EOF when the sequence is exhausted.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the source.
	Close() error
}

// TargetStore is the relational destination of an import run. The handle is
// run-scoped and explicitly passed; there is no shared global state. The
// default identifier quoting is double-quote.
type TargetStore interface {
	// Execute runs one parameterized statement. When commit is true the
	// statement (and any transaction opened by earlier uncommitted Executes)
	// is committed; when false the statement joins a lazily opened
	// transaction that stays pending until Commit or Rollback.
	Execute(ctx context.Context, query string, args []interface{}, commit bool) error
	// Quote wraps an identifier in the store's quoting style.
	Quote(identifier string) string
	// Classify inspects a store error and reports the constraint violation it
	// represents, if any. Matching rules are dialect-specific.
	Classify(err error) (*ConstraintViolation, bool)
	// InTransaction reports whether a transaction is still pending.
	InTransaction() bool
	// Commit commits the pending transaction, if any.
	Commit() error
	// Rollback discards the pending transaction, if any.
	Rollback() error
	// Close releases the underlying connection.
	Close() error
}

// ConstraintKind distinguishes the constraint classes the pipeline reports on.
type ConstraintKind int

const (
	// ConstraintUnique marks a uniqueness violation.
	ConstraintUnique ConstraintKind = iota
	// ConstraintNotNull marks a missing required value.
	ConstraintNotNull
	// ConstraintOther marks an integrity failure that could not be parsed
	// into a specific column.
	ConstraintOther
)

// ConstraintViolation is the classified form of a store-level integrity
// failure. Column is the sanitized target column extracted from the raw
// message, empty when unparseable.
type ConstraintViolation struct {
	Kind   ConstraintKind
	Column string
	Raw    string
}

func (v *ConstraintViolation) Error() string {
	switch v.Kind {
	case ConstraintUnique:
		return fmt.Sprintf("unique constraint violated on column %q", v.Column)
	case ConstraintNotNull:
		return fmt.Sprintf("not-null constraint violated on column %q", v.Column)
	default:
		return fmt.Sprintf("integrity constraint violated: %s", v.Raw)
	}
}

// ConstraintClassifier turns a store's raw error into a ConstraintViolation.
// Keeping the string matching behind this interface lets the rules swap per
// store dialect without touching the orchestrator.
type ConstraintClassifier interface {
	Classify(err error) (*ConstraintViolation, bool)
}
