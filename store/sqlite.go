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
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/tabport/tabport/core"
)

// Package store implements the target-store contract over SQLite, plus the
// per-dialect constraint classifiers used to turn raw integrity errors into
// ledger messages.

// StoreError wraps structured error information for store operations.
type StoreError struct {
	Op  string // operation that failed (e.g. "open", "execute", "commit")
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// SQLiteStore is a run-scoped handle on a SQLite target database. It is
// explicitly passed to the orchestrator; there is no process-wide shared
// handle. Statements executed with commit=false join a lazily opened
// transaction that stays pending until Commit or Rollback.
type SQLiteStore struct {
	db         *sql.DB
	tx         *sql.Tx
	classifier core.ConstraintClassifier
	logger     *zap.Logger
}

// SQLiteOption customizes an SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithClassifier swaps the constraint classifier.
func WithClassifier(c core.ConstraintClassifier) SQLiteOption {
	return func(s *SQLiteStore) { s.classifier = c }
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = logger }
}

// OpenSQLite opens (creating if necessary) a SQLite database at path and
// returns a store handle. ":memory:" is accepted for tests.
func OpenSQLite(path string, options ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	// One connection keeps the run single-handled and makes ":memory:"
	// behave as a single database rather than one per pooled connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "ping", Err: err}
	}
	return NewSQLiteStore(db, options...), nil
}

// NewSQLiteStore wraps an existing database handle.
func NewSQLiteStore(db *sql.DB, options ...SQLiteOption) *SQLiteStore {
	s := &SQLiteStore{
		db:         db,
		classifier: NewSQLiteClassifier(),
		logger:     zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Execute implements core.TargetStore. Integrity errors are returned
// unclassified so the caller can run them through Classify; other failures
// roll back any pending transaction.
func (s *SQLiteStore) Execute(ctx context.Context, query string, args []interface{}, commit bool) error {
	if s.db == nil {
		return &StoreError{Op: "execute", Err: fmt.Errorf("store is closed")}
	}

	var err error
	if s.tx == nil && !commit {
		s.tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return &StoreError{Op: "begin", Err: err}
		}
	}

	if s.tx != nil {
		_, err = s.tx.ExecContext(ctx, query, args...)
	} else {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		if _, isConstraint := s.classifier.Classify(err); isConstraint {
			// Leave the transaction open: a single rejected row must not
			// discard rows already staged in this batch.
			return err
		}
		s.logger.Error("statement failed", zap.String("query", query), zap.Error(err))
		if s.tx != nil {
			if rbErr := s.tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
			s.tx = nil
		}
		return &StoreError{Op: "execute", Err: err}
	}

	if commit && s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			s.tx = nil
			return &StoreError{Op: "commit", Err: err}
		}
		s.tx = nil
	}
	return nil
}

// DB exposes the underlying handle for read-side queries (previews, counts).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Quote wraps an identifier in double quotes, the store's default quoting.
func (s *SQLiteStore) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Classify delegates to the configured constraint classifier.
func (s *SQLiteStore) Classify(err error) (*core.ConstraintViolation, bool) {
	return s.classifier.Classify(err)
}

// InTransaction reports whether uncommitted statements are pending.
func (s *SQLiteStore) InTransaction() bool {
	return s.tx != nil
}

// Commit commits the pending transaction, if any.
func (s *SQLiteStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback discards the pending transaction, if any.
func (s *SQLiteStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return &StoreError{Op: "rollback", Err: err}
	}
	return nil
}

// Close commits any pending transaction (rolling back if the commit fails)
// and releases the connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		if err := s.Commit(); err != nil {
			s.logger.Warn("final commit failed on close, rolling back", zap.Error(err))
			_ = s.Rollback()
		}
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return &StoreError{Op: "close", Err: err}
	}
	return nil
}
