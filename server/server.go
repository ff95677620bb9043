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

// Package server exposes the import pipeline over HTTP: upload a source file,
// inspect its headers, preview rows, then run an import and get the ledger
// back as JSON. A parallel endpoint set drives imports from remote relational
// databases.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tabport/tabport/config"
	"github.com/tabport/tabport/core"
	"github.com/tabport/tabport/importer"
	"github.com/tabport/tabport/sources"
	"github.com/tabport/tabport/store"
)

// upload tracks one spooled source file.
type upload struct {
	ID       string `json:"upload_id"`
	Filename string `json:"filename"`
	Path     string `json:"-"`
}

// Server carries the HTTP surface and its upload registry.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.RWMutex
	uploads map[string]upload
}

// New builds a Server. A nil logger falls back to zap.NewNop().
func New(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		uploads: make(map[string]upload),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/formats", s.handleFormats)

		r.Post("/uploads", s.handleUpload)
		r.Route("/uploads/{uploadID}", func(r chi.Router) {
			r.Get("/headers", s.handleHeaders)
			r.Get("/preview", s.handlePreview)
			r.Post("/import", s.handleImport)
		})

		r.Route("/source", func(r chi.Router) {
			r.Post("/tables", s.handleSourceTables)
			r.Post("/preview", s.handleSourcePreview)
			r.Post("/import", s.handleSourceImport)
		})
	})
	return r
}

// handleFormats reports the registered source file extensions.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"extensions": sources.Extensions(),
	})
}

// importRequest is the shared body shape of the import endpoints.
type importRequest struct {
	TableName   string            `json:"table_name"`
	Mapping     map[string]string `json:"mapping"`
	Required    []string          `json:"required"`
	Unique      []string          `json:"unique"`
	EmailFields []string          `json:"email_fields"`
	BatchCommit bool              `json:"batch_commit"`
}

func (req *importRequest) runOptions() importer.RunOptions {
	mapping := make(core.ColumnMapping, len(req.Mapping))
	for target, source := range req.Mapping {
		mapping[target] = source
	}
	return importer.RunOptions{
		TableName: req.TableName,
		Mapping:   mapping,
		Constraints: core.Constraints{
			Required:    req.Required,
			Unique:      req.Unique,
			EmailFields: req.EmailFields,
		},
		BatchCommit: req.BatchCommit,
	}
}

// openTarget opens a run-scoped handle on the configured target database.
func (s *Server) openTarget() (*store.SQLiteStore, error) {
	return store.OpenSQLite(s.cfg.Target.DBPath, store.WithLogger(s.logger))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	s.logger.Error("request error",
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	s.respondJSON(w, status, map[string]string{"error": msg})
}
