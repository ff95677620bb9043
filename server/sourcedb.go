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

package server

import (
	"encoding/json"
	"net/http"

	"github.com/tabport/tabport/importer"
	"github.com/tabport/tabport/sources"
)

// sourceDBRequest addresses a remote relational database. Exactly one of
// Table or Query selects the rows for preview/import.
type sourceDBRequest struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	Table  string `json:"table,omitempty"`
	Query  string `json:"query,omitempty"`
	Rows   int    `json:"rows,omitempty"`

	importRequest
}

func (req *sourceDBRequest) validateConnection() string {
	switch req.Driver {
	case "mysql", "mariadb", "postgres", "sqlite":
	default:
		return "driver must be one of mysql, mariadb, postgres, sqlite"
	}
	if req.DSN == "" {
		return "dsn is required"
	}
	return ""
}

// openSource builds the row source selected by the request.
func (req *sourceDBRequest) openSource() (*sources.DatabaseSource, error) {
	driver := req.Driver
	if driver == "mariadb" {
		// mariadb speaks the mysql wire protocol; only the quoting dialect
		// tracks the original name.
		driver = "mysql"
	}
	if req.Query != "" {
		return sources.NewQuerySource(driver, req.DSN, req.Query)
	}
	return sources.NewTableSource(driver, req.DSN, req.Table)
}

// handleSourceTables lists the user tables of a remote database.
func (s *Server) handleSourceTables(w http.ResponseWriter, r *http.Request) {
	var req sourceDBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := req.validateConnection(); msg != "" {
		s.respondError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	driver := req.Driver
	if driver == "mariadb" {
		driver = "mysql"
	}
	tables, err := sources.ListTables(r.Context(), driver, req.DSN)
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to list tables", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

// handleSourcePreview returns leading rows of a remote table or query.
func (s *Server) handleSourcePreview(w http.ResponseWriter, r *http.Request) {
	var req sourceDBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := req.validateConnection(); msg != "" {
		s.respondError(w, r, http.StatusBadRequest, msg, nil)
		return
	}
	if req.Table == "" && req.Query == "" {
		s.respondError(w, r, http.StatusBadRequest, "table or query is required", nil)
		return
	}

	src, err := req.openSource()
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to open source", err)
		return
	}
	defer src.Close()

	n := req.Rows
	if n <= 0 {
		n = s.cfg.Upload.PreviewRows
	}
	rows, err := src.Preview(r.Context(), n)
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to preview source", err)
		return
	}

	headers, err := src.Headers()
	if err != nil {
		s.respondError(w, r, http.StatusBadGateway, "failed to read source columns", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"headers": headers,
		"rows":    rows,
	})
}

// handleSourceImport runs the pipeline from a remote database into the
// configured target.
func (s *Server) handleSourceImport(w http.ResponseWriter, r *http.Request) {
	var req sourceDBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := req.validateConnection(); msg != "" {
		s.respondError(w, r, http.StatusBadRequest, msg, nil)
		return
	}
	if req.Table == "" && req.Query == "" {
		s.respondError(w, r, http.StatusBadRequest, "table or query is required", nil)
		return
	}
	if req.TableName == "" {
		s.respondError(w, r, http.StatusBadRequest, "table_name is required", nil)
		return
	}

	target, err := s.openTarget()
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to open target database", err)
		return
	}
	defer target.Close()

	driver := req.Driver
	if driver == "mariadb" {
		driver = "mysql"
	}
	imp := importer.New(target, importer.WithLogger(s.logger))
	dbImp, err := importer.NewDatabaseImporter(imp, driver, req.DSN)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to build importer", err)
		return
	}

	opts := req.runOptions()
	var result interface{}
	if req.Query != "" {
		result = dbImp.ImportQuery(r.Context(), req.Query, opts)
	} else {
		result = dbImp.ImportTable(r.Context(), req.Table, opts)
	}
	s.respondJSON(w, http.StatusOK, result)
}
