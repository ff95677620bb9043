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
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tabport/tabport/importer"
	"github.com/tabport/tabport/sources"
)

// handleUpload spools a multipart source file and registers it under a fresh
// upload id. The file keeps its extension so the source registry can pick the
// right parser later.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "file too large or invalid form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "no file provided", err)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !supportedExtension(ext) {
		s.respondError(w, r, http.StatusBadRequest, "unsupported file type "+ext, nil)
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.cfg.Upload.Dir, "tabport-"+id+ext)
	dst, err := os.Create(path)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		s.respondError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		s.respondError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}

	up := upload{ID: id, Filename: header.Filename, Path: path}
	s.mu.Lock()
	s.uploads[id] = up
	s.mu.Unlock()

	s.logger.Info("stored upload",
		zap.String("upload_id", id),
		zap.String("filename", header.Filename))
	s.respondJSON(w, http.StatusCreated, up)
}

func supportedExtension(ext string) bool {
	for _, known := range sources.Extensions() {
		if ext == known {
			return true
		}
	}
	return false
}

// lookupUpload resolves an upload id from the URL.
func (s *Server) lookupUpload(r *http.Request) (upload, bool) {
	id := chi.URLParam(r, "uploadID")
	s.mu.RLock()
	up, ok := s.uploads[id]
	s.mu.RUnlock()
	return up, ok
}

// handleHeaders returns the source's header row.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	up, ok := s.lookupUpload(r)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "unknown upload id", nil)
		return
	}

	src, err := sources.Open(up.Path)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to open source", err)
		return
	}
	defer src.Close()

	headers, err := src.Headers()
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "failed to read headers", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"headers": headers})
}

// handlePreview returns up to ?rows= leading rows (configured default).
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, ok := s.lookupUpload(r)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "unknown upload id", nil)
		return
	}

	n := s.cfg.Upload.PreviewRows
	if raw := r.URL.Query().Get("rows"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	src, err := sources.Open(up.Path)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to open source", err)
		return
	}
	defer src.Close()

	rows, err := src.Preview(r.Context(), n)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "failed to preview source", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

// handleImport runs the full pipeline for a stored upload and returns the
// ledger. The import itself never fails the request: run-level problems are
// entries in the returned result.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	up, ok := s.lookupUpload(r)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "unknown upload id", nil)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TableName == "" || len(req.Mapping) == 0 {
		s.respondError(w, r, http.StatusBadRequest, "table_name and mapping are required", nil)
		return
	}

	src, err := sources.Open(up.Path)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to open source", err)
		return
	}
	defer src.Close()

	target, err := s.openTarget()
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to open target database", err)
		return
	}
	defer target.Close()

	imp := importer.New(target, importer.WithLogger(s.logger))
	result := imp.Run(r.Context(), src, req.runOptions())
	s.respondJSON(w, http.StatusOK, result)
}
