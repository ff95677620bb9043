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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "tabport.db", cfg.Target.DBPath)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, 10, cfg.Upload.PreviewRows)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TABPORT_ADDR", "127.0.0.1:9000")
	t.Setenv("TABPORT_DB", "/var/lib/tabport/data.db")
	t.Setenv("TABPORT_PREVIEW_ROWS", "25")
	t.Setenv("TABPORT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/tabport/data.db", cfg.Target.DBPath)
	assert.Equal(t, 25, cfg.Upload.PreviewRows)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Setenv("TABPORT_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TABPORT_PREVIEW_ROWS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Upload.PreviewRows)
}
