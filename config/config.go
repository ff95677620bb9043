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

// Package config provides environment-driven configuration with sensible
// defaults, loaded once at startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	Target TargetConfig
	Upload UploadConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (TABPORT_ADDR, default ":8080").
	Addr string
}

// TargetConfig holds target-store settings.
type TargetConfig struct {
	// DBPath is the sqlite database file (TABPORT_DB, default "tabport.db").
	DBPath string
}

// UploadConfig holds upload handling settings.
type UploadConfig struct {
	// Dir is where uploaded source files are spooled
	// (TABPORT_UPLOAD_DIR, default os.TempDir()).
	Dir string
	// MaxFileSize caps multipart uploads in bytes
	// (TABPORT_MAX_FILE_SIZE, default 100MB).
	MaxFileSize int64
	// PreviewRows is how many rows preview endpoints return
	// (TABPORT_PREVIEW_ROWS, default 10).
	PreviewRows int
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error
	// (TABPORT_LOG_LEVEL, default "info").
	Level string
}

// Load reads a .env file when present, then the environment, and validates
// the result.
func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr: envString("TABPORT_ADDR", ":8080"),
		},
		Target: TargetConfig{
			DBPath: envString("TABPORT_DB", "tabport.db"),
		},
		Upload: UploadConfig{
			Dir:         envString("TABPORT_UPLOAD_DIR", os.TempDir()),
			MaxFileSize: envInt64("TABPORT_MAX_FILE_SIZE", 100<<20),
			PreviewRows: envInt("TABPORT_PREVIEW_ROWS", 10),
		},
		Log: LogConfig{
			Level: envString("TABPORT_LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.Target.DBPath == "" {
		return fmt.Errorf("config: target database path must not be empty")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("config: max file size must be positive, got %d", c.Upload.MaxFileSize)
	}
	if c.Upload.PreviewRows <= 0 {
		return fmt.Errorf("config: preview rows must be positive, got %d", c.Upload.PreviewRows)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
