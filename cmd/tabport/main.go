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

// Command tabport imports tabular data files into a SQLite database, or
// serves the HTTP import API.
//
// Examples:
//
//	tabport -file people.csv -table contacts \
//	    -mapping '{"name":"Name","email":"Email"}' -unique email
//	tabport -file people.csv -preview 5
//	tabport -serve
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tabport/tabport/config"
	"github.com/tabport/tabport/core"
	"github.com/tabport/tabport/importer"
	"github.com/tabport/tabport/server"
	"github.com/tabport/tabport/sources"
	"github.com/tabport/tabport/store"
)

func main() {
	var (
		serve       = flag.Bool("serve", false, "start the HTTP API instead of running a one-shot import")
		addr        = flag.String("addr", "", "listen address (overrides TABPORT_ADDR)")
		dbPath      = flag.String("db", "", "target sqlite database path (overrides TABPORT_DB)")
		filePath    = flag.String("file", "", "source file to import")
		tableName   = flag.String("table", "", "target table name")
		mappingJSON = flag.String("mapping", "", `column mapping as JSON, e.g. '{"name":"Name"}'`)
		required    = flag.String("required", "", "comma-separated required target fields")
		unique      = flag.String("unique", "", "comma-separated unique target fields")
		emails      = flag.String("email", "", "comma-separated email-format target fields")
		batch       = flag.Bool("batch", false, "stage all rows in one transaction")
		preview     = flag.Int("preview", 0, "print the first N rows and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Target.DBPath = *dbPath
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *serve {
		runServer(cfg, logger)
		return
	}

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "either -serve or -file is required")
		flag.Usage()
		os.Exit(2)
	}

	src, err := sources.Open(*filePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer src.Close()

	ctx := context.Background()

	if *preview > 0 {
		runPreview(ctx, src, *preview)
		return
	}

	if *tableName == "" || *mappingJSON == "" {
		fmt.Fprintln(os.Stderr, "-table and -mapping are required for an import")
		os.Exit(2)
	}

	var mapping core.ColumnMapping
	if err := json.Unmarshal([]byte(*mappingJSON), &mapping); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -mapping: %v\n", err)
		os.Exit(2)
	}

	target, err := store.OpenSQLite(cfg.Target.DBPath, store.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer target.Close()

	imp := importer.New(target, importer.WithLogger(logger))
	result := imp.Run(ctx, src, importer.RunOptions{
		TableName: *tableName,
		Mapping:   mapping,
		Constraints: core.Constraints{
			Required:    splitList(*required),
			Unique:      splitList(*unique),
			EmailFields: splitList(*emails),
		},
		BatchCommit: *batch,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if result.RowsInserted == 0 && result.RowsSeen > 0 {
		os.Exit(1)
	}
}

func runServer(cfg *config.Config, logger *zap.Logger) {
	srv := server.New(cfg, logger)
	logger.Info("listening", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Router()); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runPreview(ctx context.Context, src core.RowSource, n int) {
	headers, err := src.Headers()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rows, err := src.Preview(ctx, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(map[string]interface{}{
		"headers": headers,
		"rows":    rows,
	}, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
