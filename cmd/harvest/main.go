// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// OpsLab Migration — Harvest Command
//
// Extraction-only tool: authenticates against each configured legacy
// source, probes its API surface, and writes one snapshot file per source.
// Useful for inspecting what a legacy deployment actually serves before
// committing to an ingestion.
//
// A source that fails to authenticate is logged and skipped; the remaining
// sources are still attempted.
//
// Usage:
//
//	go run ./cmd/harvest/ [--source wall]
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opslab/migrate/internal/config"
	"github.com/opslab/migrate/internal/harvest"
	"github.com/opslab/migrate/internal/negotiate"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	sourceFlag := flag.String("source", "", "Source alias to harvest (empty = all configured sources)")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	sources := cfg.Sources
	if len(sources) == 0 {
		slog.Error("no sources configured, check config.yaml and environment variables")
		os.Exit(1)
	}
	if *sourceFlag != "" {
		src := cfg.Source(*sourceFlag)
		if src == nil {
			slog.Error("source not found in configuration", "alias", *sourceFlag)
			os.Exit(1)
		}
		sources = []config.SourceConfig{*src}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	harvester := harvest.New(negotiate.New(&http.Client{Timeout: cfg.RequestTimeout}, nil))

	harvested := 0
	for _, src := range sources {
		slog.Info("harvesting source", "alias", src.Alias, "origin", src.BaseURL)

		snap, err := harvester.Run(ctx, harvest.Request{
			Alias:  src.Alias,
			Origin: src.BaseURL,
			Email:  src.Email,
			Secret: src.Secret,
			Plan:   harvest.PlanFor(src.Alias),
		})
		if err != nil {
			// Auth failure is terminal for this source only.
			slog.Error("harvest failed for source", "alias", src.Alias, "error", err)
			continue
		}

		path, err := snap.Save(cfg.SnapshotDir)
		if err != nil {
			slog.Error("failed to persist snapshot", "alias", src.Alias, "error", err)
			continue
		}

		slog.Info("source harvested",
			"alias", src.Alias,
			"path", path,
			"resources", snap.ResourceNames(),
		)
		harvested++
	}

	slog.Info("harvest run complete",
		"sources", len(sources),
		"harvested", harvested,
	)

	if harvested == 0 {
		os.Exit(1)
	}
}
