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

// OpsLab Migration — Full Pipeline Command
//
// Runs the complete legacy migration for one source: authenticate against
// the legacy origin, discover and harvest its resources, persist the
// snapshot, transform feedback records, and re-ingest them into the
// destination platform.
//
// Usage:
//
//	go run ./cmd/migrate/ --source wall [--from-snapshot path] [--dry-run] [--via-api]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opslab/migrate/internal/config"
	"github.com/opslab/migrate/internal/dedup"
	"github.com/opslab/migrate/internal/harvest"
	"github.com/opslab/migrate/internal/ingest"
	"github.com/opslab/migrate/internal/models"
	"github.com/opslab/migrate/internal/negotiate"
	"github.com/opslab/migrate/internal/snapshot"
	"github.com/opslab/migrate/internal/transform"
	"github.com/opslab/migrate/internal/wallstore"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	sourceFlag := flag.String("source", "", "Source alias to migrate (required unless --from-snapshot)")
	snapshotFlag := flag.String("from-snapshot", "", "Re-run transform+ingest from an existing snapshot file")
	dryRunFlag := flag.Bool("dry-run", false, "Harvest and transform only; no destination writes")
	viaAPIFlag := flag.Bool("via-api", false, "Ingest through the destination's creation endpoint instead of direct inserts")
	flag.Parse()

	if *sourceFlag == "" && *snapshotFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --source or --from-snapshot is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	runID := uuid.New().String()
	slog.Info("starting migration run", "run_id", runID)

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Obtain the snapshot: harvest the origin, or reload a prior one ---
	var snap *snapshot.Snapshot
	if *snapshotFlag != "" {
		snap, err = snapshot.Load(*snapshotFlag)
		if err != nil {
			slog.Error("failed to load snapshot", "path", *snapshotFlag, "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot loaded",
			"source", snap.SourceName,
			"extracted_at", snap.ExtractedAt,
			"resources", snap.ResourceNames(),
		)
	} else {
		src := cfg.Source(*sourceFlag)
		if src == nil {
			slog.Error("source not found in configuration", "alias", *sourceFlag)
			os.Exit(1)
		}

		harvester := harvest.New(negotiate.New(&http.Client{Timeout: cfg.RequestTimeout}, nil))
		snap, err = harvester.Run(ctx, harvest.Request{
			Alias:  src.Alias,
			Origin: src.BaseURL,
			Email:  src.Email,
			Secret: src.Secret,
			Plan:   harvest.PlanFor(src.Alias),
		})
		if err != nil {
			slog.Error("harvest failed", "source", *sourceFlag, "error", err)
			os.Exit(1)
		}

		// Persist before any transformation: a transform bug must never
		// require re-contacting the origin.
		path, err := snap.Save(cfg.SnapshotDir)
		if err != nil {
			slog.Error("failed to persist snapshot", "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot persisted", "path", path)
	}

	// --- Transform ---
	posts, err := transform.Posts(snap)
	if err != nil {
		slog.Error("transform failed", "source", snap.SourceName, "error", err)
		os.Exit(1)
	}

	byCategory := make(map[models.Category]int)
	for _, p := range posts {
		byCategory[p.Category]++
	}
	slog.Info("transform complete",
		"source", snap.SourceName,
		"posts", len(posts),
		"celebration", byCategory[models.CategoryCelebration],
		"complaint", byCategory[models.CategoryComplaint],
		"support_needed", byCategory[models.CategorySupportNeeded],
		"suggestion", byCategory[models.CategorySuggestion],
	)

	if *dryRunFlag {
		slog.Info("dry run, skipping ingestion", "run_id", runID)
		return
	}
	if len(posts) == 0 {
		slog.Info("nothing to ingest", "run_id", runID)
		return
	}

	// --- Build the sink ---
	var sink ingest.Sink
	if *viaAPIFlag {
		sink, err = buildAPISink(ctx, cfg)
	} else {
		sink, err = buildStoreSink(ctx, cfg)
	}
	if err != nil {
		slog.Error("failed to initialise ingestion", "error", err)
		os.Exit(1)
	}

	// --- Ingest ---
	result, err := ingest.Run(ctx, sink, posts)
	if err != nil {
		slog.Error("ingestion aborted", "error", err)
		os.Exit(1)
	}

	slog.Info("migration run complete",
		"run_id", runID,
		"source", snap.SourceName,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	if result.Failed > 0 {
		os.Exit(1)
	}
}

func buildStoreSink(ctx context.Context, cfg *config.Config) (ingest.Sink, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not configured")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create Postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	store, err := wallstore.NewStore(ctx, pool)
	if err != nil {
		return nil, err
	}

	return ingest.NewStoreSink(ctx, store, cfg.OwnerEmail)
}

func buildAPISink(ctx context.Context, cfg *config.Config) (ingest.Sink, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("destination api_base_url is not configured")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	filter := dedup.NewFilter(rdb)
	if err := filter.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	slog.Info("connected to Redis")

	return ingest.NewAPISink(ctx, cfg.APIBaseURL, cfg.OwnerEmail, cfg.APICode, filter)
}
