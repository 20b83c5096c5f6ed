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

// Package ingest writes transformed posts into the destination platform.
// Two interchangeable transports exist: direct storage inserts (StoreSink)
// and the destination's own creation endpoint (APISink). Either way a
// record that already exists is skipped, never an error, so re-running an
// ingest against the same snapshot is a no-op.
package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opslab/migrate/internal/crypto"
	"github.com/opslab/migrate/internal/models"
	"github.com/opslab/migrate/internal/wallstore"
)

// Sink is one transport into the destination. Insert returns whether the
// post was actually created; false means it already existed.
type Sink interface {
	Insert(ctx context.Context, post models.DestinationPost) (bool, error)
}

// Result summarises one ingestion run.
type Result struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Run pushes every post through the sink. Per-record failures are absorbed,
// counted, and attributed in the log; only the caller's context ending
// stops the loop early.
func Run(ctx context.Context, sink Sink, posts []models.DestinationPost) (Result, error) {
	var res Result

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		inserted, err := sink.Insert(ctx, post)
		if err != nil {
			slog.Warn("ingest failed for post",
				"id", post.ID,
				"category", post.Category,
				"error", err,
			)
			res.Failed++
			continue
		}

		if inserted {
			res.Inserted++
			slog.Info("post ingested", "id", post.ID, "category", post.Category)
		} else {
			res.Skipped++
			slog.Debug("post already present, skipped", "id", post.ID)
		}
	}

	slog.Info("ingestion complete",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

// StoreSink writes posts straight into wall_posts, encrypting content under
// the destination's active key. The "already exists" signal is the storage
// conflict on id.
type StoreSink struct {
	store   *wallstore.Store
	box     *crypto.Box
	ownerID uuid.UUID
}

// NewStoreSink resolves the active encryption key and the owner account,
// both exactly once per run. A missing key (wallstore.ErrNoKey) is fatal to
// the ingestion stage; the snapshot and transformed records stay valid for
// a retry once a key exists.
func NewStoreSink(ctx context.Context, store *wallstore.Store, ownerEmail string) (*StoreSink, error) {
	key, err := store.LatestKey(ctx)
	if err != nil {
		return nil, err
	}

	box, err := crypto.New(key.Material)
	if err != nil {
		return nil, err
	}

	ownerID, err := store.ResolveOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	slog.Info("store sink ready",
		"owner", ownerEmail,
		"key_created_at", key.CreatedAt,
	)
	return &StoreSink{store: store, box: box, ownerID: ownerID}, nil
}

// Insert encrypts the post content and performs the idempotent insert.
func (s *StoreSink) Insert(ctx context.Context, post models.DestinationPost) (bool, error) {
	encContent, err := s.box.Encrypt(post.Content)
	if err != nil {
		return false, err
	}
	return s.store.InsertPost(ctx, s.ownerID, post, encContent)
}
