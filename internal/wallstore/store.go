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

// Package wallstore provides Postgres access to the destination platform's
// wall_posts table, its encryption key registry, and the owner lookup. The
// pipeline reads keys and users; the only table it writes is wall_posts.
package wallstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opslab/migrate/internal/models"
)

// ErrNoKey indicates the destination has no registered encryption key.
// Fatal to ingestion: content cannot be stored unencrypted.
var ErrNoKey = errors.New("no encryption key registered in destination")

// ErrOwnerNotFound indicates the configured owner account does not exist.
var ErrOwnerNotFound = errors.New("owner account not found in destination")

// Store provides destination-side operations for re-ingestion.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a destination store backed by the given Postgres pool.
// It ensures the touched tables exist so the pipeline can run against a
// fresh database in tests and staging; on the production destination the
// statements are no-ops.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure destination schema: %w", err)
	}
	slog.Info("destination store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email      TEXT NOT NULL UNIQUE,
			full_name  TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS encryption_keys (
			id         BIGSERIAL PRIMARY KEY,
			key_hex    TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS wall_posts (
			id             UUID PRIMARY KEY,
			user_id        UUID NOT NULL REFERENCES users(id),
			enc_content    BYTEA NOT NULL,
			category       TEXT NOT NULL,
			ai_categorized BOOLEAN DEFAULT FALSE,
			is_anonymous   BOOLEAN DEFAULT TRUE,
			created_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wall_posts_created ON wall_posts(created_at);
	`)
	return err
}

// LatestKey returns the most recently created encryption key. The pipeline
// never creates or rotates keys; an empty registry is ErrNoKey.
func (s *Store) LatestKey(ctx context.Context) (*models.EncryptionKey, error) {
	var keyHex string
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT key_hex, created_at
		FROM encryption_keys
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&keyHex, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, fmt.Errorf("query encryption key: %w", err)
	}

	material, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}

	return &models.EncryptionKey{Material: material, CreatedAt: createdAt}, nil
}

// ResolveOwner returns the user id for the administrative account that
// imported anonymous posts attribute to. Looked up once per run.
func (s *Store) ResolveOwner(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM users WHERE email = $1
	`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, email)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query owner: %w", err)
	}
	return id, nil
}

// InsertPost performs the idempotent insert: a post whose id already exists
// is a no-op, reported as inserted=false and never an error. The encrypted
// content is stored as the backend does — base64 text bytes in a bytea.
func (s *Store) InsertPost(ctx context.Context, ownerID uuid.UUID, post models.DestinationPost, encContent string) (bool, error) {
	var createdAt *string
	if post.CreatedAt != "" {
		createdAt = &post.CreatedAt
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO wall_posts (id, user_id, enc_content, category, ai_categorized, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, NOW()))
		ON CONFLICT (id) DO NOTHING
	`, post.ID, ownerID, []byte(encContent), string(post.Category), post.AICategorized, post.IsAnonymous, createdAt)
	if err != nil {
		return false, fmt.Errorf("insert wall post %s: %w", post.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}
