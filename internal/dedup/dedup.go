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

// Package dedup tracks which legacy post IDs the destination's creation API
// has already accepted, using a Redis marker per id. The API transport has
// no storage-level conflict signal, so this is what makes it idempotent
// across crashed-and-restarted runs.
package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces migration markers in Redis.
const keyPrefix = "opslab:migrated:"

// Filter remembers which legacy post IDs have been ingested. Markers carry
// no TTL — a migrated post stays migrated.
type Filter struct {
	rdb *redis.Client
}

// NewFilter creates a dedup filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{rdb: rdb}
}

// Seen reports whether the post ID has already been ingested. Read-only:
// marking happens separately via Mark, only once the destination has
// actually accepted the record, so a failed push stays retryable.
func (f *Filter) Seen(ctx context.Context, postID string) (bool, error) {
	n, err := f.rdb.Exists(ctx, keyPrefix+postID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup EXISTS: %w", err)
	}
	return n > 0, nil
}

// Mark records the post ID as ingested.
func (f *Filter) Mark(ctx context.Context, postID string) error {
	if err := f.rdb.Set(ctx, keyPrefix+postID, 1, 0).Err(); err != nil {
		return fmt.Errorf("dedup SET: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	return f.rdb.Ping(ctx).Err()
}
