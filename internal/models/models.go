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

// Package models defines the data structures shared across the migration pipeline.
package models

import "time"

// Category is the destination platform's post category enum.
// Values must match the Postgres check constraint on wall_posts.category.
type Category string

const (
	CategoryCelebration   Category = "CELEBRATION"
	CategoryComplaint     Category = "COMPLAINT"
	CategorySupportNeeded Category = "SUPPORT_NEEDED"
	CategorySuggestion    Category = "SUGGESTION"
)

// LegacyFeedbackRecord is a feedback post as the legacy origin serialised it.
// The legacy system discarded the original free text; only the AI summary and
// tag list survive. Immutable once extracted.
type LegacyFeedbackRecord struct {
	ID         string   `json:"id"`
	CreatedAt  string   `json:"created_at"`
	Sentiment  string   `json:"sentiment"`   // "positive", "negative", "mixed" or empty
	WorkAspect string   `json:"work_aspect"` // "team", "management", "workload", … or empty
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
}

// DestinationPost is a wall post ready for the destination store. ID is
// carried over verbatim from the legacy record, which is what makes
// re-ingestion idempotent: the destination's unique constraint turns a
// repeated insert into a no-op.
type DestinationPost struct {
	ID            string
	Content       string // reconstructed plaintext, encrypted at ingest time
	Category      Category
	AICategorized bool
	IsAnonymous   bool
	CreatedAt     string // RFC 3339 string as extracted; empty = destination default
}

// EncryptionKey is one entry of the destination's key registry. The pipeline
// only ever reads the most recently created key; it never writes this table.
type EncryptionKey struct {
	Material  []byte // 32 bytes, AES-256
	CreatedAt time.Time
}
