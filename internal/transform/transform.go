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

// Package transform maps legacy feedback records into destination posts.
// Pure: no I/O, no clock, deterministic for a given snapshot.
package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opslab/migrate/internal/models"
	"github.com/opslab/migrate/internal/snapshot"
)

// FeedbackResource is the snapshot resource name holding the feedback list.
const FeedbackResource = "feedbacks"

// aspectCategory maps a known work aspect to a category. Aspect is a
// stronger signal than sentiment, so this table wins when both exist.
var aspectCategory = map[string]models.Category{
	"team":       models.CategoryCelebration,
	"management": models.CategoryComplaint,
	"workload":   models.CategorySupportNeeded,
}

// sentimentCategory is the fallback when the aspect is absent or unknown.
var sentimentCategory = map[string]models.Category{
	"positive": models.CategoryCelebration,
	"negative": models.CategoryComplaint,
	"mixed":    models.CategorySuggestion,
}

// Categorize resolves the destination category for a legacy record:
// aspect table first, sentiment table second, SUGGESTION as the documented
// default. Total — every input combination maps to exactly one category.
func Categorize(workAspect, sentiment string) models.Category {
	if c, ok := aspectCategory[workAspect]; ok {
		return c
	}
	if c, ok := sentimentCategory[sentiment]; ok {
		return c
	}
	return models.CategorySuggestion
}

// Content reconstructs post text from what the legacy system retained: the
// AI summary plus a rendered tag line. The original free text was never
// stored upstream, so this is lossy by construction, not by accident.
func Content(rec models.LegacyFeedbackRecord) string {
	if len(rec.Tags) == 0 {
		return rec.Summary
	}
	return fmt.Sprintf("%s\n\nТеги: %s", rec.Summary, strings.Join(rec.Tags, ", "))
}

// Posts converts every feedback record in the snapshot into a destination
// post. Records missing both aspect and sentiment are logged and defaulted,
// never dropped. Returns nil with no error when the snapshot has no
// feedback resource — an absent resource is a valid partial harvest.
func Posts(snap *snapshot.Snapshot) ([]models.DestinationPost, error) {
	payload := snap.Resource(FeedbackResource)
	if payload == nil {
		slog.Info("snapshot has no feedback resource, nothing to transform",
			"source", snap.SourceName,
		)
		return nil, nil
	}

	var records []models.LegacyFeedbackRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("parse feedback resource: %w", err)
	}

	posts := make([]models.DestinationPost, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			slog.Warn("feedback record has no id, skipping", "source", snap.SourceName)
			continue
		}

		if aspectCategory[rec.WorkAspect] == "" && sentimentCategory[rec.Sentiment] == "" {
			slog.Warn("feedback record has neither aspect nor sentiment, defaulting to SUGGESTION",
				"id", rec.ID,
			)
		}

		posts = append(posts, models.DestinationPost{
			ID:       rec.ID,
			Content:  Content(rec),
			Category: Categorize(rec.WorkAspect, rec.Sentiment),
			// The legacy system categorised these with its own AI pass, and
			// the reconstructed content is lossy; the flag marks both.
			AICategorized: true,
			IsAnonymous:   true,
			CreatedAt:     rec.CreatedAt,
		})
	}

	return posts, nil
}
