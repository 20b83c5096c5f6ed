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

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opslab/migrate/internal/models"
	"github.com/opslab/migrate/internal/negotiate"
)

// wallPostPath is the destination's own creation endpoint. The backend
// encrypts content itself on this path, so the API transport sends
// plaintext over TLS and stores nothing unencrypted.
const wallPostPath = "/feedback/wall"

// SeenFilter tracks which post ids the destination has already accepted.
// Implemented by dedup.Filter.
type SeenFilter interface {
	Seen(ctx context.Context, postID string) (bool, error)
	Mark(ctx context.Context, postID string) error
}

// APISink creates posts through the destination web API, authenticated as
// the resolved owner. The API carries no storage conflict signal, so
// cross-run idempotency comes from the seen filter; a duplicate-content
// rejection from the API is likewise a skip, not an error.
type APISink struct {
	client  *http.Client
	baseURL string
	filter  SeenFilter
}

// NewAPISink logs into the destination API as the owner account. The
// destination's login contract is known (email + code), so the negotiation
// table collapses to a single candidate.
func NewAPISink(ctx context.Context, baseURL, ownerEmail, code string, filter SeenFilter) (*APISink, error) {
	neg := negotiate.New(&http.Client{Timeout: 30 * time.Second}, []negotiate.Candidate{
		{Path: "/auth/login", SecretField: "code"},
	})

	sess, err := neg.Authenticate(ctx, baseURL, ownerEmail, code)
	if err != nil {
		return nil, fmt.Errorf("login to destination API: %w", err)
	}

	slog.Info("api sink ready", "owner", ownerEmail, "base_url", baseURL)
	return &APISink{
		client:  sess.Client(ctx),
		baseURL: baseURL,
		filter:  filter,
	}, nil
}

// Insert posts the content as the owner. Already-migrated ids (per the
// seen filter) and duplicate rejections both report inserted=false. The
// marker is written only once the destination has answered 2xx or rejected
// the content as a duplicate: a failed push leaves no marker behind, so a
// later run retries the record instead of skipping it forever.
func (a *APISink) Insert(ctx context.Context, post models.DestinationPost) (bool, error) {
	if a.filter != nil {
		seen, err := a.filter.Seen(ctx, post.ID)
		if err != nil {
			return false, fmt.Errorf("dedup check: %w", err)
		}
		if seen {
			return false, nil
		}
	}

	payload, err := json.Marshal(map[string]string{"content": post.Content})
	if err != nil {
		return false, fmt.Errorf("marshal post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+wallPostPath, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("post to destination: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return true, a.mark(ctx, post.ID)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		// Destination already holds equivalent content.
		return false, a.mark(ctx, post.ID)
	default:
		return false, fmt.Errorf("destination API returned HTTP %d for post %s", resp.StatusCode, post.ID)
	}
}

func (a *APISink) mark(ctx context.Context, postID string) error {
	if a.filter == nil {
		return nil
	}
	if err := a.filter.Mark(ctx, postID); err != nil {
		return fmt.Errorf("mark %s as migrated: %w", postID, err)
	}
	return nil
}
