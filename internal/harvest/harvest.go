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

// Package harvest orchestrates one legacy source's extraction: authenticate
// once, probe each planned resource, fan out over discovered sub-keys, and
// materialise everything into a snapshot. Resource failures are independent;
// a partial snapshot is a valid and expected outcome.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/opslab/migrate/internal/negotiate"
	"github.com/opslab/migrate/internal/probe"
	"github.com/opslab/migrate/internal/snapshot"
)

// Request defines one source's extraction run.
type Request struct {
	Alias   string
	Origin  string
	Email   string
	Secret  string
	Plan    Plan
	// PageDelay paces sequential requests so the fragile origin is never hit
	// in bursts. Zero means the default.
	PageDelay time.Duration
}

// Harvester runs extraction against legacy origins.
type Harvester struct {
	negotiator *negotiate.Negotiator
	pageDelay  time.Duration
}

// New creates a harvester. The negotiator supplies authenticated sessions.
func New(negotiator *negotiate.Negotiator) *Harvester {
	return &Harvester{
		negotiator: negotiator,
		pageDelay:  250 * time.Millisecond,
	}
}

// Run extracts one source into a snapshot. The only fatal error is a failed
// authentication; every resource-level failure is absorbed and the resource
// left out of the snapshot.
func (h *Harvester) Run(ctx context.Context, req Request) (*snapshot.Snapshot, error) {
	start := time.Now()
	delay := req.PageDelay
	if delay == 0 {
		delay = h.pageDelay
	}

	sess, err := h.negotiator.Authenticate(ctx, req.Origin, req.Email, req.Secret)
	if err != nil {
		return nil, fmt.Errorf("harvest %s: %w", req.Alias, err)
	}

	prober := probe.New(sess.Client(ctx))
	snap := snapshot.New(req.Alias)

	// Endpoint shapes discovered per resource, needed for fan-out fetches.
	endpoints := make(map[string]string)

	for i, res := range req.Plan.Resources {
		if i > 0 {
			if err := pause(ctx, delay); err != nil {
				return snap, err
			}
		}

		result := prober.Discover(ctx, req.Origin, res.Name, res.Candidates)
		if !result.Found() {
			continue
		}
		snap.Put(res.Name, result.Payload)
		endpoints[res.Name] = result.Endpoint
	}

	for _, fo := range req.Plan.FanOuts {
		h.fanOut(ctx, prober, snap, req.Origin, endpoints, fo, delay)
	}

	slog.Info("harvest complete",
		"source", req.Alias,
		"resources", len(snap.Resources),
		"elapsed", time.Since(start),
	)
	return snap, nil
}

// fanOut performs one additional GET per sub-key of a resolved list
// resource, reusing the endpoint shape discovered for the target resource.
// Sequential on purpose: volumes are small and the origin is fragile.
func (h *Harvester) fanOut(ctx context.Context, prober *probe.Prober, snap *snapshot.Snapshot, origin string, endpoints map[string]string, fo FanOut, delay time.Duration) {
	listPayload := snap.Resource(fo.ListResource)
	if listPayload == nil {
		slog.Debug("fan-out skipped, list resource absent", "list", fo.ListResource)
		return
	}
	endpoint, ok := endpoints[fo.Target]
	if !ok {
		slog.Debug("fan-out skipped, target endpoint unknown", "target", fo.Target)
		return
	}

	keys, err := scalarKeys(listPayload)
	if err != nil {
		slog.Warn("fan-out list is not a scalar array",
			"list", fo.ListResource,
			"error", err,
		)
		return
	}

	for _, key := range keys {
		if err := pause(ctx, delay); err != nil {
			return
		}

		fetchURL := origin + probe.WithQuery(endpoint, fo.Param, key)
		payload, _, err := prober.Fetch(ctx, fetchURL)
		if err != nil {
			slog.Warn("fan-out fetch failed",
				"target", fo.Target,
				"key", key,
				"error", err,
			)
			continue
		}
		if payload == nil {
			slog.Warn("fan-out fetch missed", "target", fo.Target, "key", key)
			continue
		}

		snap.Put(fmt.Sprintf("%s_%s", fo.Target, key), payload)
	}
}

// scalarKeys decodes a JSON array of strings/numbers into query-ready strings.
func scalarKeys(payload json.RawMessage) ([]string, error) {
	var values []any
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			keys = append(keys, t)
		case float64:
			keys = append(keys, strconv.FormatFloat(t, 'f', -1, 64))
		default:
			return nil, fmt.Errorf("unsupported key type %T", v)
		}
	}
	return keys, nil
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
