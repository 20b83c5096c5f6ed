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

// Package probe discovers which candidate endpoint, if any, serves a logical
// resource on a legacy origin. Legacy servers answer unknown routes with the
// SPA's HTML shell and HTTP 200, so a hit is a response that is both 2xx and
// structured JSON — status alone proves nothing.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Result is the outcome of discovering one logical resource.
type Result struct {
	Resource string
	Endpoint string          // candidate path that answered, empty on a total miss
	Status   int             // HTTP status of the accepted response
	Payload  json.RawMessage // nil when no candidate hit
}

// Found reports whether any candidate produced a structured payload.
func (r Result) Found() bool {
	return r.Payload != nil
}

// Prober issues one GET per candidate path and accepts the first structured
// response. Transport errors and misses are absorbed; a Result with no
// payload means the resource does not exist on this deployment.
type Prober struct {
	client *http.Client
}

// New creates a prober using the given authenticated HTTP client.
func New(client *http.Client) *Prober {
	return &Prober{client: client}
}

// Discover tries each candidate path in order against the origin and returns
// the first structured hit. Each candidate gets exactly one attempt.
func (p *Prober) Discover(ctx context.Context, origin, resource string, candidates []string) Result {
	for _, path := range candidates {
		res, status, err := p.Fetch(ctx, origin+path)
		if err != nil {
			slog.Debug("probe transport error",
				"resource", resource,
				"path", path,
				"error", err,
			)
			continue
		}
		if res == nil {
			slog.Debug("probe miss", "resource", resource, "path", path)
			continue
		}

		slog.Info("resource discovered",
			"resource", resource,
			"path", path,
			"status", status,
		)
		return Result{Resource: resource, Endpoint: path, Status: status, Payload: res}
	}

	slog.Warn("resource not found on origin",
		"resource", resource,
		"candidates", len(candidates),
	)
	return Result{Resource: resource}
}

// Fetch issues a single GET and returns the payload plus the response status
// if the response classifies as structured, a nil payload if it classifies
// as a miss, and an error only for transport failures. The status is the
// origin's actual answer, not normalized: some deployments serve resources
// with 201 or 206.
func (p *Prober) Fetch(ctx context.Context, fetchURL string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if !IsStructured(resp.StatusCode, resp.Header.Get("Content-Type"), body) {
		return nil, resp.StatusCode, nil
	}
	return json.RawMessage(body), resp.StatusCode, nil
}

// IsStructured is the hit/miss predicate: true only for a 2xx response whose
// body parses as a JSON object or array. An HTML 200 (SPA catch-all) is a
// miss, identical to a 404.
func IsStructured(status int, contentType string, body []byte) bool {
	if status < 200 || status >= 300 {
		return false
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "text/html" {
			return false
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	// Objects and arrays only: a bare string or number is not a resource
	// payload, and HTML starts with '<' which fails both checks.
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}

	return json.Valid(trimmed)
}

// WithQuery appends a single query parameter to a path, respecting any
// query string already present.
func WithQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + url.QueryEscape(value)
}
