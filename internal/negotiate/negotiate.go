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

// Package negotiate authenticates against a legacy origin whose login
// contract is undocumented. It walks a fixed, ordered table of
// (path, secret-field) candidates and accepts the first 2xx response with a
// parseable body, extracting either a bearer token or a session cookie.
package negotiate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// ErrAuthFailed indicates every login candidate was tried exactly once and
// none succeeded. Never retried: the origins are long-decommissioned, so a
// repeated failure is terminal for the run.
var ErrAuthFailed = errors.New("all login candidates exhausted")

// Candidate is one (path, secret-field) login shape to attempt.
type Candidate struct {
	Path        string // login path relative to the origin
	SecretField string // JSON key the secret is submitted under
}

// DefaultCandidates is the login shapes observed across the known legacy
// deployments, cheapest and most likely first.
var DefaultCandidates = []Candidate{
	{Path: "/api/auth/login", SecretField: "password"},
	{Path: "/api/auth/login", SecretField: "code"},
	{Path: "/auth/login", SecretField: "password"},
	{Path: "/auth/login", SecretField: "code"},
}

// Identity is the authenticated principal as reported by the origin.
// All fields are optional; cookie-based origins report nothing.
type Identity struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session is an authenticated handle on one legacy origin. It is owned by
// the harvester for the duration of one source's extraction and discarded
// after; no credential outlives the process.
type Session struct {
	Origin   string
	Token    string // bearer token, empty for cookie sessions
	Jar      http.CookieJar
	Identity Identity
	Timeout  time.Duration // inherited from the negotiator's base client
}

// Client returns an HTTP client that carries the session's credentials and
// the negotiator's request timeout. Bearer sessions attach the token via an
// oauth2 static token source; cookie sessions carry the jar populated at
// login.
func (s *Session) Client(ctx context.Context) *http.Client {
	if s.Token != "" {
		c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.Token}))
		c.Timeout = s.Timeout
		return c
	}
	return &http.Client{Jar: s.Jar, Timeout: s.Timeout}
}

// loginResponse is the body shape of a successful token-issuing login.
type loginResponse struct {
	AccessToken string   `json:"access_token"`
	User        Identity `json:"user"`
}

// Negotiator tries login candidates against an origin.
type Negotiator struct {
	httpClient *http.Client
	candidates []Candidate
}

// New creates a negotiator using the given base HTTP client (timeouts are
// the caller's concern) and candidate table. A nil candidates slice uses
// DefaultCandidates.
func New(httpClient *http.Client, candidates []Candidate) *Negotiator {
	if candidates == nil {
		candidates = DefaultCandidates
	}
	return &Negotiator{httpClient: httpClient, candidates: candidates}
}

// Authenticate tries each candidate in order, once, and returns a Session
// for the first success. Returns ErrAuthFailed when the table is exhausted.
func (n *Negotiator) Authenticate(ctx context.Context, origin, email, secret string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	// A dedicated client per negotiation so login cookies land in a fresh jar.
	client := &http.Client{
		Jar:       jar,
		Timeout:   n.httpClient.Timeout,
		Transport: n.httpClient.Transport,
	}

	for _, c := range n.candidates {
		sess, err := n.try(ctx, client, jar, origin, email, secret, c)
		if err != nil {
			slog.Debug("login candidate missed",
				"origin", origin,
				"path", c.Path,
				"secret_field", c.SecretField,
				"error", err,
			)
			continue
		}

		slog.Info("authenticated against legacy origin",
			"origin", origin,
			"path", c.Path,
			"secret_field", c.SecretField,
			"token", sess.Token != "",
			"identity", sess.Identity.FullName,
			"role", sess.Identity.Role,
		)
		return sess, nil
	}

	return nil, fmt.Errorf("%w: origin %s", ErrAuthFailed, origin)
}

// try issues a single login request for one candidate.
func (n *Negotiator) try(ctx context.Context, client *http.Client, jar http.CookieJar, origin, email, secret string, c Candidate) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"email":       email,
		c.SecretField: secret,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login payload: %w", err)
	}

	loginURL := origin + c.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("login returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("parse login response: %w", err)
	}

	sess := &Session{
		Origin:   origin,
		Token:    lr.AccessToken,
		Jar:      jar,
		Identity: lr.User,
		Timeout:  n.httpClient.Timeout,
	}

	if sess.Token != "" {
		return sess, nil
	}

	// No token in the body — fall back to session cookies set on the response.
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if len(jar.Cookies(u)) == 0 {
		return nil, errors.New("login succeeded but issued neither token nor cookie")
	}

	return sess, nil
}
