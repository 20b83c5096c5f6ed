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

package negotiate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// loginAttempt records one login request the mock origin saw.
type loginAttempt struct {
	path   string
	fields map[string]string
}

// mockOrigin is a legacy origin accepting exactly one login shape.
type mockOrigin struct {
	mu       sync.Mutex
	attempts []loginAttempt

	acceptPath  string
	acceptField string
	issueToken  bool
	issueCookie bool
}

func (m *mockOrigin) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)

		m.mu.Lock()
		m.attempts = append(m.attempts, loginAttempt{path: r.URL.Path, fields: body})
		m.mu.Unlock()

		_, hasField := body[m.acceptField]
		if r.URL.Path != m.acceptPath || !hasField {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}

		if m.issueCookie {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "cookie-session-value", Path: "/"})
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"user": map[string]string{"id": "u-1", "full_name": "Admin", "role": "admin"},
		}
		if m.issueToken {
			resp["access_token"] = "token-abc"
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// TestAuthenticate_BearerToken verifies the common case: a later candidate
// matches, earlier candidates are each tried exactly once first, and the
// session carries the bearer token and identity.
func TestAuthenticate_BearerToken(t *testing.T) {
	origin := &mockOrigin{acceptPath: "/auth/login", acceptField: "password", issueToken: true}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	n := New(server.Client(), nil)
	sess, err := n.Authenticate(context.Background(), server.URL, "admin@opslab.dev", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if sess.Token != "token-abc" {
		t.Errorf("token = %q, want token-abc", sess.Token)
	}
	if sess.Identity.FullName != "Admin" || sess.Identity.Role != "admin" {
		t.Errorf("identity = %+v", sess.Identity)
	}

	// /api/auth/login (password, code) must have been tried first, once each.
	wantOrder := []loginAttempt{
		{path: "/api/auth/login"},
		{path: "/api/auth/login"},
		{path: "/auth/login"},
	}
	if len(origin.attempts) != len(wantOrder) {
		t.Fatalf("attempt count = %d, want %d", len(origin.attempts), len(wantOrder))
	}
	for i, want := range wantOrder {
		if origin.attempts[i].path != want.path {
			t.Errorf("attempt %d path = %q, want %q", i, origin.attempts[i].path, want.path)
		}
	}
	if _, ok := origin.attempts[0].fields["password"]; !ok {
		t.Error("first attempt should submit the secret as password")
	}
	if _, ok := origin.attempts[1].fields["code"]; !ok {
		t.Error("second attempt should submit the secret as code")
	}
}

// TestAuthenticate_CookieFallback verifies a login that sets a session
// cookie but returns no token still yields a usable session.
func TestAuthenticate_CookieFallback(t *testing.T) {
	origin := &mockOrigin{acceptPath: "/api/auth/login", acceptField: "code", issueCookie: true}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	n := New(server.Client(), nil)
	sess, err := n.Authenticate(context.Background(), server.URL, "admin@opslab.dev", "0000")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if sess.Token != "" {
		t.Errorf("token = %q, want empty for cookie session", sess.Token)
	}
	if sess.Jar == nil {
		t.Fatal("cookie session has no jar")
	}

	// The jar must hold the origin's session cookie for follow-up requests.
	var gotCookie string
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/whoami", nil)
	for _, c := range sess.Jar.Cookies(req.URL) {
		if c.Name == "session" {
			gotCookie = c.Value
		}
	}
	if gotCookie != "cookie-session-value" {
		t.Errorf("session cookie = %q, want cookie-session-value", gotCookie)
	}
}

// TestAuthenticate_AllCandidatesExhausted verifies every candidate is tried
// exactly once and the failure is ErrAuthFailed.
func TestAuthenticate_AllCandidatesExhausted(t *testing.T) {
	origin := &mockOrigin{acceptPath: "/nope", acceptField: "never"}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	n := New(server.Client(), nil)
	_, err := n.Authenticate(context.Background(), server.URL, "admin@opslab.dev", "wrong")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}

	if len(origin.attempts) != len(DefaultCandidates) {
		t.Errorf("attempt count = %d, want %d (each candidate exactly once)",
			len(origin.attempts), len(DefaultCandidates))
	}
}

// TestAuthenticate_SuccessWithoutCredentialIsRejected verifies a 2xx login
// that issues neither token nor cookie does not produce a session.
func TestAuthenticate_SuccessWithoutCredentialIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	n := New(server.Client(), nil)
	_, err := n.Authenticate(context.Background(), server.URL, "admin@opslab.dev", "x")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

// TestSessionClient_BearerHeader verifies the bearer session client attaches
// the Authorization header.
func TestSessionClient_BearerHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sess := &Session{Origin: server.URL, Token: "token-xyz"}
	client := sess.Client(context.Background())

	resp, err := client.Get(server.URL + "/api/stats")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer token-xyz" {
		t.Errorf("Authorization = %q, want Bearer token-xyz", gotAuth)
	}
}

// TestSessionClient_CarriesTimeout verifies both session kinds propagate the
// negotiator's request timeout, so a hung origin cannot stall the run.
func TestSessionClient_CarriesTimeout(t *testing.T) {
	bearer := &Session{Token: "token-xyz", Timeout: 5 * time.Second}
	if got := bearer.Client(context.Background()).Timeout; got != 5*time.Second {
		t.Errorf("bearer client timeout = %v, want 5s", got)
	}

	jar, _ := cookiejar.New(nil)
	cookie := &Session{Jar: jar, Timeout: 5 * time.Second}
	if got := cookie.Client(context.Background()).Timeout; got != 5*time.Second {
		t.Errorf("cookie client timeout = %v, want 5s", got)
	}
}

// TestAuthenticate_SessionInheritsTimeout verifies Authenticate stamps the
// base client's timeout onto the session it returns.
func TestAuthenticate_SessionInheritsTimeout(t *testing.T) {
	origin := &mockOrigin{acceptPath: "/api/auth/login", acceptField: "password", issueToken: true}
	server := httptest.NewServer(origin.handler())
	defer server.Close()

	base := server.Client()
	base.Timeout = 7 * time.Second

	n := New(base, nil)
	sess, err := n.Authenticate(context.Background(), server.URL, "admin@opslab.dev", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if sess.Timeout != 7*time.Second {
		t.Errorf("session timeout = %v, want 7s", sess.Timeout)
	}
	if got := sess.Client(context.Background()).Timeout; got != 7*time.Second {
		t.Errorf("session client timeout = %v, want 7s", got)
	}
}

// TestSessionClient_TimeoutAborts verifies a slow endpoint actually trips
// the timeout on a session client.
func TestSessionClient_TimeoutAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	sess := &Session{Token: "token-xyz", Timeout: 50 * time.Millisecond}
	client := sess.Client(context.Background())

	if _, err := client.Get(server.URL + "/api/stats"); err == nil {
		t.Fatal("expected timeout error from slow endpoint")
	}
}
