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

package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

// TestRoundTrip verifies decrypt(encrypt(content)) == content for a range
// of content shapes, including the Cyrillic tag lines real posts carry.
func TestRoundTrip(t *testing.T) {
	box, err := New(testKey())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	contents := []string{
		"",
		"a",
		"plain ascii summary",
		"Команда чудово спрацювала\n\nТеги: команда, реліз",
		string(bytes.Repeat([]byte("x"), 10000)),
	}

	for _, content := range contents {
		enc, err := box.Encrypt(content)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", content, err)
		}

		dec, err := box.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt failed for %q: %v", content, err)
		}
		if dec != content {
			t.Errorf("round trip mismatch: got %q, want %q", dec, content)
		}
	}
}

// TestNonceUniqueness verifies two encryptions of the same content never
// produce identical ciphertext.
func TestNonceUniqueness(t *testing.T) {
	box, _ := New(testKey())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		enc, err := box.Encrypt("same content every time")
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[enc] {
			t.Fatal("two encryptions produced identical ciphertext")
		}
		seen[enc] = true
	}
}

// TestWireFormat verifies the output is base64(nonce12 ‖ ciphertext ‖ tag16),
// the exact layout the destination backend decrypts.
func TestWireFormat(t *testing.T) {
	box, _ := New(testKey())

	plaintext := "format check"
	enc, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("output is not standard base64: %v", err)
	}

	want := 12 + len(plaintext) + 16
	if len(raw) != want {
		t.Errorf("sealed length = %d, want %d (nonce + plaintext + tag)", len(raw), want)
	}
}

func TestInvalidKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := New(make([]byte, n)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("New with %d-byte key: got %v, want ErrInvalidKey", n, err)
		}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, _ := New(testKey())

	enc, _ := box.Encrypt("integrity matters")
	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := box.Decrypt(tampered); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered ciphertext: got %v, want ErrDecrypt", err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	box, _ := New(testKey())

	for _, in := range []string{"", "not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := box.Decrypt(in); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Decrypt(%q): got %v, want ErrDecrypt", in, err)
		}
	}
}

// TestKeyIsolation verifies a ciphertext is unreadable under a different key.
func TestKeyIsolation(t *testing.T) {
	box1, _ := New(testKey())

	otherKey := testKey()
	otherKey[0] ^= 0xFF
	box2, _ := New(otherKey)

	enc, _ := box1.Encrypt("secret")
	if _, err := box2.Decrypt(enc); err == nil {
		t.Fatal("decryption under a different key should fail")
	}
}
