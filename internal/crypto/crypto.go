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

// Package crypto provides AES-256-GCM encryption in the exact format the
// destination backend uses for wall post content: base64(nonce ‖ ciphertext ‖ tag)
// with a 12-byte nonce. Posts encrypted here are decryptable by the backend
// with no format shim.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	nonceSize = 12
)

var (
	// ErrInvalidKey indicates key material of the wrong length.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")

	// ErrDecrypt indicates a malformed or tampered ciphertext.
	ErrDecrypt = errors.New("decryption failed")
)

// Box encrypts and decrypts content under a single symmetric key.
type Box struct {
	aead cipher.AEAD
}

// New creates a Box from raw key material.
func New(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce ‖ ciphertext ‖ tag).
// The nonce is drawn from crypto/rand on every call; callers cannot supply
// one, so nonce reuse under a key is not expressible through this API.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Used by tests and by --dry-run verification;
// the destination backend performs its own decryption in production.
func (b *Box) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(data) <= nonceSize {
		return "", ErrDecrypt
	}

	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
