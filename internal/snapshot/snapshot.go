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

// Package snapshot persists the harvested raw data of one legacy source as a
// durable JSON artifact. The snapshot is the hand-off point between
// extraction and transformation: once written, later stages never contact
// the (likely unreachable) origin again.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot holds everything successfully harvested from one origin.
// Resources that never resolved are simply absent from the map, so the file
// itself answers "what did we actually get".
type Snapshot struct {
	SourceName  string                     `json:"source_name"`
	ExtractedAt time.Time                  `json:"extracted_at"`
	Resources   map[string]json.RawMessage `json:"resources"`
}

// New creates an empty snapshot for a source.
func New(sourceName string) *Snapshot {
	return &Snapshot{
		SourceName:  sourceName,
		ExtractedAt: time.Now().UTC(),
		Resources:   make(map[string]json.RawMessage),
	}
}

// Put records a harvested payload under a resource name.
func (s *Snapshot) Put(name string, payload json.RawMessage) {
	s.Resources[name] = payload
}

// Resource returns the raw payload for a resource name, or nil when the
// resource was not harvested.
func (s *Snapshot) Resource(name string) json.RawMessage {
	return s.Resources[name]
}

// ResourceNames returns the harvested resource names, sorted.
func (s *Snapshot) ResourceNames() []string {
	names := make([]string, 0, len(s.Resources))
	for name := range s.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the snapshot under dir and returns the file path. The write
// goes through a temp file and rename so a crash never leaves a truncated
// artifact behind.
func (s *Snapshot) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", s.SourceName, s.ExtractedAt.Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename snapshot: %w", err)
	}

	slog.Info("snapshot written",
		"source", s.SourceName,
		"path", path,
		"resources", len(s.Resources),
	)
	return path, nil
}

// Load re-reads a snapshot file written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if s.Resources == nil {
		s.Resources = make(map[string]json.RawMessage)
	}
	return &s, nil
}
