// Package metadata implements the schema-flexible attribute bag attached to
// canonical games, identity links, and match clusters.
//
// Bags are string-to-string maps serialized as JSON with sorted keys so the
// stored form is stable across round trips and diffable in the database. Merge
// semantics are non-destructive: existing non-empty values always win.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Bag holds free-form descriptive attributes keyed by lowercase names.
type Bag map[string]string

// Parse decodes a stored JSON bag. Empty input yields an empty bag.
func Parse(data string) (Bag, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return Bag{}, nil
	}
	bag := Bag{}
	if err := json.Unmarshal([]byte(trimmed), &bag); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return bag.normalized(), nil
}

// MustParse decodes a stored JSON bag and swallows errors, returning an empty
// bag for malformed input. Use for read paths where a bad row must not block
// listing.
func MustParse(data string) Bag {
	bag, err := Parse(data)
	if err != nil {
		return Bag{}
	}
	return bag
}

// Encode serializes the bag as JSON with keys in sorted order. An empty bag
// encodes to "{}" so stored values are never NULL-ambiguous.
func (b Bag) Encode() string {
	if len(b) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(key)
		valueJSON, _ := json.Marshal(b[key])
		sb.Write(keyJSON)
		sb.WriteByte(':')
		sb.Write(valueJSON)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Get returns the value for key, normalizing the lookup key first.
func (b Bag) Get(key string) string {
	if b == nil {
		return ""
	}
	return b[normalizeKey(key)]
}

// Set stores a value under the normalized key. Empty values delete the key so
// bags never carry blank entries.
func (b Bag) Set(key, value string) {
	if b == nil {
		return
	}
	normalized := normalizeKey(key)
	if normalized == "" {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		delete(b, normalized)
		return
	}
	b[normalized] = value
}

// Clone returns an independent copy of the bag.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for key, value := range b {
		out[key] = value
	}
	return out
}

// Merge folds incoming attributes into the bag without overwriting existing
// non-empty values. Returns true when at least one attribute was added.
func (b Bag) Merge(incoming Bag) bool {
	if b == nil {
		return false
	}
	changed := false
	for key, value := range incoming {
		normalized := normalizeKey(key)
		if normalized == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if existing, ok := b[normalized]; ok && existing != "" {
			continue
		}
		b[normalized] = value
		changed = true
	}
	return changed
}

// Equal reports whether two bags carry identical attributes.
func (b Bag) Equal(other Bag) bool {
	if len(b) != len(other) {
		return false
	}
	for key, value := range b {
		if other[key] != value {
			return false
		}
	}
	return true
}

func (b Bag) normalized() Bag {
	out := make(Bag, len(b))
	for key, value := range b {
		normalized := normalizeKey(key)
		value = strings.TrimSpace(value)
		if normalized == "" || value == "" {
			continue
		}
		out[normalized] = value
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
