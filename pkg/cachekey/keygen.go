// Package cachekey produces deterministic cache fingerprints from a prompt
// plus its surrounding context, mirroring the normalization and hashing
// rules of the reference key generator exactly.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Generator builds deterministic 64-character hex cache keys.
type Generator struct{}

// NewGenerator returns a ready-to-use Generator. It is stateless.
func NewGenerator() *Generator { return &Generator{} }

// Generate returns the 64-character lowercase hex SHA-256 digest of the
// canonical form of (prompt, context, provider, phase, modelVersion).
// context, provider, phase and modelVersion are all optional: pass an empty
// map/string/zero to omit them — an omitted field contributes no bytes to
// the digest, matching the reference implementation.
func (g *Generator) Generate(prompt string, context map[string]interface{}, provider string, phase int, modelVersion string) string {
	components := map[string]interface{}{
		"prompt": normalizeText(prompt),
	}
	if len(context) > 0 {
		components["context"] = hashDict(context)
	}
	if provider != "" {
		components["agent"] = provider
	}
	if phase != 0 {
		components["phase"] = strconv.Itoa(phase)
	}
	if modelVersion != "" {
		components["model"] = modelVersion
	}

	canonical := canonicalJSON(components)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// normalizeText collapses every run of CR/LF/space into a single space and
// trims the ends, preserving case and every other character.
func normalizeText(text string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range text {
		if r == ' ' || r == '\r' || r == '\n' {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// hashDict returns the first 16 hex characters of the SHA-256 of the
// canonical JSON form (sorted keys) of d.
func hashDict(d map[string]interface{}) string {
	sum := sha256.Sum256([]byte(canonicalJSON(d)))
	return hex.EncodeToString(sum[:])[:16]
}

// canonicalJSON renders v (a map[string]interface{} or a JSON-marshalable
// scalar) with object keys sorted, matching json.dumps(..., sort_keys=True).
func canonicalJSON(v interface{}) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	default:
		encoded, _ := json.Marshal(val)
		b.Write(encoded)
	}
}
