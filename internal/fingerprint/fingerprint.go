// Package fingerprint derives deterministic cache keys for model calls.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Input is everything that makes two model calls interchangeable
type Input struct {
	Model        string         `json:"model"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	UserPrompt   string         `json:"user_prompt"`
	SystemPrompt string         `json:"system_prompt"`
	Iteration    int            `json:"iteration"`
	SchemaID     string         `json:"schema_id,omitempty"`
	Attachments  []string       `json:"attachments,omitempty"` // content digests
}

// Canonical returns the RFC 8785 canonical JSON of v
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fingerprint input: %w", err)
	}
	return jcs.Transform(raw)
}

// Digest returns the sha256 hex digest of the canonical JSON of v
func Digest(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Key is the cache key of a model call
func Key(in Input) (string, error) {
	return Digest(in)
}

// Bytes returns the sha256 hex digest of raw content, used for attachments
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
