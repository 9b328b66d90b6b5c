// Package proof builds and checks the authenticity evidence attached to a day.
package proof

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"wakaproof/internal/models"

	json "github.com/goccy/go-json"
)

const Algorithm = "sha256"

// Canonicalize returns the byte form the content digest is computed over:
// the payload re-encoded as a generic tree so every object has sorted keys
// and every number keeps its original literal.
func Canonicalize(payload *models.Payload) ([]byte, error) {
	if payload == nil {
		return nil, errors.New("nil payload")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode payload tree: %w", err)
	}
	return json.Marshal(tree)
}

// Digest is the hex SHA-256 of the canonical payload.
func Digest(payload *models.Payload) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
