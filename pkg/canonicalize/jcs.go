// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and digests for deterministic hashing of ledger snapshots.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
// Map keys are sorted lexicographically by UTF-8 bytes and number
// formatting is normalized, so equal values always serialize identically.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// Digest returns "sha256:<hex>" over the canonical form of v.
// Two structurally equal values always produce the same digest, which is
// what makes re-validation of an unchanged recommendation checkable.
func Digest(v any) (string, error) {
	canonical, err := JCS(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
