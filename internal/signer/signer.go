// Package signer computes and verifies HMAC signatures over persisted
// workflow payloads, bound to the workflow's single-use nonce.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// signedEnvelope fixes the serialization produced on both the sign and
// verify sides: field order is fixed by the struct definition, and
// json.Marshal emits no insignificant whitespace.
type signedEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	Nonce   string          `json:"nonce"`
}

// Signer signs persisted payloads with a process-wide shared key.
type Signer struct {
	key []byte
}

func New(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign returns hex(HMAC-SHA256(key, serialize(payload, nonce))). payload is
// marshalled once here; callers pass the struct, not pre-encoded JSON, so
// both sides serialize identically.
func (s *Signer) Sign(payload interface{}, nonce string) (string, error) {
	msg, err := canonicalMessage(payload, nonce)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. It never
// panics on malformed input; any failure reports false.
func (s *Signer) Verify(payload interface{}, nonce, signature string) bool {
	expected, err := s.Sign(payload, nonce)
	if err != nil {
		return false
	}
	return constantTimeEqual([]byte(expected), []byte(signature))
}

func canonicalMessage(payload interface{}, nonce string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(signedEnvelope{Payload: raw, Nonce: nonce})
}

// constantTimeEqual compares two byte slices without early exit: length
// check first, then XOR-accumulate over every byte.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
