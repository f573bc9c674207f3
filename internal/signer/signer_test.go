package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	AssistantMessageID string   `json:"assistantMessageId"`
	WorkflowID         string   `json:"workflowId"`
	Answer             string   `json:"answer"`
	Sources            []string `json:"sources"`
}

func samplePayload() testPayload {
	return testPayload{
		AssistantMessageID: "msg-1",
		WorkflowID:         "0190cdef-0000-7000-8000-000000000001",
		Answer:             "Anthropic raised a new funding round.",
		Sources:            []string{"https://example.com/a", "https://example.com/b"},
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := New("shared-secret")
	payload := samplePayload()

	sig, err := s.Sign(payload, "nonce-1")
	require.NoError(t, err)
	assert.Len(t, sig, 64, "HMAC-SHA256 hex is 64 characters")

	assert.True(t, s.Verify(payload, "nonce-1", sig))
}

func TestVerify_TamperedAnswerFails(t *testing.T) {
	s := New("shared-secret")
	payload := samplePayload()

	sig, err := s.Sign(payload, "nonce-1")
	require.NoError(t, err)

	payload.Answer = "Anthropic raised a new funding round!"
	assert.False(t, s.Verify(payload, "nonce-1", sig))
}

func TestVerify_TamperedNonceFails(t *testing.T) {
	s := New("shared-secret")
	payload := samplePayload()

	sig, err := s.Sign(payload, "nonce-1")
	require.NoError(t, err)

	assert.False(t, s.Verify(payload, "nonce-2", sig))
}

func TestVerify_WrongKeyFails(t *testing.T) {
	payload := samplePayload()

	sig, err := New("key-a").Sign(payload, "nonce-1")
	require.NoError(t, err)

	assert.False(t, New("key-b").Verify(payload, "nonce-1", sig))
}

func TestVerify_MalformedSignatureFails(t *testing.T) {
	s := New("shared-secret")
	payload := samplePayload()

	assert.False(t, s.Verify(payload, "nonce-1", ""))
	assert.False(t, s.Verify(payload, "nonce-1", "deadbeef"))
	assert.False(t, s.Verify(payload, "nonce-1", "zz"))
}

func TestSign_Deterministic(t *testing.T) {
	s := New("shared-secret")
	payload := samplePayload()

	a, err := s.Sign(payload, "nonce-1")
	require.NoError(t, err)
	b, err := s.Sign(payload, "nonce-1")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
