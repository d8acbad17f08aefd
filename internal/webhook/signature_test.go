package webhook

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	payload := []byte(`{"type":"photo.ingested","event_id":"gala"}`)

	signature := Sign("my-secret-key", payload)
	assert.True(t, strings.HasPrefix(signature, "sha256="))
	assert.Len(t, signature, len("sha256=")+64)
	assert.Equal(t, signature, Sign("my-secret-key", payload), "signing is deterministic")
	assert.NotEqual(t, signature, Sign("other-key", payload))
	assert.True(t, Verify("my-secret-key", payload, signature))
}

func TestVerify(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"type":"reindex.finished"}`)
	validSignature := Sign(secret, payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			payload:   payload,
			signature: validSignature,
			expected:  true,
		},
		{
			name:      "invalid signature",
			secret:    secret,
			payload:   payload,
			signature: "sha256=invalid",
			expected:  false,
		},
		{
			name:      "wrong secret",
			secret:    "wrong-secret",
			payload:   payload,
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "modified payload",
			secret:    secret,
			payload:   []byte(`{"type":"photo.reindexed"}`),
			signature: validSignature,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(tt.secret, tt.payload, tt.signature)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestVerifyRequest(t *testing.T) {
	body := []byte(`{"type":"photo.ingested","event_id":"gala","data":{"photo_id":"IMG_1"}}`)

	tests := []struct {
		name      string
		body      []byte
		signature string
		event     string
		ok        bool
		wantErr   error
	}{
		{name: "valid", body: body, signature: Sign("s3cret", body), event: "photo.ingested", ok: true},
		{name: "no event header", body: body, signature: Sign("s3cret", body), ok: true},
		{name: "wrong secret", body: body, signature: Sign("other", body), wantErr: ErrInvalidSignature},
		{name: "unsigned", body: body, wantErr: ErrInvalidSignature},
		{name: "event header mismatch", body: body, signature: Sign("s3cret", body), event: "reindex.finished"},
		{name: "not json", body: []byte("nope"), signature: Sign("s3cret", []byte("nope"))},
		{name: "too large", body: bytes.Repeat([]byte("a"), maxPayloadBytes+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/hooks", bytes.NewReader(tt.body))
			if tt.signature != "" {
				r.Header.Set(SignatureHeader, tt.signature)
			}
			if tt.event != "" {
				r.Header.Set(EventHeader, tt.event)
			}

			p, err := VerifyRequest("s3cret", r)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, "gala", p.EventID)
				assert.Equal(t, "photo.ingested", p.Type)
				return
			}
			require.Error(t, err)
			assert.Nil(t, p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
