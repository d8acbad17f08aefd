package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const signaturePrefix = "sha256="

// maxPayloadBytes bounds what VerifyRequest reads from a delivery.
const maxPayloadBytes = 1 << 20

var ErrInvalidSignature = errors.New("webhook: invalid signature")

// Sign returns the SignatureHeader value for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(secret, payload)))
}

// VerifyRequest is the receiving side of a delivery: it checks the
// signature of the body against secret and decodes the payload.
func VerifyRequest(secret string, r *http.Request) (*Payload, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("webhook: read body: %w", err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("webhook: payload exceeds %d bytes", maxPayloadBytes)
	}
	if !Verify(secret, body, r.Header.Get(SignatureHeader)) {
		return nil, ErrInvalidSignature
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("webhook: decode payload: %w", err)
	}
	if h := r.Header.Get(EventHeader); h != "" && h != p.Type {
		return nil, fmt.Errorf("webhook: %s header %q does not match payload type %q", EventHeader, h, p.Type)
	}
	return &p, nil
}
