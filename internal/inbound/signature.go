package inbound

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const signaturePrefix = "sha256="

var (
	// ErrMissingSignature is returned when a secret is configured but no header was sent.
	ErrMissingSignature = errors.New("inbound: missing signature")
	// ErrBadSignature is returned when the header does not match the body.
	ErrBadSignature = errors.New("inbound: signature mismatch")
)

// Verifier checks the X-Hub-Signature-256 style integrity tag on a delivery.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for the shared secret. An empty secret
// disables verification.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify checks header against an HMAC-SHA256 of the raw body. It returns nil
// when no secret is configured.
func (v *Verifier) Verify(body []byte, header string) error {
	if !v.Enabled() {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, Sign(v.secret, body)) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeader formats the header value a platform would send for body.
func SignatureHeader(secret string, body []byte) string {
	return signaturePrefix + hex.EncodeToString(Sign([]byte(secret), body))
}
