package inbound

import (
	"errors"
	"testing"
)

func TestVerifier(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	valid := SignatureHeader("s3cret", body)

	tests := []struct {
		name   string
		secret string
		header string
		body   []byte
		want   error
	}{
		{"valid signature", "s3cret", valid, body, nil},
		{"no secret skips verification", "", "", body, nil},
		{"no secret ignores garbage header", "", "sha256=zz", body, nil},
		{"missing header", "s3cret", "", body, ErrMissingSignature},
		{"wrong prefix", "s3cret", "sha1=" + valid[len("sha256="):], body, ErrBadSignature},
		{"not hex", "s3cret", "sha256=nothex", body, ErrBadSignature},
		{"wrong secret", "other", valid, body, ErrBadSignature},
		{"body changed", "s3cret", valid, []byte(`{"entry": []}`), ErrBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewVerifier(tt.secret).Verify(tt.body, tt.header)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifierEnabled(t *testing.T) {
	if NewVerifier("").Enabled() {
		t.Fatal("empty secret should disable verification")
	}
	if !NewVerifier("x").Enabled() {
		t.Fatal("secret should enable verification")
	}
	var nilVerifier *Verifier
	if err := nilVerifier.Verify([]byte("x"), ""); err != nil {
		t.Fatalf("nil verifier should skip, got %v", err)
	}
}
