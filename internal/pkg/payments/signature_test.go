package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"transaction.approved","entity":{"id":42,"reference":"REF-001"}}`)
	secret := "whsec_test"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifySignature(payload, validSig, secret))
	assert.True(t, VerifySignature(payload, strings.ToUpper(validSig), secret), "hex case must not matter")
	assert.True(t, VerifySignature(payload, "  "+validSig+"\n", secret), "surrounding whitespace is trimmed")
	assert.Equal(t, validSig, Sign(payload, secret))
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"event":"transaction.approved","entity":{"amount":30000}}`)
	secret := "whsec_test"
	sig := Sign(payload, secret)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-3] = '1'

	assert.False(t, VerifySignature(tampered, sig, secret))
	assert.True(t, VerifySignature(payload, sig, secret))
}

func TestVerifySignature_Rejects(t *testing.T) {
	payload := []byte(`{}`)
	sig := Sign(payload, "secret")

	tests := []struct {
		name   string
		sig    string
		secret string
	}{
		{name: "empty signature", sig: "", secret: "secret"},
		{name: "empty secret", sig: sig, secret: ""},
		{name: "not hex", sig: "zz-not-hex", secret: "secret"},
		{name: "wrong secret", sig: sig, secret: "other"},
		{name: "truncated", sig: sig[:10], secret: "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(payload, tt.sig, tt.secret))
		})
	}
}
