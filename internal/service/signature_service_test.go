package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_Sign_KnownVector(t *testing.T) {
	svc := NewHMACSignatureService()

	// RFC 4231 test case 2.
	sig := svc.Sign("Jefe", "what do ya want for nothing?")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", sig)
}

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	secret := "private-key"
	payload := `{"reference":"T123","status":"PAID"}`
	sig := svc.Sign(secret, payload)

	tests := []struct {
		name      string
		secret    string
		payload   string
		signature string
		want      bool
	}{
		{"valid", secret, payload, sig, true},
		{"uppercase hex", secret, payload, strings.ToUpper(sig), true},
		{"tampered payload", secret, payload + " ", sig, false},
		{"wrong secret", "other", payload, sig, false},
		{"not hex", secret, payload, "zz" + sig[2:], false},
		{"truncated", secret, payload, sig[:10], false},
		{"empty", secret, payload, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}
