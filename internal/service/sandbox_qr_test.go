package service

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseTLV splits a top-level EMVCo payload into tag -> value.
func parseTLV(t *testing.T, s string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for len(s) > 0 {
		require.GreaterOrEqual(t, len(s), 4, "truncated TLV")
		tag := s[:2]
		n, err := strconv.Atoi(s[2:4])
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(s), 4+n)
		out[tag] = s[4 : 4+n]
		s = s[4+n:]
	}
	return out
}

func TestCRC16CCITT_CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), crc16CCITT([]byte("123456789")))
}

func TestSandboxQRGenerator_QRString(t *testing.T) {
	gen := NewSandboxQRGenerator("Warung Kopi Sandbox Jakarta Selatan", "Jakarta Selatan Raya")
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	qr := gen.QRString(id, 50000)
	fields := parseTLV(t, qr)

	assert.Equal(t, "01", fields["00"])
	assert.Equal(t, "12", fields["01"])
	assert.Equal(t, "360", fields["53"])
	assert.Equal(t, "50000", fields["54"])
	assert.Equal(t, "ID", fields["58"])
	assert.Len(t, fields["59"], 25)
	assert.Len(t, fields["60"], 15)

	merchant := parseTLV(t, fields["26"])
	assert.Equal(t, "ID.CO.QRIS.WWW", merchant["00"])
	assert.True(t, strings.HasPrefix(merchant["01"], "93600914"))
	assert.Len(t, merchant["01"], 18)

	additional := parseTLV(t, fields["62"])
	assert.Equal(t, "550E8400E29B41D4A71644665", additional["01"])

	// CRC covers everything up to and including "6304".
	body := qr[:len(qr)-4]
	assert.Equal(t, fmt.Sprintf("%04X", crc16CCITT([]byte(body))), qr[len(qr)-4:])
}

func TestSandboxQRGenerator_Deterministic(t *testing.T) {
	gen := NewSandboxQRGenerator("Shop", "Jakarta")
	id := uuid.New()

	assert.Equal(t, gen.QRString(id, 10000), gen.QRString(id, 10000))
	assert.NotEqual(t, gen.QRString(id, 10000), gen.QRString(id, 10001))
	assert.NotEqual(t, gen.QRString(id, 10000), gen.QRString(uuid.New(), 10000))
}

func TestSandboxQRGenerator_PayCode(t *testing.T) {
	gen := NewSandboxQRGenerator("Shop", "Jakarta")
	id := uuid.New()

	code := gen.PayCode(id, "BCAVA")
	assert.True(t, strings.HasPrefix(code, "8014"))
	assert.Len(t, code, 16)
	assert.Equal(t, code, gen.PayCode(id, "BCAVA"))

	assert.True(t, strings.HasPrefix(gen.PayCode(id, "OVO"), "8999"))
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
