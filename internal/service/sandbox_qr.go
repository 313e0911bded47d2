package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// QRIS merchant-presented payload constants (EMVCo TLV).
const (
	qrisGlobalID       = "ID.CO.QRIS.WWW"
	qrisAcquirerPrefix = "93600914" // sandbox acquirer national number prefix
	qrisMCC            = "5999"
	qrisCurrencyIDR    = "360"
	qrisCountry        = "ID"
	qrisPostalCode     = "10110"

	maxMerchantNameLen = 25
	maxMerchantCityLen = 15
	maxBillNumberLen   = 25
)

// SandboxQRGenerator fabricates deterministic QRIS payloads and pay codes
// when no live provider is configured. The same intent ID and amount always
// produce the same payload.
type SandboxQRGenerator struct {
	merchantName string
	merchantCity string
}

// NewSandboxQRGenerator creates a generator printing name and city into
// every payload.
func NewSandboxQRGenerator(merchantName, merchantCity string) *SandboxQRGenerator {
	return &SandboxQRGenerator{
		merchantName: truncate(strings.ToUpper(merchantName), maxMerchantNameLen),
		merchantCity: truncate(strings.ToUpper(merchantCity), maxMerchantCityLen),
	}
}

// QRString builds a dynamic QRIS payload with a valid CRC.
func (g *SandboxQRGenerator) QRString(paymentID uuid.UUID, amount int64) string {
	digits := idDigits(paymentID)
	compact := strings.ToUpper(strings.ReplaceAll(paymentID.String(), "-", ""))

	merchantAccount := tlv("00", qrisGlobalID) +
		tlv("01", qrisAcquirerPrefix+digits[:10]) +
		tlv("02", "SBX"+compact[:12]) +
		tlv("03", "UMI")

	additional := tlv("01", truncate(compact, maxBillNumberLen)) +
		tlv("07", "SANDBOX")

	var b strings.Builder
	b.WriteString(tlv("00", "01"))
	b.WriteString(tlv("01", "12")) // dynamic: single use, amount embedded
	b.WriteString(tlv("26", merchantAccount))
	b.WriteString(tlv("52", qrisMCC))
	b.WriteString(tlv("53", qrisCurrencyIDR))
	b.WriteString(tlv("54", strconv.FormatInt(amount, 10)))
	b.WriteString(tlv("58", qrisCountry))
	b.WriteString(tlv("59", g.merchantName))
	b.WriteString(tlv("60", g.merchantCity))
	b.WriteString(tlv("61", qrisPostalCode))
	b.WriteString(tlv("62", additional))
	b.WriteString("6304")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", crc16CCITT([]byte(payload)))
}

// PayCode builds a deterministic virtual account or e-wallet code for
// non-QR channels.
func (g *SandboxQRGenerator) PayCode(paymentID uuid.UUID, method string) string {
	return "8" + bankPrefix(method) + idDigits(paymentID)[:12]
}

func bankPrefix(method string) string {
	switch method {
	case "BCAVA":
		return "014"
	case "BRIVA":
		return "002"
	case "BNIVA":
		return "009"
	case "MANDIRIVA":
		return "008"
	case "PERMATAVA":
		return "013"
	}
	return "999"
}

// idDigits maps the 16 ID bytes to 32 decimal digits.
func idDigits(id uuid.UUID) string {
	var b strings.Builder
	for _, v := range id {
		b.WriteByte('0' + v/16%10)
		b.WriteByte('0' + v%10)
	}
	return b.String()
}

func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// crc16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the
// checksum QRIS mandates for tag 63.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
