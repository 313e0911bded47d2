package domain

import "strings"

var providerStatusTable = map[string]PaymentStatus{
	"PAID":       PaymentStatusPaid,
	"SUCCESS":    PaymentStatusPaid,
	"SETTLEMENT": PaymentStatusPaid,
	"CAPTURE":    PaymentStatusPaid,
	"EXPIRED":    PaymentStatusExpired,
	"EXPIRE":     PaymentStatusExpired,
	"FAILED":     PaymentStatusFailed,
	"FAILURE":    PaymentStatusFailed,
	"DENY":       PaymentStatusFailed,
	"CANCELLED":  PaymentStatusCancelled,
	"CANCELED":   PaymentStatusCancelled,
	"CANCEL":     PaymentStatusCancelled,
	"PENDING":    PaymentStatusPending,
	"UNPAID":     PaymentStatusPending,
}

// MapProviderStatus maps a raw upstream status to an internal status.
// Matching is case-insensitive. Anything outside the table maps to
// PaymentStatusUnknown and must never be applied to an intent.
func MapProviderStatus(raw string) PaymentStatus {
	if s, ok := providerStatusTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return PaymentStatusUnknown
}
