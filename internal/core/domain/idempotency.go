package domain

import "github.com/google/uuid"

// IdempotencyRecord links an idempotency key to the intent it created.
// It is the value held by the cache fast path; the payments table's unique
// index is the source of truth.
type IdempotencyRecord struct {
	Key        string    `json:"key"`
	PaymentID  uuid.UUID `json:"payment_id"`
	MerchantID uuid.UUID `json:"merchant_id"`
}
