package domain

import "errors"

// Storage-level conflicts. Repositories translate unique index violations
// into these so services never inspect driver errors.
var (
	ErrDuplicateExternalID     = errors.New("duplicate external_id")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency_key")
	ErrDuplicateUsername       = errors.New("duplicate username")
	ErrDuplicateKeyHash        = errors.New("duplicate api key hash")
)
