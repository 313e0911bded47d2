package ports

import (
	"context"
	"time"
)

// PaymentProvider is the upstream payment processor.
type PaymentProvider interface {
	Name() string
	// SignatureHeader names the request header carrying the callback signature.
	// Empty when the signature travels inside the body.
	SignatureHeader() string
	CreateTransaction(ctx context.Context, req ProviderCreateRequest) (*ProviderTransaction, error)
	CheckStatus(ctx context.Context, providerRef string) (*ProviderStatus, error)
	// VerifySignature checks a callback signature against the raw body.
	// signature may be empty for providers that sign inside the body.
	VerifySignature(rawBody []byte, signature string) bool
	// HasSignature reports whether a callback carries signature material.
	HasSignature(rawBody []byte, signature string) bool
	ParseWebhook(rawBody []byte) (*ProviderWebhook, error)
}

// ProviderCreateRequest is the upstream create call input.
type ProviderCreateRequest struct {
	MerchantRef   string // our intent ID
	ExternalID    string
	Amount        int64
	PaymentMethod string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Description   string
	ExpiresAt     time.Time
}

// ProviderTransaction is the upstream create call result.
type ProviderTransaction struct {
	Reference string
	Status    string
	QRString  string
	PayCode   string
}

// ProviderStatus is an upstream status lookup result.
type ProviderStatus struct {
	Reference string
	Status    string
	PaidAt    *time.Time
}

// ProviderWebhook is a parsed upstream callback.
type ProviderWebhook struct {
	Reference   string
	MerchantRef string
	Status      string
	EventType   string
	PaidAt      *time.Time
}
