package domain

import "time"

// ChannelType classifies a payment channel.
type ChannelType string

const (
	ChannelTypeQRIS           ChannelType = "qris"
	ChannelTypeVirtualAccount ChannelType = "virtual_account"
	ChannelTypeEWallet        ChannelType = "e_wallet"
)

// Channel codes accepted as payment_method.
const (
	ChannelQRIS      = "QRIS"
	ChannelBCAVA     = "BCAVA"
	ChannelBRIVA     = "BRIVA"
	ChannelBNIVA     = "BNIVA"
	ChannelMandiriVA = "MANDIRIVA"
	ChannelPermataVA = "PERMATAVA"
	ChannelOVO       = "OVO"
	ChannelDANA      = "DANA"
	ChannelShopeePay = "SHOPEEPAY"
)

// FeeSchedule is a percentage (in basis points, 1 bp = 0.01%) plus a flat fee.
type FeeSchedule struct {
	BasisPoints int64 `json:"fee_basis_points"`
	Flat        int64 `json:"fee_flat"`
}

// DefaultFeeSchedule applies when a payment method has no registry row.
var DefaultFeeSchedule = FeeSchedule{BasisPoints: 70, Flat: 0}

// PaymentChannel is a supported payment method with its fee schedule.
type PaymentChannel struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	IsActive  bool        `json:"is_active"`
	Fee       FeeSchedule `json:"fee"`
	MinAmount int64       `json:"min_amount"`
	MaxAmount int64       `json:"max_amount"`
	SortOrder int         `json:"sort_order"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsQR reports whether intents on this channel carry a QR payload
// rather than a pay code.
func (c *PaymentChannel) IsQR() bool {
	return c.Type == ChannelTypeQRIS
}

// IsQRMethod reports whether a payment method code renders as a QR payload.
func IsQRMethod(code string) bool {
	return code == ChannelQRIS
}

// SupportedMethods lists every payment_method value the API accepts.
func SupportedMethods() []string {
	out := make([]string, 0, len(defaultChannels))
	for _, c := range defaultChannels {
		out = append(out, c.Code)
	}
	return out
}

// IsSupportedMethod reports whether code is an accepted payment_method.
func IsSupportedMethod(code string) bool {
	for _, c := range defaultChannels {
		if c.Code == code {
			return true
		}
	}
	return false
}

var defaultChannels = []PaymentChannel{
	{Code: ChannelQRIS, Name: "QRIS", Type: ChannelTypeQRIS, Fee: FeeSchedule{BasisPoints: 70}, MinAmount: 1_000, MaxAmount: 10_000_000},
	{Code: ChannelBCAVA, Name: "BCA Virtual Account", Type: ChannelTypeVirtualAccount, Fee: FeeSchedule{Flat: 5_500}, MinAmount: 10_000, MaxAmount: 100_000_000},
	{Code: ChannelBRIVA, Name: "BRI Virtual Account", Type: ChannelTypeVirtualAccount, Fee: FeeSchedule{Flat: 4_250}, MinAmount: 10_000, MaxAmount: 100_000_000},
	{Code: ChannelBNIVA, Name: "BNI Virtual Account", Type: ChannelTypeVirtualAccount, Fee: FeeSchedule{Flat: 4_250}, MinAmount: 10_000, MaxAmount: 100_000_000},
	{Code: ChannelMandiriVA, Name: "Mandiri Virtual Account", Type: ChannelTypeVirtualAccount, Fee: FeeSchedule{Flat: 4_250}, MinAmount: 10_000, MaxAmount: 100_000_000},
	{Code: ChannelPermataVA, Name: "Permata Virtual Account", Type: ChannelTypeVirtualAccount, Fee: FeeSchedule{Flat: 4_250}, MinAmount: 10_000, MaxAmount: 100_000_000},
	{Code: ChannelOVO, Name: "OVO", Type: ChannelTypeEWallet, Fee: FeeSchedule{BasisPoints: 300}, MinAmount: 1_000, MaxAmount: 10_000_000},
	{Code: ChannelDANA, Name: "DANA", Type: ChannelTypeEWallet, Fee: FeeSchedule{BasisPoints: 300}, MinAmount: 1_000, MaxAmount: 10_000_000},
	{Code: ChannelShopeePay, Name: "ShopeePay", Type: ChannelTypeEWallet, Fee: FeeSchedule{BasisPoints: 300}, MinAmount: 1_000, MaxAmount: 10_000_000},
}

// DefaultChannels returns a fresh copy of the seed catalog, all active.
func DefaultChannels() []PaymentChannel {
	out := make([]PaymentChannel, len(defaultChannels))
	for i, c := range defaultChannels {
		c.IsActive = true
		c.SortOrder = i + 1
		out[i] = c
	}
	return out
}
