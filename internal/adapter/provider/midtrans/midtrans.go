// Package midtrans adapts the Midtrans Core API to ports.PaymentProvider.
package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	mt "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

const (
	Name = "midtrans"

	defaultTimeout = 20 * time.Second
	timeLayout     = "2006-01-02 15:04:05"
	qrisAcquirer   = "gopay"
)

// Midtrans reports timestamps in Jakarta time.
var jakarta = time.FixedZone("WIB", 7*60*60)

var vaBanks = map[string]mt.Bank{
	domain.ChannelBCAVA: mt.BankBca,
	domain.ChannelBRIVA: mt.BankBri,
	domain.ChannelBNIVA: mt.BankBni,
}

type coreClient interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *mt.Error)
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *mt.Error)
}

// Config holds the Midtrans server credentials.
type Config struct {
	ServerKey  string
	Production bool
	Timeout    time.Duration
}

// Provider implements ports.PaymentProvider on top of coreapi.Client.
type Provider struct {
	serverKey string
	timeout   time.Duration
	core      coreClient
}

func New(cfg Config) *Provider {
	env := mt.Sandbox
	if cfg.Production {
		env = mt.Production
	}
	c := &coreapi.Client{}
	c.New(cfg.ServerKey, env)
	return newWithClient(cfg, c)
}

func newWithClient(cfg Config, core coreClient) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{serverKey: cfg.ServerKey, timeout: cfg.Timeout, core: core}
}

func (p *Provider) Name() string { return Name }

// SignatureHeader is empty: Midtrans signs inside the notification body.
func (p *Provider) SignatureHeader() string { return "" }

func (p *Provider) CreateTransaction(ctx context.Context, req ports.ProviderCreateRequest) (*ports.ProviderTransaction, error) {
	charge := &coreapi.ChargeReq{
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.MerchantRef,
			GrossAmt: req.Amount,
		},
	}
	if req.CustomerName != "" || req.CustomerEmail != "" || req.CustomerPhone != "" {
		charge.CustomerDetails = &mt.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		}
	}
	if !req.ExpiresAt.IsZero() {
		if minutes := int(time.Until(req.ExpiresAt).Round(time.Minute) / time.Minute); minutes > 0 {
			charge.CustomExpiry = &coreapi.CustomExpiry{
				OrderTime:      time.Now().In(jakarta).Format(timeLayout) + " +0700",
				ExpiryDuration: minutes,
				Unit:           "minute",
			}
		}
	}

	switch {
	case req.PaymentMethod == domain.ChannelQRIS:
		charge.PaymentType = coreapi.PaymentTypeQris
		charge.Qris = &coreapi.QrisDetails{Acquirer: qrisAcquirer}
	case vaBanks[req.PaymentMethod] != "":
		charge.PaymentType = coreapi.PaymentTypeBankTransfer
		charge.BankTransfer = &coreapi.BankTransferDetails{Bank: vaBanks[req.PaymentMethod]}
	default:
		return nil, fmt.Errorf("midtrans: payment method %s is not supported", req.PaymentMethod)
	}

	var resp *coreapi.ChargeResponse
	err := p.call(ctx, func() *mt.Error {
		var mErr *mt.Error
		resp, mErr = p.core.ChargeTransaction(charge)
		return mErr
	})
	if err != nil {
		return nil, fmt.Errorf("midtrans: charge: %w", err)
	}
	if resp == nil || resp.TransactionID == "" {
		return nil, errors.New("midtrans: charge response missing transaction_id")
	}

	tx := &ports.ProviderTransaction{
		Reference: resp.TransactionID,
		Status:    resp.TransactionStatus,
		QRString:  resp.QRString,
	}
	if len(resp.VaNumbers) > 0 {
		tx.PayCode = resp.VaNumbers[0].VANumber
	}
	return tx, nil
}

func (p *Provider) CheckStatus(ctx context.Context, providerRef string) (*ports.ProviderStatus, error) {
	var resp *coreapi.TransactionStatusResponse
	err := p.call(ctx, func() *mt.Error {
		var mErr *mt.Error
		resp, mErr = p.core.CheckTransaction(providerRef)
		return mErr
	})
	if err != nil {
		return nil, fmt.Errorf("midtrans: status %s: %w", providerRef, err)
	}
	if resp == nil {
		return nil, errors.New("midtrans: empty status response")
	}
	return &ports.ProviderStatus{
		Reference: providerRef,
		Status:    resp.TransactionStatus,
		PaidAt:    parseTime(resp.SettlementTime),
	}, nil
}

// call runs a blocking SDK call and gives up once ctx or the configured
// timeout expires. The SDK has no context support, so an abandoned call
// finishes in the background under the SDK's own HTTP timeout.
func (p *Provider) call(ctx context.Context, fn func() *mt.Error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if mErr := fn(); mErr != nil {
			done <- mErr
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type notification struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	SettlementTime    string `json:"settlement_time"`
}

// VerifySignature checks signature_key = SHA512(order_id + status_code +
// gross_amount + server_key). The header argument is ignored.
func (p *Provider) VerifySignature(rawBody []byte, _ string) bool {
	var n notification
	if err := json.Unmarshal(rawBody, &n); err != nil || n.SignatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + p.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}

func (p *Provider) HasSignature(rawBody []byte, _ string) bool {
	var n notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return false
	}
	return n.SignatureKey != ""
}

func (p *Provider) ParseWebhook(rawBody []byte) (*ports.ProviderWebhook, error) {
	var n notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return nil, fmt.Errorf("decode midtrans notification: %w", err)
	}
	if n.TransactionStatus == "" {
		return nil, errors.New("transaction_status is required")
	}
	if n.TransactionID == "" && n.OrderID == "" {
		return nil, errors.New("transaction_id or order_id is required")
	}

	status := n.TransactionStatus
	// A captured card payment flagged for review is not yet paid.
	if strings.EqualFold(status, "capture") && strings.EqualFold(n.FraudStatus, "challenge") {
		status = "pending"
	}
	return &ports.ProviderWebhook{
		Reference:   n.TransactionID,
		MerchantRef: n.OrderID,
		Status:      status,
		EventType:   "notification",
		PaidAt:      parseTime(n.SettlementTime),
	}, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(timeLayout, s, jakarta)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
