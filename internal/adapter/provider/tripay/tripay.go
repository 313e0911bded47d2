// Package tripay adapts the Tripay payment API to ports.PaymentProvider.
package tripay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qris-gateway/internal/core/ports"
)

const (
	Name            = "tripay"
	SignatureHeader = "X-Callback-Signature"

	defaultTimeout = 20 * time.Second
	maxResponse    = 1 << 20
)

// HTTPClient is the subset of *http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the merchant credentials issued by Tripay.
type Config struct {
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	Timeout      time.Duration
}

// Provider implements ports.PaymentProvider.
type Provider struct {
	cfg    Config
	client HTTPClient
	sigSvc ports.SignatureService
}

// New creates a Tripay adapter. A nil client gets an *http.Client bounded
// by cfg.Timeout.
func New(cfg Config, client HTTPClient, sigSvc ports.SignatureService) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Provider{cfg: cfg, client: client, sigSvc: sigSvc}
}

func (p *Provider) Name() string            { return Name }
func (p *Provider) SignatureHeader() string { return SignatureHeader }

type orderItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	OrderItems    []orderItem `json:"order_items"`
	ExpiredTime   int64       `json:"expired_time"`
	Signature     string      `json:"signature"`
}

type transactionData struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	QRString    string `json:"qr_string"`
	PayCode     string `json:"pay_code"`
	PaidAt      *int64 `json:"paid_at"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    transactionData `json:"data"`
}

// CreateTransaction opens a closed-payment transaction upstream.
func (p *Provider) CreateTransaction(ctx context.Context, req ports.ProviderCreateRequest) (*ports.ProviderTransaction, error) {
	itemName := req.Description
	if itemName == "" {
		itemName = req.ExternalID
	}
	customerName := req.CustomerName
	if customerName == "" {
		customerName = "Customer"
	}

	body := createRequest{
		Method:        req.PaymentMethod,
		MerchantRef:   req.MerchantRef,
		Amount:        req.Amount,
		CustomerName:  customerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		OrderItems:    []orderItem{{Name: itemName, Price: req.Amount, Quantity: 1}},
		ExpiredTime:   req.ExpiresAt.Unix(),
		Signature:     p.sigSvc.Sign(p.cfg.PrivateKey, p.cfg.MerchantCode+req.MerchantRef+strconv.FormatInt(req.Amount, 10)),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("tripay: encode create request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/transaction/create", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tripay: build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	data, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	return &ports.ProviderTransaction{
		Reference: data.Reference,
		Status:    data.Status,
		QRString:  data.QRString,
		PayCode:   data.PayCode,
	}, nil
}

// CheckStatus fetches the transaction detail by upstream reference.
func (p *Provider) CheckStatus(ctx context.Context, providerRef string) (*ports.ProviderStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	endpoint := p.cfg.BaseURL + "/transaction/detail?reference=" + url.QueryEscape(providerRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("tripay: build detail request: %w", err)
	}

	data, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	return &ports.ProviderStatus{
		Reference: data.Reference,
		Status:    data.Status,
		PaidAt:    unixPtr(data.PaidAt),
	}, nil
}

func (p *Provider) do(req *http.Request) (*transactionData, error) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tripay: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("tripay: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("tripay: decode response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("tripay: http %d: %s", resp.StatusCode, msg)
	}
	if env.Data.Reference == "" {
		return nil, errors.New("tripay: response missing reference")
	}
	return &env.Data, nil
}

// VerifySignature checks X-Callback-Signature = HMAC-SHA256(raw body, private key).
func (p *Provider) VerifySignature(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return p.sigSvc.Verify(p.cfg.PrivateKey, string(rawBody), signature)
}

// HasSignature reports whether the callback carried the signature header.
func (p *Provider) HasSignature(rawBody []byte, signature string) bool {
	return strings.TrimSpace(signature) != ""
}

type callbackBody struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	PaidAt      *int64 `json:"paid_at"`
}

// ParseWebhook decodes a payment_status callback.
func (p *Provider) ParseWebhook(rawBody []byte) (*ports.ProviderWebhook, error) {
	var body callbackBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("decode tripay callback: %w", err)
	}
	if body.Status == "" {
		return nil, errors.New("status is required")
	}
	if body.Reference == "" && body.MerchantRef == "" {
		return nil, errors.New("reference or merchant_ref is required")
	}
	return &ports.ProviderWebhook{
		Reference:   body.Reference,
		MerchantRef: body.MerchantRef,
		Status:      body.Status,
		EventType:   "payment_status",
		PaidAt:      unixPtr(body.PaidAt),
	}, nil
}

func unixPtr(sec *int64) *time.Time {
	if sec == nil || *sec <= 0 {
		return nil
	}
	t := time.Unix(*sec, 0).UTC()
	return &t
}
