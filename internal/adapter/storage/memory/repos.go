package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Channels ---

type ChannelRepo struct {
	mu       sync.RWMutex
	channels map[string]*domain.PaymentChannel
}

func NewChannelRepo() *ChannelRepo {
	return &ChannelRepo{channels: make(map[string]*domain.PaymentChannel)}
}

func (r *ChannelRepo) Seed(ctx context.Context, channels []domain.PaymentChannel) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	inserted := 0
	for _, c := range channels {
		if _, ok := r.channels[c.Code]; ok {
			continue
		}
		c.CreatedAt, c.UpdatedAt = now, now
		r.channels[c.Code] = &c
		inserted++
	}
	return inserted, nil
}

func (r *ChannelRepo) GetByCode(ctx context.Context, code string) (*domain.PaymentChannel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *ChannelRepo) List(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PaymentChannel
	for _, c := range r.channels {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *ChannelRepo) SetActive(ctx context.Context, code string, active bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.channels[code]
	if !ok {
		return false, nil
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- Merchants ---

type MerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func NewMerchantRepo() *MerchantRepo {
	return &MerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *MerchantRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.merchants {
		if existing.Username == m.Username {
			return domain.ErrDuplicateUsername
		}
	}
	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *MerchantRepo) GetByUsername(ctx context.Context, username string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.Username == username {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MerchantRepo) UpdateCallbackSecret(ctx context.Context, id uuid.UUID, secretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found: %s", id)
	}
	m.CallbackSecretEnc = secretEnc
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// --- API keys ---

type APIKeyRepo struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*domain.APIKey
}

func NewAPIKeyRepo() *APIKeyRepo {
	return &APIKeyRepo{keys: make(map[uuid.UUID]*domain.APIKey)}
}

func (r *APIKeyRepo) Create(ctx context.Context, tx pgx.Tx, k *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.keys {
		if existing.KeyHash == k.KeyHash {
			return domain.ErrDuplicateKeyHash
		}
	}
	cp := *k
	r.keys[k.ID] = &cp
	return nil
}

func (r *APIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *APIKeyRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.APIKey
	for _, k := range r.keys {
		if k.MerchantID == merchantID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *APIKeyRepo) Deactivate(ctx context.Context, id, merchantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok || k.MerchantID != merchantID {
		return false, nil
	}
	k.IsActive = false
	return true, nil
}

func (r *APIKeyRepo) TouchUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		k.UsageCount++
		k.LastUsedAt = &at
	}
	return nil
}

// --- Webhook log ---

type WebhookLogRepo struct {
	mu      sync.RWMutex
	entries []*domain.WebhookLog
}

func NewWebhookLogRepo() *WebhookLogRepo {
	return &WebhookLogRepo{}
}

func (r *WebhookLogRepo) Create(ctx context.Context, entry *domain.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *WebhookLogRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id && e.ProcessedAt == nil {
			e.ProcessedAt = &at
		}
	}
	return nil
}

func (r *WebhookLogRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.WebhookLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookLog
	for _, e := range r.entries {
		if e.PaymentID != nil && *e.PaymentID == paymentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// All returns every entry in insertion order.
func (r *WebhookLogRepo) All() []domain.WebhookLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WebhookLog, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// --- Callback deliveries ---

type CallbackRepo struct {
	mu         sync.RWMutex
	deliveries map[uuid.UUID]*domain.CallbackDelivery
}

func NewCallbackRepo() *CallbackRepo {
	return &CallbackRepo{deliveries: make(map[uuid.UUID]*domain.CallbackDelivery)}
}

func (r *CallbackRepo) Create(ctx context.Context, d *domain.CallbackDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r *CallbackRepo) UpdateAttempt(ctx context.Context, d *domain.CallbackDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

// --- Audit ---

type AuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// Len returns the number of stored entries.
func (r *AuditRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
