package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayment(merchantID uuid.UUID, externalID string, createdAt time.Time) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		ExternalID:    externalID,
		Amount:        50000,
		FeeAmount:     350,
		NetAmount:     49650,
		PaymentMethod: domain.ChannelQRIS,
		Status:        domain.PaymentStatusPending,
		ExpiresAt:     createdAt.Add(30 * time.Minute),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestPaymentRepo_UniqueConstraints(t *testing.T) {
	repo := NewPaymentRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	key := "idem-1"

	first := newPayment(uuid.New(), "order-1", now)
	first.IdempotencyKey = &key
	require.NoError(t, repo.Create(ctx, first))

	dupExt := newPayment(uuid.New(), "order-1", now)
	assert.ErrorIs(t, repo.Create(ctx, dupExt), domain.ErrDuplicateExternalID)

	dupKey := newPayment(uuid.New(), "order-2", now)
	dupKey.IdempotencyKey = &key
	assert.ErrorIs(t, repo.Create(ctx, dupKey), domain.ErrDuplicateIdempotencyKey)

	got, err := repo.GetByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = repo.GetByExternalID(ctx, "order-2")
	require.NoError(t, err)
	assert.Nil(t, got, "rejected insert must not leave an index entry")
}

func TestPaymentRepo_ReturnsCopies(t *testing.T) {
	repo := NewPaymentRepo()
	ctx := context.Background()
	p := newPayment(uuid.New(), "order-1", time.Now())
	require.NoError(t, repo.Create(ctx, p))

	got, _ := repo.GetByID(ctx, p.ID)
	got.Status = domain.PaymentStatusPaid

	again, _ := repo.GetByID(ctx, p.ID)
	assert.Equal(t, domain.PaymentStatusPending, again.Status)
}

func TestPaymentRepo_TransitionStatus_SingleWinner(t *testing.T) {
	repo := NewPaymentRepo()
	ctx := context.Background()
	p := newPayment(uuid.New(), "order-1", time.Now())
	require.NoError(t, repo.Create(ctx, p))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		status := domain.PaymentStatusPaid
		if i%2 == 1 {
			status = domain.PaymentStatusExpired
		}
		wg.Add(1)
		go func(s domain.PaymentStatus) {
			defer wg.Done()
			ok, err := repo.TransitionStatus(ctx, domain.StatusUpdate{ID: p.ID, Status: s, UpdatedAt: time.Now()})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(status)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, _ := repo.GetByID(ctx, p.ID)
	assert.True(t, got.IsTerminal())
}

func TestPaymentRepo_ListAndOverdue(t *testing.T) {
	repo := NewPaymentRepo()
	ctx := context.Background()
	merchantID := uuid.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newPayment(merchantID, "order-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newPayment(uuid.New(), "foreign", base)))

	list, err := repo.List(ctx, ports.PaymentListParams{MerchantID: merchantID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "order-e", list[0].ExternalID, "newest first")

	overdue, err := repo.ListOverdue(ctx, base.Add(32*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, overdue, 3, "intents created at +0,+1 and the foreign one have expired")
	assert.Equal(t, base.Add(30*time.Minute), overdue[0].ExpiresAt)
}

func TestPaymentRepo_GetStats(t *testing.T) {
	repo := NewPaymentRepo()
	ctx := context.Background()
	merchantID := uuid.New()
	now := time.Now().UTC()

	paid := newPayment(merchantID, "order-paid", now)
	require.NoError(t, repo.Create(ctx, paid))
	require.NoError(t, repo.Create(ctx, newPayment(merchantID, "order-pending", now)))
	_, err := repo.TransitionStatus(ctx, domain.StatusUpdate{ID: paid.ID, Status: domain.PaymentStatusPaid, PaidAt: &now, UpdatedAt: now})
	require.NoError(t, err)

	stats, err := repo.GetStats(ctx, merchantID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Paid)
	assert.Equal(t, int64(49650), stats.NetPaid)

	future := now.Add(time.Hour)
	stats, err = repo.GetStats(ctx, merchantID, &future)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestChannelRepo_SeedIsIdempotent(t *testing.T) {
	repo := NewChannelRepo()
	ctx := context.Background()

	n, err := repo.Seed(ctx, domain.DefaultChannels())
	require.NoError(t, err)
	assert.Equal(t, len(domain.SupportedMethods()), n)

	ok, err := repo.SetActive(ctx, domain.ChannelOVO, false)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = repo.Seed(ctx, domain.DefaultChannels())
	require.NoError(t, err)
	assert.Zero(t, n)

	ovo, _ := repo.GetByCode(ctx, domain.ChannelOVO)
	assert.False(t, ovo.IsActive, "reseeding must not reactivate a channel")

	active, _ := repo.List(ctx, true)
	assert.Len(t, active, len(domain.SupportedMethods())-1)
	assert.Equal(t, domain.ChannelQRIS, active[0].Code)
}

func TestAPIKeyRepo_DeactivateRequiresOwner(t *testing.T) {
	repo := NewAPIKeyRepo()
	ctx := context.Background()
	k := &domain.APIKey{ID: uuid.New(), MerchantID: uuid.New(), KeyHash: "h", IsActive: true}
	require.NoError(t, repo.Create(ctx, nil, k))
	assert.ErrorIs(t, repo.Create(ctx, nil, &domain.APIKey{ID: uuid.New(), KeyHash: "h"}), domain.ErrDuplicateKeyHash)

	ok, _ := repo.Deactivate(ctx, k.ID, uuid.New())
	assert.False(t, ok)
	ok, _ = repo.Deactivate(ctx, k.ID, k.MerchantID)
	assert.True(t, ok)

	require.NoError(t, repo.TouchUsage(ctx, k.ID, time.Now()))
	got, _ := repo.GetByHash(ctx, "h")
	assert.False(t, got.IsActive)
	assert.Equal(t, int64(1), got.UsageCount)
}

func TestWebhookLogRepo_MarkProcessedOnce(t *testing.T) {
	repo := NewWebhookLogRepo()
	ctx := context.Background()
	entry := &domain.WebhookLog{ID: uuid.New(), Stage: domain.WebhookStageReceived}
	require.NoError(t, repo.Create(ctx, entry))

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkProcessed(ctx, entry.ID, first))
	require.NoError(t, repo.MarkProcessed(ctx, entry.ID, first.Add(time.Minute)))

	all := repo.All()
	require.Len(t, all, 1)
	assert.Equal(t, first, *all[0].ProcessedAt)
}

func TestIdempotencyCache_TTL(t *testing.T) {
	cache := NewIdempotencyCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	rec := domain.IdempotencyRecord{Key: "k", PaymentID: uuid.New()}
	require.NoError(t, cache.Set(ctx, rec, time.Minute))
	require.NoError(t, cache.Set(ctx, domain.IdempotencyRecord{Key: "k", PaymentID: uuid.New()}, time.Minute))

	got, _ := cache.Get(ctx, "k")
	require.NotNil(t, got)
	assert.Equal(t, rec.PaymentID, got.PaymentID)

	now = now.Add(2 * time.Minute)
	got, _ = cache.Get(ctx, "k")
	assert.Nil(t, got)
}

func TestRateLimitStore_FixedWindowAndSweep(t *testing.T) {
	store := NewRateLimitStore()
	now := time.Unix(1_780_000_020, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := store.Allow(ctx, "auth:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, _ := store.Allow(ctx, "auth:1.2.3.4", 2, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, now.Unix()+60, res.ResetAt)

	_, _ = store.Allow(ctx, "api:key", 10, time.Minute)
	assert.Equal(t, 2, store.Len())
	assert.Zero(t, store.Sweep(time.Second), "windows still open")

	now = now.Add(time.Minute)
	res, _ = store.Allow(ctx, "auth:1.2.3.4", 2, time.Minute)
	assert.True(t, res.Allowed, "new window")

	assert.Equal(t, 1, store.Sweep(time.Second), "only api:key window ended")
	assert.Equal(t, 1, store.Len())
}

func TestRateLimitStore_RunSweeperStops(t *testing.T) {
	store := NewRateLimitStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Millisecond, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
