package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"qris-gateway/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestExpiryWorker_SweepDrainsFullBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockPaymentService(ctrl)
	w := NewExpiryWorker(payments, time.Minute, 2, zerolog.Nop())

	gomock.InOrder(
		payments.EXPECT().ExpireOverdue(gomock.Any(), 2).Return(2, nil),
		payments.EXPECT().ExpireOverdue(gomock.Any(), 2).Return(1, nil),
	)

	assert.Equal(t, 3, w.Sweep(context.Background()))
}

func TestExpiryWorker_SweepStopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockPaymentService(ctrl)
	w := NewExpiryWorker(payments, time.Minute, 2, zerolog.Nop())

	payments.EXPECT().ExpireOverdue(gomock.Any(), 2).Return(0, errors.New("db down"))

	assert.Equal(t, 0, w.Sweep(context.Background()))
}

func TestExpiryWorker_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockPaymentService(ctrl)
	payments.EXPECT().ExpireOverdue(gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()

	w := NewExpiryWorker(payments, 5*time.Millisecond, 0, zerolog.Nop())
	assert.Equal(t, 200, w.batch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
