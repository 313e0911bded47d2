package service

import (
	"testing"

	"qris-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator_Calculate(t *testing.T) {
	calc := NewFeeCalculator()

	tests := []struct {
		name     string
		amount   int64
		schedule domain.FeeSchedule
		fee      int64
		net      int64
	}{
		{"qris 0.7% of 50000", 50000, domain.FeeSchedule{BasisPoints: 70}, 350, 49650},
		{"qris rounds half up", 1500, domain.FeeSchedule{BasisPoints: 70}, 11, 1489},   // 10.5 -> 11
		{"qris rounds down below half", 1400, domain.FeeSchedule{BasisPoints: 70}, 10, 1390}, // 9.8 -> 10
		{"qris 1499", 1499, domain.FeeSchedule{BasisPoints: 70}, 10, 1489},            // 10.493 -> 10
		{"flat only", 100000, domain.FeeSchedule{Flat: 4250}, 4250, 95750},
		{"percentage plus flat", 200000, domain.FeeSchedule{BasisPoints: 150, Flat: 1000}, 4000, 196000},
		{"ewallet 3%", 33333, domain.FeeSchedule{BasisPoints: 300}, 1000, 32333}, // 999.99 -> 1000
		{"zero fee", 10000, domain.FeeSchedule{}, 0, 10000},
		{"max amount", domain.MaxAmount, domain.FeeSchedule{BasisPoints: 70}, 700000, 99300000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := calc.Calculate(tt.amount, tt.schedule)
			assert.Equal(t, tt.fee, fee)
			assert.Equal(t, tt.net, net)
		})
	}
}

func TestFeeCalculator_FeePlusNetEqualsAmount(t *testing.T) {
	calc := NewFeeCalculator()
	schedules := []domain.FeeSchedule{
		{BasisPoints: 70},
		{BasisPoints: 300},
		{BasisPoints: 1, Flat: 1},
		{BasisPoints: 9999, Flat: 0},
		{Flat: 5500},
		domain.DefaultFeeSchedule,
	}

	for amount := domain.MinAmount; amount <= domain.MinAmount+5000; amount += 7 {
		for _, s := range schedules {
			fee, net := calc.Calculate(amount, s)
			if fee+net != amount {
				t.Fatalf("fee %d + net %d != amount %d for %+v", fee, net, amount, s)
			}
		}
	}
}

func TestFeeRounding_IsDocumented(t *testing.T) {
	assert.Equal(t, "half_up", FeeRounding)
}
