package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"qris-gateway/config"
	"qris-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintChannels(t *testing.T) {
	var buf bytes.Buffer
	err := printChannels(&buf, []domain.PaymentChannel{
		{Code: "QRIS", Name: "QRIS", Type: domain.ChannelTypeQRIS, IsActive: true, Fee: domain.FeeSchedule{BasisPoints: 70}, MinAmount: 1000, MaxAmount: 10000000},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Equal(t, []string{"QRIS", "QRIS", "qris", "true", "70", "0", "1000", "10000000"}, strings.Fields(lines[1]))
}

func TestChannelsSetActive_RejectsBadFlag(t *testing.T) {
	path := ""
	cmd := channelsSetActiveCmd(&path)
	cmd.SetArgs([]string{"QRIS", "maybe"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid active flag")
}

func TestNewProvider(t *testing.T) {
	assert.Nil(t, newProvider(configWithProvider(""), nil))
	assert.Nil(t, newProvider(configWithProvider("none"), nil))
	assert.Equal(t, "tripay", newProvider(configWithProvider("tripay"), nil).Name())
	assert.Equal(t, "midtrans", newProvider(configWithProvider("midtrans"), nil).Name())
}

func configWithProvider(name string) config.ProviderConfig {
	return config.ProviderConfig{Name: name, Timeout: time.Second}
}
