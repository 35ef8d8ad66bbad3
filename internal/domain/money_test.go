package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"25.00", 2500},
		{"2500", 250000},
		{"0.01", 1},
		{"1234.56", 123456},
		{"2450000.00", 245000000},
	}
	for _, tc := range cases {
		got, err := ParseAmountMinor(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseAmountMinor_Rejects(t *testing.T) {
	for _, in := range []string{"0", "-1.00", "0.001", "abc", ""} {
		_, err := ParseAmountMinor(in)
		require.Error(t, err, in)
		var verr *ErrValidation
		assert.ErrorAs(t, err, &verr, in)
	}
}

func TestFormatMinor_RoundTrip(t *testing.T) {
	// Repeated parse/format cycles must not drift.
	s := "2500.00"
	for i := 0; i < 50; i++ {
		minor, err := ParseAmountMinor(s)
		require.NoError(t, err)
		assert.Equal(t, int64(250000), minor)
		s = FormatMinor(minor)
	}
	assert.Equal(t, "2500.00", s)
}

func TestTransactionCorrelationID(t *testing.T) {
	tx := &Transaction{Provider: ProviderBankRail}
	tx.SetCorrelationID("bt_123")
	assert.Equal(t, "bt_123", tx.BankTransferID)
	assert.Equal(t, "bt_123", tx.CorrelationID())
	assert.Empty(t, tx.ChargeID)

	tx = &Transaction{Provider: ProviderCardProcessor}
	tx.SetCorrelationID("ch_9")
	assert.Equal(t, "ch_9", tx.CorrelationID())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []TransactionStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.Terminal())
	}
}

func TestOwnerAccountID(t *testing.T) {
	tx := &Transaction{SourceAccountID: "a", DestAccountID: "b"}
	assert.Equal(t, "a", tx.OwnerAccountID())
	tx.SourceAccountID = ""
	assert.Equal(t, "b", tx.OwnerAccountID())
}

func TestFilterNormalize(t *testing.T) {
	f := &TransactionFilter{}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)

	f = &TransactionFilter{Page: 3, PageSize: 500}
	f.Normalize()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 100, f.PageSize)
}
