package ratelimit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBudget_InitialValues(t *testing.T) {
	b := New()
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(10_000)))
	assert.False(t, b.IsHealthy()) // ratio = 0/1 = 0, below the 1.0 threshold
}

func TestBudget_OnRequestDecrementsRemaining(t *testing.T) {
	b := New()
	b.OnRequest(1)
	b.OnRequest(1)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(9_998)))
	assert.Equal(t, int64(2), b.NRequests())
}

func TestBudget_OnRequestDefaultsToOne(t *testing.T) {
	b := New()
	b.OnRequest(0)
	assert.Equal(t, int64(1), b.NRequests())
}

func TestBudget_OnFillIncreasesCumVlm(t *testing.T) {
	b := New()
	b.OnFill(decimal.NewFromInt(100))
	b.OnFill(decimal.NewFromInt(50))
	assert.True(t, b.CumVlm().Equal(decimal.NewFromInt(150)))
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(10_150)))
}

func TestBudget_SyncFromExchangeOverwrites(t *testing.T) {
	b := New()
	b.OnRequest(5)
	b.OnFill(decimal.NewFromInt(10))

	b.SyncFromExchange(decimal.NewFromInt(2000), 100)
	assert.True(t, b.CumVlm().Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, int64(100), b.NRequests())
}

func TestBudget_RemainingNeverNegative(t *testing.T) {
	b := New()
	b.SyncFromExchange(decimal.Zero, 50_000)
	assert.True(t, b.Remaining().Equal(decimal.Zero))
}

func TestBudget_IsHealthy(t *testing.T) {
	b := New()
	b.SyncFromExchange(decimal.NewFromInt(100), 100)
	assert.True(t, b.IsHealthy()) // ratio == 1.0

	b.SyncFromExchange(decimal.NewFromInt(50), 100)
	assert.False(t, b.IsHealthy()) // ratio 0.5 < 1.0
}

func TestBudget_IsEmergency(t *testing.T) {
	b := New()
	b.SyncFromExchange(decimal.Zero, 9_700)
	assert.True(t, b.IsEmergency()) // remaining = 300 < 500

	b.SyncFromExchange(decimal.Zero, 9_000)
	assert.False(t, b.IsEmergency()) // remaining = 1000 >= 500
}
