package rewards

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyBudget_AnnualPool(t *testing.T) {
	annual := TokensToWei(decimal.NewFromInt(31_500_000))

	budget := DailyBudget(annual)

	assert.Equal(t, "86301369863013698630136", budget.String())
	assert.True(t, budget.Mul(decimal.NewFromInt(DaysPerYear)).LessThanOrEqual(annual))
}

func TestWeiToTokens(t *testing.T) {
	assert.Equal(t, "1.5", WeiToTokens(decimal.RequireFromString("1500000000000000000")).String())
}

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2026-03-14")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = DayBounds("14/03/2026")
	assert.Error(t, err)
}

func TestPreviousDayID(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, "2025-12-31", PreviousDayID(now))
}
