package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/models"
	"time26/repository/testutil"
)

func TestLedger_DebitThenRollbackRestoresExactly(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB.DB)

	testutil.InsertUser(t, testDB.DB, "user-1", testutil.WalletFor(1), "86301369863013698630136")
	before, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)

	amount := decimal.RequireFromString("12345678901234567890")
	debited, err := repo.ConditionalDebit(ctx, "user-1", amount)
	require.NoError(t, err)
	require.NotNil(t, debited)
	assert.Equal(t, amount.String(), debited.Time26PendingBurn.String())

	restored, err := repo.RollbackDebit(ctx, "user-1", amount)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, before.Time26Balance.String(), restored.Time26Balance.String())
	assert.Equal(t, before.Time26PendingBurn.String(), restored.Time26PendingBurn.String())
}

func TestLedger_ConcurrentDebitsNeverOverspend(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB.DB)

	testutil.InsertUser(t, testDB.DB, "user-1", testutil.WalletFor(1), "1000")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := repo.ConditionalDebit(ctx, "user-1", decimal.NewFromInt(100))
			assert.NoError(t, err)
			if user != nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	user, err := repo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "0", user.Time26Balance.String())
	assert.Equal(t, "1000", user.Time26PendingBurn.String())
}

func TestSettlement_UniqueDayGate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewSettlementRepository(testDB.DB)

	s := &models.DailySettlement{
		DayID:            "2026-03-14",
		TotalBudget:      decimal.NewFromInt(1000),
		TotalDistributed: decimal.NewFromInt(999),
		ParticipantCount: 3,
	}
	inserted, err := repo.Create(ctx, s)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := *s
	inserted, err = repo.Create(ctx, &again)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.GetByDayID(ctx, "2026-03-14")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "2026-03-14", stored.DayID)
	assert.Nil(t, stored.ContractBalanceBefore)
}

func TestDrawingSessions_ListBetweenIncludesOverlaps(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()
	repo := NewDrawingSessionRepository(testDB.DB)
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	testutil.InsertUser(t, testDB.DB, "a", testutil.WalletFor(1), "0")
	testutil.InsertSession(t, testDB.DB, testutil.CreateTestInterval("a", day, -30, 60))
	testutil.InsertSession(t, testDB.DB, testutil.CreateTestInterval("a", day, 100, 10))
	testutil.InsertSession(t, testDB.DB, testutil.CreateTestInterval("a", day, -600, 60))
	testutil.InsertSession(t, testDB.DB, testutil.CreateTestInterval("a", day, 86400, 60))

	intervals, err := repo.ListBetween(ctx, day, day.Add(24*time.Hour))

	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, "a--30", intervals[0].SessionID)
	assert.Equal(t, int64(10), intervals[1].DurationSeconds)
}
