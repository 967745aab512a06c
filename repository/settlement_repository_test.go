package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/models"
)

func testSettlement() *models.DailySettlement {
	before := decimal.RequireFromString("1000000000000000000000000")
	after := before.Sub(decimal.NewFromInt(900))
	return &models.DailySettlement{
		DayID:                 "2026-03-14",
		TotalBudget:           decimal.NewFromInt(1000),
		TotalSeconds:          90,
		TotalDistributed:      decimal.NewFromInt(900),
		ParticipantCount:      2,
		ContractBalanceBefore: &before,
		ContractBalanceAfter:  &after,
	}
}

func TestSettlementRepository_Create_Inserted(t *testing.T) {
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithTx(mock)
	s := testSettlement()

	mock.ExpectQuery(`ON CONFLICT \(day_id\) DO NOTHING`).
		WithArgs("2026-03-14", "1000", int64(90), "900", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), testTime))

	inserted, err := repo.Create(context.Background(), s)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7), s.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepository_Create_ConflictMeansAlreadySettled(t *testing.T) {
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithTx(mock)

	mock.ExpectQuery(`INSERT INTO daily_settlements`).
		WithArgs("2026-03-14", "1000", int64(90), "900", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	inserted, err := repo.Create(context.Background(), testSettlement())

	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSettlementRepository_Exists(t *testing.T) {
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithTx(mock)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("2026-03-14").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "2026-03-14")

	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSettlementRepository_InsertRewards(t *testing.T) {
	mock := newMockPool(t)
	repo := newSettlementRepositoryWithTx(mock)

	rewards := []models.UserRewardResult{
		{UserID: "A", WalletAddress: wallet, TotalSeconds: 60, ExclusiveSeconds: 30, SharedSeconds: 30,
			WeightedSeconds: decimal.NewFromInt(45), BaseReward: decimal.NewFromInt(450), BonusReward: decimal.Zero, TotalReward: decimal.NewFromInt(450)},
		{UserID: "B", WalletAddress: wallet, TotalSeconds: 60, ExclusiveSeconds: 30, SharedSeconds: 30,
			WeightedSeconds: decimal.NewFromInt(45), BaseReward: decimal.NewFromInt(450), BonusReward: decimal.Zero, TotalReward: decimal.NewFromInt(450)},
	}
	for _, rw := range rewards {
		mock.ExpectExec(`INSERT INTO user_daily_rewards`).
			WithArgs("2026-03-14", rw.UserID, wallet, int64(60), int64(30), int64(30), "45", "450", "0", "450").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err := repo.InsertRewards(context.Background(), "2026-03-14", rewards)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
