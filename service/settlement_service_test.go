package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"time26/events"
	"time26/models"
)

const (
	settleDay   = "2025-03-01"
	dailyBudget = "86301369863013698630136"
	walletAlice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletBob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var (
	settleStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	settleEnd   = settleStart.Add(24 * time.Hour)
	settleNow   = settleEnd.Add(30 * time.Minute)
)

type settlementFixture struct {
	uow         *MockUnitOfWork
	factory     *MockUnitOfWorkFactory
	users       *MockUserRepository
	history     *MockBalanceHistoryRepository
	settlements *MockSettlementRepository
	sessions    *MockDrawingSessionRepository
	pool        *MockRewardPool
	service     SettlementService
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		uow:         new(MockUnitOfWork),
		factory:     new(MockUnitOfWorkFactory),
		users:       new(MockUserRepository),
		history:     new(MockBalanceHistoryRepository),
		settlements: new(MockSettlementRepository),
		sessions:    new(MockDrawingSessionRepository),
		pool:        new(MockRewardPool),
	}
	f.uow.SetRepositories(MockRepositories{
		Users:       f.users,
		History:     f.history,
		Settlements: f.settlements,
		Sessions:    f.sessions,
	})
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", mock.Anything).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.service = NewSettlementService(f.factory, f.pool, dec(dailyBudget), new(MockIndicators), func() time.Time { return settleNow })
	return f
}

// alice draws 00:00-01:00, bob 00:30-01:30: 1800s alone and 1800s shared each
func overlappingSessions() []models.DrawingInterval {
	return []models.DrawingInterval{
		{UserID: "alice", SessionID: "s-1", StartTime: settleStart, DurationSeconds: 3600},
		{UserID: "bob", SessionID: "s-2", StartTime: settleStart.Add(30 * time.Minute), DurationSeconds: 3600},
	}
}

func (f *settlementFixture) expectParticipants(ctx context.Context) {
	f.users.On("GetByIDs", ctx, []string{"alice", "bob"}).Return(map[string]*models.User{
		"alice": {ID: "alice", WalletAddress: walletAlice},
		"bob":   {ID: "bob", WalletAddress: walletBob},
	}, nil)
}

func (f *settlementFixture) expectCredits(ctx context.Context) {
	for _, id := range []string{"alice", "bob"} {
		f.users.On("Credit", ctx, id, dec("43150684931506849315068")).Return(&models.User{
			ID:            id,
			Time26Balance: dec("43150684931506849315068"),
		}, nil).Once()
	}
	f.history.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeSettlementCredit &&
			h.RelatedType != nil && *h.RelatedType == models.RelatedTypeSettlement &&
			h.RelatedID != nil && *h.RelatedID == "5" &&
			h.BalanceBefore.IsZero()
	})).Return(nil).Twice()
}

func TestSettlementService_Settle(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	var stored *models.DailySettlement
	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return(overlappingSessions(), nil)
	f.expectParticipants(ctx)
	f.pool.On("TokenBalance", ctx).Return(dec("100000000000000000000000"), nil)
	f.settlements.On("Create", ctx, mock.AnythingOfType("*models.DailySettlement")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.DailySettlement)
		stored.ID = 5
	}).Return(true, nil)
	f.settlements.On("InsertRewards", ctx, settleDay, mock.MatchedBy(func(r []models.UserRewardResult) bool {
		return len(r) == 2 && r[0].WalletAddress == walletAlice && r[1].WalletAddress == walletBob
	})).Return(nil)
	f.expectCredits(ctx)
	f.uow.On("Commit").Return(nil)

	result, err := f.service.Settle(ctx, settleDay)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.ParticipantCount)
	assert.Equal(t, int64(5400), result.TotalSeconds)
	assert.Equal(t, "86301369863013698630136", result.TotalDistributed.String())
	require.Len(t, result.UserRewards, 2)
	assert.Equal(t, result.UserRewards[0].TotalReward, result.UserRewards[1].TotalReward)
	assert.Equal(t, "2700", result.UserRewards[0].WeightedSeconds.String())

	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.ParticipantCount)
	require.NotNil(t, stored.ContractBalanceAfter)
	assert.Equal(t, "13698630136986301369864", stored.ContractBalanceAfter.String())

	var completed int
	for _, e := range f.uow.Published() {
		if e.Type() == events.EventTypeSettlementCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	f.settlements.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.history.AssertExpectations(t)
	f.uow.AssertExpectations(t)
}

func TestSettlementService_Settle_AlreadySettled(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	f.settlements.On("Exists", ctx, settleDay).Return(true, nil)

	result, err := f.service.Settle(ctx, settleDay)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"userRewards":[]`)
	f.sessions.AssertNotCalled(t, "ListBetween", mock.Anything, mock.Anything, mock.Anything)
	f.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.uow.AssertNotCalled(t, "Commit")
}

func TestSettlementService_Settle_LosesRace(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return(overlappingSessions(), nil)
	f.expectParticipants(ctx)
	f.pool.On("TokenBalance", ctx).Return(dec("1"), nil)
	f.settlements.On("Create", ctx, mock.Anything).Return(false, nil)

	result, err := f.service.Settle(ctx, settleDay)

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	f.settlements.AssertNotCalled(t, "InsertRewards", mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	f.uow.AssertNotCalled(t, "Commit")
}

func TestSettlementService_Settle_PoolReadFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	var stored *models.DailySettlement
	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return(overlappingSessions(), nil)
	f.expectParticipants(ctx)
	f.pool.On("TokenBalance", ctx).Return(decimal.Zero, errors.New("rpc unavailable"))
	f.settlements.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.DailySettlement)
		stored.ID = 5
	}).Return(true, nil)
	f.settlements.On("InsertRewards", ctx, settleDay, mock.Anything).Return(nil)
	f.expectCredits(ctx)
	f.uow.On("Commit").Return(nil)

	result, err := f.service.Settle(ctx, settleDay)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Nil(t, stored.ContractBalanceBefore)
	assert.Nil(t, stored.ContractBalanceAfter)
}

func TestSettlementService_Settle_CreditFailureCommitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return(overlappingSessions(), nil)
	f.expectParticipants(ctx)
	f.pool.On("TokenBalance", ctx).Return(dec("1"), nil)
	f.settlements.On("Create", ctx, mock.Anything).Return(true, nil)
	f.settlements.On("InsertRewards", ctx, settleDay, mock.Anything).Return(nil)
	f.users.On("Credit", ctx, "alice", mock.Anything).Return(nil, errors.New("deadlock detected"))

	_, err := f.service.Settle(ctx, settleDay)

	assert.ErrorContains(t, err, "failed to credit user alice")
	f.uow.AssertNotCalled(t, "Commit")
	f.uow.AssertCalled(t, "Rollback")
}

func TestSettlementService_Settle_NoParticipants(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return([]models.DrawingInterval{}, nil)
	f.pool.On("TokenBalance", ctx).Return(dec("1000"), nil)
	f.settlements.On("Create", ctx, mock.MatchedBy(func(s *models.DailySettlement) bool {
		return s.ParticipantCount == 0 && s.TotalDistributed.IsZero()
	})).Return(true, nil)
	f.settlements.On("InsertRewards", ctx, settleDay, mock.Anything).Return(nil)
	f.uow.On("Commit").Return(nil)

	result, err := f.service.Settle(ctx, settleDay)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ParticipantCount)
	assert.True(t, result.TotalDistributed.IsZero())
	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"userRewards":[]`)
	f.users.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_Settle_RejectsBadDays(t *testing.T) {
	f := newSettlementFixture()
	ctx := context.Background()

	_, err := f.service.Settle(ctx, "03/01/2025")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// the day after settleDay has not ended at settleNow
	_, err = f.service.Settle(ctx, "2025-03-02")
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.factory.AssertNotCalled(t, "Create")
}

func TestSettlementService_Settle_MissingParticipant(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture()

	f.settlements.On("Exists", ctx, settleDay).Return(false, nil)
	f.sessions.On("ListBetween", ctx, settleStart, settleEnd).Return(overlappingSessions(), nil)
	f.users.On("GetByIDs", ctx, []string{"alice", "bob"}).Return(map[string]*models.User{
		"alice": {ID: "alice", WalletAddress: walletAlice},
	}, nil)

	_, err := f.service.Settle(ctx, settleDay)

	assert.ErrorIs(t, err, ErrUserNotFound)
	f.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
