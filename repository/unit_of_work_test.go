package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/events"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	mock := newMockPool(t)
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		received <- e
	})

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE users`).
		WithArgs("5", "user-1").
		WillReturnRows(userRow("user-1", wallet, "5", "0"))
	mock.ExpectCommit()

	uow := NewUnitOfWorkFactory(mock, bus).Create()
	ctx := context.Background()
	require.NoError(t, uow.Begin(ctx))

	_, err := uow.UserRepository().Credit(ctx, "user-1", decimal.NewFromInt(5))
	require.NoError(t, err)
	uow.EventBus().Publish(events.BalanceChangeEvent{UserID: "user-1"})

	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

	select {
	case e := <-received:
		assert.Equal(t, "user-1", e.(events.BalanceChangeEvent).UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not flushed on commit")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RollbackDiscardsEvents(t *testing.T) {
	mock := newMockPool(t)
	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeSettlementCompleted, func(ctx context.Context, e events.Event) {
		received <- e
	})

	mock.ExpectBegin()
	mock.ExpectRollback()

	uow := NewUnitOfWorkFactory(mock, bus).Create()
	require.NoError(t, uow.Begin(context.Background()))
	uow.EventBus().Publish(events.SettlementCompletedEvent{DayID: "2026-03-14"})
	require.NoError(t, uow.Rollback())

	select {
	case <-received:
		t.Fatal("event delivered after rollback")
	case <-time.After(100 * time.Millisecond):
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RepositoryBeforeBeginPanics(t *testing.T) {
	uow := NewUnitOfWorkFactory(newMockPool(t), events.NewBus()).Create()

	assert.Panics(t, func() { uow.UserRepository() })
}

func TestUnitOfWork_DoubleBegin(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin()

	uow := NewUnitOfWorkFactory(mock, events.NewBus()).Create()
	require.NoError(t, uow.Begin(context.Background()))
	assert.Error(t, uow.Begin(context.Background()))
}
