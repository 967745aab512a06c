package service

import (
	"context"
	"fmt"

	"time26/events"
	"time26/models"
)

// RecordBalanceChange journals a ledger mutation and queues its event.
// Every balance change goes through here so history and events stay in step.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed only if the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		PendingBurn:     history.PendingBurnAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}
