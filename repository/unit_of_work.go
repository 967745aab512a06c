package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"time26/events"
	"time26/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                 txBeginner
	tx                 pgx.Tx
	ctx                context.Context
	transactionalBus   *events.TransactionalBus
	userRepo           service.UserRepository
	balanceHistoryRepo service.BalanceHistoryRepository
	settlementRepo     service.SettlementRepository
	drawingRepo        service.DrawingSessionRepository
	gaslessMintRepo    service.GaslessMintRepository
	inconsistencyRepo  service.InconsistencyRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. db is usually a *database.DB.
func NewUnitOfWorkFactory(db txBeginner, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       txBeginner
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.userRepo = newUserRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.settlementRepo = newSettlementRepositoryWithTx(tx)
	u.drawingRepo = newDrawingSessionRepositoryWithTx(tx)
	u.gaslessMintRepo = newGaslessMintRepositoryWithTx(tx)
	u.inconsistencyRepo = newInconsistencyRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) mustBegin(repo any) {
	if repo == nil {
		panic("unit of work not started - call Begin() first")
	}
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	u.mustBegin(u.userRepo)
	return u.userRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	u.mustBegin(u.balanceHistoryRepo)
	return u.balanceHistoryRepo
}

// SettlementRepository returns the settlement repository for this unit of work
func (u *unitOfWork) SettlementRepository() service.SettlementRepository {
	u.mustBegin(u.settlementRepo)
	return u.settlementRepo
}

// DrawingSessionRepository returns the drawing session repository for this unit of work
func (u *unitOfWork) DrawingSessionRepository() service.DrawingSessionRepository {
	u.mustBegin(u.drawingRepo)
	return u.drawingRepo
}

// GaslessMintRepository returns the gasless mint repository for this unit of work
func (u *unitOfWork) GaslessMintRepository() service.GaslessMintRepository {
	u.mustBegin(u.gaslessMintRepo)
	return u.gaslessMintRepo
}

// InconsistencyRepository returns the inconsistency repository for this unit of work
func (u *unitOfWork) InconsistencyRepository() service.InconsistencyRepository {
	u.mustBegin(u.inconsistencyRepo)
	return u.inconsistencyRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
