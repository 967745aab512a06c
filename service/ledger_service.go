package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/events"
	"time26/metrics"
	"time26/models"
)

// rollbackRetries is how many times a failed rollback is retried after the first attempt
const rollbackRetries = 3

var errNoPendingBurn = errors.New("pending burn does not cover rollback amount")

// SpendRequest is a user-initiated debit
type SpendRequest struct {
	UserID    string
	Amount    string
	Reason    string
	SessionID string
}

type ledgerService struct {
	uowFactory UnitOfWorkFactory
	alerter    Alerter
	metrics    metrics.Indicators
	retryBase  time.Duration
}

// NewLedgerService creates a new ledger service. Rollback retries wait
// retryBase, 2*retryBase and 3*retryBase.
func NewLedgerService(uowFactory UnitOfWorkFactory, alerter Alerter, indicators metrics.Indicators, retryBase time.Duration) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		alerter:    alerter,
		metrics:    indicators,
		retryBase:  retryBase,
	}
}

// linearBackOff waits base, 2*base, ... up to max retries, then stops
type linearBackOff struct {
	base    time.Duration
	max     int
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.max {
		return backoff.Stop
	}
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func (s *ledgerService) GetBalance(ctx context.Context, userID string) (*models.LedgerBalance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &models.LedgerBalance{
		UserID:      user.ID,
		Balance:     user.Time26Balance,
		PendingBurn: user.Time26PendingBurn,
	}, nil
}

func (s *ledgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	if amount.Sign() <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().Credit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}

	if err := RecordBalanceChange(ctx, uow, creditHistory(user, amount, models.TransactionTypeSettlementCredit, nil)); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.IncLedgerOperation("credit", "ok")
	return user, nil
}

func (s *ledgerService) ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal, txType models.TransactionType, metadata map[string]any) (*models.User, error) {
	if amount.Sign() <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().ConditionalDebit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Nothing matched: read the row only to explain why
		current, err := uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if current == nil {
			return nil, ErrUserNotFound
		}
		s.metrics.IncLedgerOperation("debit", "insufficient")
		return nil, &InsufficientBalanceError{Available: current.Time26Balance, Requested: amount}
	}

	history := &models.BalanceHistory{
		UserID:              userID,
		BalanceBefore:       user.Time26Balance.Add(amount),
		BalanceAfter:        user.Time26Balance,
		PendingBurnAfter:    user.Time26PendingBurn,
		ChangeAmount:        amount.Neg(),
		TransactionType:     txType,
		TransactionMetadata: metadata,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.metrics.IncLedgerOperation("debit", "ok")
	log.WithFields(log.Fields{
		"userId": userID,
		"amount": amount.String(),
		"type":   txType,
	}).Info("Debited balance into pending burn")
	return user, nil
}

func (s *ledgerService) Spend(ctx context.Context, req SpendRequest) (*models.LedgerBalance, error) {
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if req.Reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "is required"}
	}

	metadata := map[string]any{"reason": req.Reason}
	if req.SessionID != "" {
		metadata["sessionId"] = req.SessionID
	}

	user, err := s.ConditionalDebit(ctx, req.UserID, amount, models.TransactionTypeSpendDebit, metadata)
	if err != nil {
		return nil, err
	}
	return &models.LedgerBalance{
		UserID:      user.ID,
		Balance:     user.Time26Balance,
		PendingBurn: user.Time26PendingBurn,
	}, nil
}

// Rollback reverses a debit. It keeps going even if ctx is cancelled, since
// giving up leaves the user's funds stuck in pending burn.
func (s *ledgerService) Rollback(ctx context.Context, userID string, amount decimal.Decimal, reason string) error {
	ctx = context.WithoutCancel(ctx)
	attempts := 0

	operation := func() error {
		attempts++
		err := s.rollbackOnce(ctx, userID, amount, reason)
		if errors.Is(err, errNoPendingBurn) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"userId":  userID,
			"amount":  amount.String(),
			"attempt": attempts,
			"retryIn": wait.String(),
			"error":   err,
		}).Warn("Debit rollback failed, retrying")
	}

	err := backoff.RetryNotify(operation, &linearBackOff{base: s.retryBase, max: rollbackRetries}, notify)
	if err == nil {
		s.metrics.IncLedgerOperation("rollback", "ok")
		return nil
	}

	s.metrics.IncLedgerOperation("rollback", "exhausted")
	s.raiseInconsistency(ctx, userID, amount, reason, err, attempts)
	return fmt.Errorf("%w: user %s amount %s: %v", ErrRollbackExhausted, userID, amount, err)
}

func (s *ledgerService) rollbackOnce(ctx context.Context, userID string, amount decimal.Decimal, reason string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().RollbackDebit(ctx, userID, amount)
	if err != nil {
		return err
	}
	if user == nil {
		return errNoPendingBurn
	}

	history := creditHistory(user, amount, models.TransactionTypeDebitRollback, map[string]any{"reason": reason})
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userId": userID,
		"amount": amount.String(),
		"reason": reason,
	}).Info("Rolled back debit")
	return nil
}

// raiseInconsistency makes a failed rollback visible to operators through
// every channel available. Each channel failing is logged, never returned.
func (s *ledgerService) raiseInconsistency(ctx context.Context, userID string, amount decimal.Decimal, reason string, cause error, attempts int) {
	s.metrics.IncCriticalInconsistency()

	inc := &models.LedgerInconsistency{
		UserID:    userID,
		Amount:    amount,
		Operation: "debit_rollback",
		Reason:    reason,
		Error:     cause.Error(),
		Attempts:  attempts,
	}

	log.WithFields(log.Fields{
		"critical": true,
		"userId":   userID,
		"amount":   amount.String(),
		"reason":   reason,
		"attempts": attempts,
		"error":    cause,
	}).Error("Debit rollback exhausted retries, amount stuck in pending burn")

	if err := s.recordInconsistency(ctx, inc); err != nil {
		log.WithFields(log.Fields{
			"critical": true,
			"userId":   userID,
			"error":    err,
		}).Error("Failed to persist ledger inconsistency")
	}

	if s.alerter != nil {
		if err := s.alerter.Critical(ctx, inc); err != nil {
			log.WithError(err).WithField("userId", userID).Error("Failed to send critical alert")
		}
	}
}

func (s *ledgerService) recordInconsistency(ctx context.Context, inc *models.LedgerInconsistency) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.InconsistencyRepository().Record(ctx, inc); err != nil {
		return err
	}
	uow.EventBus().Publish(events.LedgerInconsistencyEvent{
		InconsistencyID: inc.ID,
		UserID:          inc.UserID,
		Amount:          inc.Amount,
		Reason:          inc.Reason,
	})

	return uow.Commit()
}

func creditHistory(user *models.User, amount decimal.Decimal, txType models.TransactionType, metadata map[string]any) *models.BalanceHistory {
	return &models.BalanceHistory{
		UserID:              user.ID,
		BalanceBefore:       user.Time26Balance.Sub(amount),
		BalanceAfter:        user.Time26Balance,
		PendingBurnAfter:    user.Time26PendingBurn,
		ChangeAmount:        amount,
		TransactionType:     txType,
		TransactionMetadata: metadata,
	}
}
