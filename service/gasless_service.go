package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/chain"
	"time26/events"
	"time26/metrics"
	"time26/models"
)

const (
	maxDisplayNameLength = 64
	maxMessageLength     = 280
)

// ReconcileResult counts what a reconciliation pass resolved
type ReconcileResult struct {
	Checked      int `json:"checked"`
	Minted       int `json:"minted"`
	RolledBack   int `json:"rolledBack"`
	StillPending int `json:"stillPending"`
	Errors       int `json:"errors"`
}

// GaslessConfig holds the tunables of the sponsored mint flow
type GaslessConfig struct {
	MinimumBalance     decimal.Decimal
	TxTimeout          time.Duration
	ReconcileBatchSize int
}

type gaslessService struct {
	uowFactory UnitOfWorkFactory
	ledger     LedgerService
	mint       MintContract
	pool       RewardPool
	prices     PriceOracle
	cfg        GaslessConfig
	metrics    metrics.Indicators
}

// NewGaslessService creates a new gasless mint service. pool supplies the
// amount already claimed on-chain, which is not spendable off-chain.
func NewGaslessService(uowFactory UnitOfWorkFactory, ledger LedgerService, mint MintContract, pool RewardPool, prices PriceOracle, cfg GaslessConfig, indicators metrics.Indicators) GaslessService {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 120 * time.Second
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 50
	}
	return &gaslessService{
		uowFactory: uowFactory,
		ledger:     ledger,
		mint:       mint,
		pool:       pool,
		prices:     prices,
		cfg:        cfg,
		metrics:    indicators,
	}
}

// GasCostInToken converts a native-currency gas cost to TIME26, rounding up.
// Both currencies use 18 decimals, so the conversion is a plain price ratio.
func GasCostInToken(gasWei, nativeUSD, tokenUSD decimal.Decimal) (decimal.Decimal, error) {
	if tokenUSD.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("invalid token price %s", tokenUSD)
	}
	q, r := gasWei.Mul(nativeUSD).QuoRem(tokenUSD, 0)
	if r.Sign() > 0 {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q, nil
}

func (s *gaslessService) CheckEligibility(ctx context.Context, userID string, durationSeconds int64) (*models.GaslessEligibilityResult, error) {
	if durationSeconds <= 0 {
		return nil, &ValidationError{Field: "duration", Reason: "must be positive"}
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.evaluate(ctx, user, models.SponsoredMintRequest{
		Recipient:       user.WalletAddress,
		DurationSeconds: durationSeconds,
	})
}

func (s *gaslessService) evaluate(ctx context.Context, user *models.User, req models.SponsoredMintRequest) (*models.GaslessEligibilityResult, error) {
	mintCost, err := s.mint.MintPrice(ctx, req.DurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to read mint price: %w", err)
	}
	gasWei, err := s.mint.EstimateMintGas(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate mint gas: %w", err)
	}
	tokenUSD, nativeUSD, err := s.prices.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	gasCost, err := GasCostInToken(gasWei, nativeUSD, tokenUSD)
	if err != nil {
		return nil, err
	}

	balance, err := s.unclaimedBalance(ctx, user)
	if err != nil {
		return nil, err
	}
	total := mintCost.Add(gasCost)
	result := &models.GaslessEligibilityResult{
		Eligible:         true,
		UnclaimedBalance: balance,
		MintCostTime26:   mintCost,
		GasCostTime26:    gasCost,
		TotalCostTime26:  total,
	}

	switch {
	case balance.LessThan(total):
		shortfall := total.Sub(balance)
		result.Eligible = false
		result.Reason = models.ReasonInsufficientBalance
		result.Shortfall = &shortfall
	case balance.LessThan(s.cfg.MinimumBalance):
		shortfall := s.cfg.MinimumBalance.Sub(balance)
		result.Eligible = false
		result.Reason = models.ReasonBelowMinimumBalance
		result.Shortfall = &shortfall
	}

	return result, nil
}

// unclaimedBalance is the ledger balance minus what the wallet has already
// claimed on-chain against the cumulative tree, floored at zero
func (s *gaslessService) unclaimedBalance(ctx context.Context, user *models.User) (decimal.Decimal, error) {
	if !common.IsHexAddress(user.WalletAddress) {
		return user.Time26Balance, nil
	}
	claimed, err := s.pool.Claimed(ctx, common.HexToAddress(user.WalletAddress))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read claimed amount: %w", err)
	}
	unclaimed := user.Time26Balance.Sub(claimed)
	if unclaimed.Sign() < 0 {
		return decimal.Zero, nil
	}
	return unclaimed, nil
}

// Mint debits the full cost, submits the sponsored mint, and reverses the
// debit only when the chain has definitely not minted.
func (s *gaslessService) Mint(ctx context.Context, userID string, req models.SponsoredMintRequest) (*models.GaslessMintResult, error) {
	if err := validateMintRequest(req); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.Recipient = user.WalletAddress

	eligibility, err := s.evaluate(ctx, user, req)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		if eligibility.Reason == models.ReasonInsufficientBalance {
			return nil, &InsufficientBalanceError{Available: eligibility.UnclaimedBalance, Requested: eligibility.TotalCostTime26}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, eligibility.Reason)
	}
	total := eligibility.TotalCostTime26

	if _, err := s.ledger.ConditionalDebit(ctx, userID, total, models.TransactionTypeGaslessMintDebit, map[string]any{
		"sessionId": req.SessionID,
		"duration":  req.DurationSeconds,
		"mintCost":  eligibility.MintCostTime26.String(),
		"gasCost":   eligibility.GasCostTime26.String(),
	}); err != nil {
		return nil, err
	}

	record := &models.GaslessMint{
		ID:              uuid.NewString(),
		UserID:          userID,
		SessionID:       req.SessionID,
		DurationSeconds: req.DurationSeconds,
		Amount:          total,
		Status:          models.MintStatusPending,
	}
	if err := s.createRecord(ctx, record); err != nil {
		if rbErr := s.ledger.Rollback(ctx, userID, total, "gasless mint record failed"); rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"mintId":    record.ID,
		"userId":    userID,
		"sessionId": req.SessionID,
		"amount":    total.String(),
	})

	mintCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TxTimeout)
	defer cancel()
	receipt, mintErr := s.mint.SponsoredMint(mintCtx, req)

	if mintErr == nil {
		s.setStatus(ctx, record, models.MintStatusMinted, &receipt.TxHash, optional(receipt.TokenID), nil)
		logger.WithFields(log.Fields{
			"txHash":  receipt.TxHash,
			"tokenId": receipt.TokenID,
		}).Info("Sponsored mint confirmed")
		return &models.GaslessMintResult{
			Success:         true,
			TxHash:          receipt.TxHash,
			TokenID:         receipt.TokenID,
			BalanceDeducted: total,
		}, nil
	}

	errMsg := mintErr.Error()
	var txHash *string
	if receipt != nil {
		txHash = optional(receipt.TxHash)
	}

	if !isDefiniteFailure(mintErr) {
		// The transaction may still land; refunding now could pay twice.
		s.setStatus(ctx, record, models.MintStatusUnknown, txHash, nil, &errMsg)
		logger.WithError(mintErr).Warn("Sponsored mint outcome unknown, leaving debit in pending burn")
		return nil, fmt.Errorf("%w: mint %s: %v", ErrMintOutcomeUnknown, record.ID, mintErr)
	}

	s.setStatus(ctx, record, models.MintStatusFailed, txHash, nil, &errMsg)
	if err := s.ledger.Rollback(ctx, userID, total, "gasless mint failed"); err != nil {
		logger.WithError(err).Error("Failed to restore balance after failed mint")
		return nil, errors.Join(fmt.Errorf("sponsored mint failed: %w", mintErr), err)
	}
	s.setStatus(ctx, record, models.MintStatusRolledBack, txHash, nil, &errMsg)
	logger.WithError(mintErr).Warn("Sponsored mint failed, balance restored")

	return nil, fmt.Errorf("sponsored mint failed, balance restored: %w", mintErr)
}

// ReconcilePending resolves mints whose outcome was unknown when submitted
func (s *gaslessService) ReconcilePending(ctx context.Context) (*ReconcileResult, error) {
	mints, err := s.listOpen(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	for _, m := range mints {
		result.Checked++
		logger := log.WithFields(log.Fields{"mintId": m.ID, "userId": m.UserID})

		if m.TxHash == nil {
			// Never reached the mempool, or the hash was lost with the process
			result.StillPending++
			logger.Warn("Open mint has no transaction hash, needs manual review")
			continue
		}

		receipt, err := s.mint.MintOutcome(ctx, *m.TxHash)
		switch {
		case err == nil:
			s.setStatus(ctx, m, models.MintStatusMinted, &receipt.TxHash, optional(receipt.TokenID), nil)
			result.Minted++
		case errors.Is(err, chain.ErrOutcomeUnknown):
			result.StillPending++
		case errors.Is(err, chain.ErrTxReverted):
			errMsg := err.Error()
			s.setStatus(ctx, m, models.MintStatusFailed, m.TxHash, nil, &errMsg)
			if rbErr := s.ledger.Rollback(ctx, m.UserID, m.Amount, "gasless mint reverted"); rbErr != nil {
				logger.WithError(rbErr).Error("Failed to restore balance after reverted mint")
				result.Errors++
				continue
			}
			s.setStatus(ctx, m, models.MintStatusRolledBack, m.TxHash, nil, &errMsg)
			result.RolledBack++
		default:
			logger.WithError(err).Warn("Failed to look up mint outcome")
			result.Errors++
		}
	}

	if result.Checked > 0 {
		log.WithFields(log.Fields{
			"checked":      result.Checked,
			"minted":       result.Minted,
			"rolledBack":   result.RolledBack,
			"stillPending": result.StillPending,
			"errors":       result.Errors,
		}).Info("Reconciled open mints")
	}

	return result, nil
}

func validateMintRequest(req models.SponsoredMintRequest) error {
	switch {
	case req.DurationSeconds <= 0:
		return &ValidationError{Field: "duration", Reason: "must be positive"}
	case req.SessionID == "":
		return &ValidationError{Field: "sessionId", Reason: "is required"}
	case req.MetadataURI == "":
		return &ValidationError{Field: "metadataURI", Reason: "is required"}
	case utf8.RuneCountInString(req.DisplayName) > maxDisplayNameLength:
		return &ValidationError{Field: "displayName", Reason: fmt.Sprintf("longer than %d characters", maxDisplayNameLength)}
	case utf8.RuneCountInString(req.Message) > maxMessageLength:
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("longer than %d characters", maxMessageLength)}
	}
	return nil
}

// isDefiniteFailure reports whether the chain cannot have minted: the
// transaction reverted or was never broadcast. Anything else may still land.
func isDefiniteFailure(err error) bool {
	return errors.Is(err, chain.ErrTxReverted) || errors.Is(err, chain.ErrNotBroadcast)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *gaslessService) loadUser(ctx context.Context, userID string) (*models.User, error) {
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
	return user, nil
}

func (s *gaslessService) createRecord(ctx context.Context, record *models.GaslessMint) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GaslessMintRepository().Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record mint: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *gaslessService) listOpen(ctx context.Context) ([]*models.GaslessMint, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	mints, err := uow.GaslessMintRepository().ListOpen(ctx, s.cfg.ReconcileBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list open mints: %w", err)
	}
	return mints, nil
}

// setStatus persists a status transition. The chain outcome is already
// decided by now, so a failed write is logged rather than returned.
func (s *gaslessService) setStatus(ctx context.Context, m *models.GaslessMint, status models.MintStatus, txHash, tokenID, errMsg *string) {
	ctx = context.WithoutCancel(ctx)
	err := func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return err
		}
		defer uow.Rollback()

		if err := uow.GaslessMintRepository().UpdateStatus(ctx, m.ID, status, txHash, tokenID, errMsg); err != nil {
			return err
		}
		if status != models.MintStatusFailed {
			evt := events.GaslessMintEvent{MintID: m.ID, UserID: m.UserID, Status: status}
			if txHash != nil {
				evt.TxHash = *txHash
			}
			if tokenID != nil {
				evt.TokenID = *tokenID
			}
			uow.EventBus().Publish(evt)
		}
		return uow.Commit()
	}()
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"mintId": m.ID,
			"status": status,
		}).Error("Failed to update mint status")
		return
	}
	m.Status = status
	s.metrics.IncLedgerOperation("mint_"+string(status), "ok")
}
