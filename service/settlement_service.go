package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/events"
	"time26/metrics"
	"time26/models"
	"time26/rewards"
)

// SettlementResult summarises one Settle call
type SettlementResult struct {
	DayID            string                    `json:"dayId"`
	Skipped          bool                      `json:"skipped"`
	ParticipantCount int                       `json:"participantCount"`
	TotalSeconds     int64                     `json:"totalSeconds"`
	TotalBudget      decimal.Decimal           `json:"totalBudget"`
	TotalDistributed decimal.Decimal           `json:"totalDistributed"`
	UserRewards      []models.UserRewardResult `json:"userRewards"`
}

type settlementService struct {
	uowFactory  UnitOfWorkFactory
	rewardPool  RewardPool
	dailyBudget decimal.Decimal
	metrics     metrics.Indicators
	now         func() time.Time
}

// NewSettlementService creates a new settlement service. rewardPool may be
// nil, in which case contract balances are not snapshotted.
func NewSettlementService(uowFactory UnitOfWorkFactory, rewardPool RewardPool, dailyBudget decimal.Decimal, indicators metrics.Indicators, now func() time.Time) SettlementService {
	if now == nil {
		now = time.Now
	}
	return &settlementService{
		uowFactory:  uowFactory,
		rewardPool:  rewardPool,
		dailyBudget: dailyBudget,
		metrics:     indicators,
		now:         now,
	}
}

// Settle distributes the daily budget for dayID. Running it again for a
// settled day is a no-op that reports Skipped.
func (s *settlementService) Settle(ctx context.Context, dayID string) (*SettlementResult, error) {
	dayStart, dayEnd, err := rewards.DayBounds(dayID)
	if err != nil {
		return nil, &ValidationError{Field: "dayId", Reason: err.Error()}
	}
	if dayEnd.After(s.now()) {
		return nil, &ValidationError{Field: "dayId", Reason: "day has not ended yet"}
	}

	logger := log.WithField("dayId", dayID)

	exists, intervals, wallets, err := s.loadDay(ctx, dayID, dayStart, dayEnd)
	if err != nil {
		s.metrics.IncSettlement("error")
		return nil, err
	}
	if exists {
		logger.Info("Day already settled, skipping")
		s.metrics.IncSettlement("skipped")
		return &SettlementResult{DayID: dayID, Skipped: true, UserRewards: []models.UserRewardResult{}}, nil
	}

	agg := rewards.Aggregate(dayStart, intervals)
	results := rewards.Allocate(agg, s.dailyBudget)
	for i := range results {
		wallet, ok := wallets[results[i].UserID]
		if !ok {
			s.metrics.IncSettlement("error")
			return nil, fmt.Errorf("%w: participant %s", ErrUserNotFound, results[i].UserID)
		}
		results[i].WalletAddress = wallet
	}
	distributed := rewards.SumRewards(results)

	settlement := &models.DailySettlement{
		DayID:            dayID,
		TotalBudget:      s.dailyBudget,
		TotalSeconds:     agg.TotalSeconds,
		TotalDistributed: distributed,
		ParticipantCount: len(results),
	}
	s.snapshotPool(ctx, settlement)

	inserted, err := s.persist(ctx, settlement, results)
	if err != nil {
		s.metrics.IncSettlement("error")
		return nil, err
	}
	if !inserted {
		logger.Info("Day settled concurrently by another run, skipping")
		s.metrics.IncSettlement("skipped")
		return &SettlementResult{DayID: dayID, Skipped: true, UserRewards: []models.UserRewardResult{}}, nil
	}

	s.metrics.IncSettlement("settled")
	logger.WithFields(log.Fields{
		"participants":     len(results),
		"totalSeconds":     agg.TotalSeconds,
		"totalDistributed": distributed.String(),
		"dailyBudget":      s.dailyBudget.String(),
	}).Info("Settled day")

	return &SettlementResult{
		DayID:            dayID,
		ParticipantCount: len(results),
		TotalSeconds:     agg.TotalSeconds,
		TotalBudget:      s.dailyBudget,
		TotalDistributed: distributed,
		UserRewards:      results,
	}, nil
}

// loadDay checks the settled flag, then reads the day's sessions and the participants' wallets
func (s *settlementService) loadDay(ctx context.Context, dayID string, dayStart, dayEnd time.Time) (bool, []models.DrawingInterval, map[string]string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	exists, err := uow.SettlementRepository().Exists(ctx, dayID)
	if err != nil {
		return false, nil, nil, fmt.Errorf("failed to check settlement: %w", err)
	}
	if exists {
		return true, nil, nil, nil
	}

	intervals, err := uow.DrawingSessionRepository().ListBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return false, nil, nil, fmt.Errorf("failed to list drawing sessions: %w", err)
	}

	wallets := make(map[string]string)
	if len(intervals) == 0 {
		return false, intervals, wallets, nil
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, iv := range intervals {
		if _, ok := seen[iv.UserID]; ok || iv.UserID == "" {
			continue
		}
		seen[iv.UserID] = struct{}{}
		ids = append(ids, iv.UserID)
	}

	users, err := uow.UserRepository().GetByIDs(ctx, ids)
	if err != nil {
		return false, nil, nil, fmt.Errorf("failed to get participants: %w", err)
	}
	for id, u := range users {
		wallets[id] = u.WalletAddress
	}

	return false, intervals, wallets, nil
}

// snapshotPool records the pool balance around the distribution. A chain
// failure only loses the audit figures.
func (s *settlementService) snapshotPool(ctx context.Context, settlement *models.DailySettlement) {
	if s.rewardPool == nil {
		return
	}
	before, err := s.rewardPool.TokenBalance(ctx)
	if err != nil {
		log.WithError(err).WithField("dayId", settlement.DayID).Warn("Failed to read reward pool balance")
		return
	}
	after := before.Sub(settlement.TotalDistributed)
	settlement.ContractBalanceBefore = &before
	settlement.ContractBalanceAfter = &after
}

// persist writes the settlement gate row, per-user rows and credits atomically
func (s *settlementService) persist(ctx context.Context, settlement *models.DailySettlement, results []models.UserRewardResult) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	inserted, err := uow.SettlementRepository().Create(ctx, settlement)
	if err != nil {
		return false, fmt.Errorf("failed to create settlement: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if err := uow.SettlementRepository().InsertRewards(ctx, settlement.DayID, results); err != nil {
		return false, fmt.Errorf("failed to insert rewards: %w", err)
	}

	relatedID := fmt.Sprintf("%d", settlement.ID)
	relatedType := models.RelatedTypeSettlement
	for _, r := range results {
		if r.TotalReward.Sign() <= 0 {
			continue
		}
		user, err := uow.UserRepository().Credit(ctx, r.UserID, r.TotalReward)
		if err != nil {
			return false, fmt.Errorf("failed to credit user %s: %w", r.UserID, err)
		}
		history := creditHistory(user, r.TotalReward, models.TransactionTypeSettlementCredit, map[string]any{
			"dayId":           settlement.DayID,
			"weightedSeconds": r.WeightedSeconds.String(),
		})
		history.RelatedID = &relatedID
		history.RelatedType = &relatedType
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return false, err
		}
	}

	uow.EventBus().Publish(events.SettlementCompletedEvent{
		DayID:            settlement.DayID,
		ParticipantCount: settlement.ParticipantCount,
		TotalSeconds:     settlement.TotalSeconds,
		TotalDistributed: settlement.TotalDistributed,
	})

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}
