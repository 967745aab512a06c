package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayIDLayout is the canonical dayId format
const DayIDLayout = "2006-01-02"

// DailySettlement is the per-day settlement record. Its existence marks the day as settled.
type DailySettlement struct {
	ID                    int64            `db:"id" json:"id"`
	DayID                 string           `db:"day_id" json:"dayId"`
	TotalBudget           decimal.Decimal  `db:"total_budget" json:"totalBudget"`
	TotalSeconds          int64            `db:"total_seconds" json:"totalSeconds"`
	TotalDistributed      decimal.Decimal  `db:"total_distributed" json:"totalDistributed"`
	ParticipantCount      int              `db:"participant_count" json:"participantCount"`
	ContractBalanceBefore *decimal.Decimal `db:"contract_balance_before" json:"contractBalanceBefore,omitempty"`
	ContractBalanceAfter  *decimal.Decimal `db:"contract_balance_after" json:"contractBalanceAfter,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"createdAt"`
}

// UserRewardResult is the allocator output for one participant
type UserRewardResult struct {
	UserID           string          `json:"userId"`
	WalletAddress    string          `json:"walletAddress"`
	TotalSeconds     int64           `json:"totalSeconds"`
	ExclusiveSeconds int64           `json:"exclusiveSeconds"`
	SharedSeconds    int64           `json:"sharedSeconds"`
	WeightedSeconds  decimal.Decimal `json:"weightedSeconds"`
	BaseReward       decimal.Decimal `json:"baseReward"`
	BonusReward      decimal.Decimal `json:"bonusReward"`
	TotalReward      decimal.Decimal `json:"totalReward"`
}

// UserDailyReward is the persisted form of a UserRewardResult
type UserDailyReward struct {
	ID               int64           `db:"id"`
	DayID            string          `db:"day_id"`
	UserID           string          `db:"user_id"`
	WalletAddress    string          `db:"wallet_address"`
	TotalSeconds     int64           `db:"total_seconds"`
	ExclusiveSeconds int64           `db:"exclusive_seconds"`
	SharedSeconds    int64           `db:"shared_seconds"`
	WeightedSeconds  decimal.Decimal `db:"weighted_seconds"`
	BaseReward       decimal.Decimal `db:"base_reward"`
	BonusReward      decimal.Decimal `db:"bonus_reward"`
	TotalReward      decimal.Decimal `db:"total_reward"`
	CreatedAt        time.Time       `db:"created_at"`
}
