package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"time26/database"
	"time26/models"
)

// SettlementRepository stores daily settlements and per-user reward rows
type SettlementRepository struct {
	q queryable
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *database.DB) *SettlementRepository {
	return &SettlementRepository{q: db.Pool}
}

func newSettlementRepositoryWithTx(tx queryable) *SettlementRepository {
	return &SettlementRepository{q: tx}
}

// Exists checks whether a settlement row exists for the day
func (r *SettlementRepository) Exists(ctx context.Context, dayID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_settlements WHERE day_id = $1::date)`,
		dayID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check settlement for %s: %w", dayID, err)
	}
	return exists, nil
}

// GetByDayID returns the settlement for a day
func (r *SettlementRepository) GetByDayID(ctx context.Context, dayID string) (*models.DailySettlement, error) {
	query := `
		SELECT id, day_id::text, total_budget::text, total_seconds, total_distributed::text,
		       participant_count, contract_balance_before::text, contract_balance_after::text, created_at
		FROM daily_settlements
		WHERE day_id = $1::date
	`

	var s models.DailySettlement
	var budget, distributed string
	var before, after *string
	err := r.q.QueryRow(ctx, query, dayID).Scan(
		&s.ID,
		&s.DayID,
		&budget,
		&s.TotalSeconds,
		&distributed,
		&s.ParticipantCount,
		&before,
		&after,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement for %s: %w", dayID, err)
	}

	if s.TotalBudget, err = parseDecimal("total_budget", budget); err != nil {
		return nil, err
	}
	if s.TotalDistributed, err = parseDecimal("total_distributed", distributed); err != nil {
		return nil, err
	}
	if s.ContractBalanceBefore, err = parseNullableDecimal("contract_balance_before", before); err != nil {
		return nil, err
	}
	if s.ContractBalanceAfter, err = parseNullableDecimal("contract_balance_after", after); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts the settlement row. The unique day_id makes this the
// settle-once gate: a concurrent run for the same day inserts nothing.
func (r *SettlementRepository) Create(ctx context.Context, s *models.DailySettlement) (bool, error) {
	query := `
		INSERT INTO daily_settlements
		(day_id, total_budget, total_seconds, total_distributed, participant_count,
		 contract_balance_before, contract_balance_after)
		VALUES ($1::date, $2::numeric, $3, $4::numeric, $5, $6::numeric, $7::numeric)
		ON CONFLICT (day_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		s.DayID,
		s.TotalBudget.String(),
		s.TotalSeconds,
		s.TotalDistributed.String(),
		s.ParticipantCount,
		nullableString(s.ContractBalanceBefore),
		nullableString(s.ContractBalanceAfter),
	).Scan(&s.ID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create settlement for %s: %w", s.DayID, err)
	}
	return true, nil
}

// InsertRewards stores one row per participant
func (r *SettlementRepository) InsertRewards(ctx context.Context, dayID string, rewards []models.UserRewardResult) error {
	query := `
		INSERT INTO user_daily_rewards
		(day_id, user_id, wallet_address, total_seconds, exclusive_seconds, shared_seconds,
		 weighted_seconds, base_reward, bonus_reward, total_reward)
		VALUES ($1::date, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric)
	`

	for _, rw := range rewards {
		_, err := r.q.Exec(ctx, query,
			dayID,
			rw.UserID,
			rw.WalletAddress,
			rw.TotalSeconds,
			rw.ExclusiveSeconds,
			rw.SharedSeconds,
			rw.WeightedSeconds.String(),
			rw.BaseReward.String(),
			rw.BonusReward.String(),
			rw.TotalReward.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert reward for user %s on %s: %w", rw.UserID, dayID, err)
		}
	}
	return nil
}

// GetRewardsByDay lists stored reward rows for a day
func (r *SettlementRepository) GetRewardsByDay(ctx context.Context, dayID string) ([]*models.UserDailyReward, error) {
	query := `
		SELECT id, day_id::text, user_id, wallet_address, total_seconds, exclusive_seconds, shared_seconds,
		       weighted_seconds::text, base_reward::text, bonus_reward::text, total_reward::text, created_at
		FROM user_daily_rewards
		WHERE day_id = $1::date
		ORDER BY user_id
	`

	rows, err := r.q.Query(ctx, query, dayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards for %s: %w", dayID, err)
	}
	defer rows.Close()

	var out []*models.UserDailyReward
	for rows.Next() {
		var rw models.UserDailyReward
		var weighted, base, bonus, total string
		if err := rows.Scan(
			&rw.ID,
			&rw.DayID,
			&rw.UserID,
			&rw.WalletAddress,
			&rw.TotalSeconds,
			&rw.ExclusiveSeconds,
			&rw.SharedSeconds,
			&weighted,
			&base,
			&bonus,
			&total,
			&rw.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		if rw.WeightedSeconds, err = parseDecimal("weighted_seconds", weighted); err != nil {
			return nil, err
		}
		if rw.BaseReward, err = parseDecimal("base_reward", base); err != nil {
			return nil, err
		}
		if rw.BonusReward, err = parseDecimal("bonus_reward", bonus); err != nil {
			return nil, err
		}
		if rw.TotalReward, err = parseDecimal("total_reward", total); err != nil {
			return nil, err
		}
		out = append(out, &rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}
	return out, nil
}
