package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"time26/database"
	"time26/models"
)

// BalanceHistoryRepository journals every ledger mutation
type BalanceHistoryRepository struct {
	q queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	metadataJSON, err := json.Marshal(history.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	var relatedType *string
	if history.RelatedType != nil {
		rt := string(*history.RelatedType)
		relatedType = &rt
	}

	query := `
		INSERT INTO balance_history
		(user_id, balance_before, balance_after, pending_burn_after, change_amount,
		 transaction_type, transaction_metadata, related_id, related_type)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		history.UserID,
		history.BalanceBefore.String(),
		history.BalanceAfter.String(),
		history.PendingBurnAfter.String(),
		history.ChangeAmount.String(),
		string(history.TransactionType),
		metadataJSON,
		history.RelatedID,
		relatedType,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for user %s: %w", history.UserID, err)
	}

	return nil
}

// GetByUser returns the latest balance history entries for a user
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	query := `
		SELECT id, user_id, balance_before::text, balance_after::text, pending_burn_after::text,
		       change_amount::text, transaction_type, transaction_metadata, related_id, related_type, created_at
		FROM balance_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance history: %w", err)
	}
	defer rows.Close()

	var history []*models.BalanceHistory
	for rows.Next() {
		var h models.BalanceHistory
		var before, after, pendingAfter, change, txType string
		var metadataJSON []byte
		var relatedType *string

		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&before,
			&after,
			&pendingAfter,
			&change,
			&txType,
			&metadataJSON,
			&h.RelatedID,
			&relatedType,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		if h.BalanceBefore, err = parseDecimal("balance_before", before); err != nil {
			return nil, err
		}
		if h.BalanceAfter, err = parseDecimal("balance_after", after); err != nil {
			return nil, err
		}
		if h.PendingBurnAfter, err = parseDecimal("pending_burn_after", pendingAfter); err != nil {
			return nil, err
		}
		if h.ChangeAmount, err = parseDecimal("change_amount", change); err != nil {
			return nil, err
		}
		h.TransactionType = models.TransactionType(txType)
		if relatedType != nil {
			rt := models.RelatedType(*relatedType)
			h.RelatedType = &rt
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &h.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		history = append(history, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance history: %w", err)
	}

	return history, nil
}
