package repository

import (
	"context"
	"fmt"

	"time26/database"
	"time26/models"
)

// GaslessMintRepository tracks sponsored mint attempts
type GaslessMintRepository struct {
	q queryable
}

// NewGaslessMintRepository creates a new gasless mint repository
func NewGaslessMintRepository(db *database.DB) *GaslessMintRepository {
	return &GaslessMintRepository{q: db.Pool}
}

func newGaslessMintRepositoryWithTx(tx queryable) *GaslessMintRepository {
	return &GaslessMintRepository{q: tx}
}

// Create inserts a new mint attempt
func (r *GaslessMintRepository) Create(ctx context.Context, mint *models.GaslessMint) error {
	query := `
		INSERT INTO gasless_mints
		(id, user_id, session_id, duration_seconds, amount, tx_hash, token_id, status, error)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		mint.ID,
		mint.UserID,
		mint.SessionID,
		mint.DurationSeconds,
		mint.Amount.String(),
		mint.TxHash,
		mint.TokenID,
		string(mint.Status),
		mint.Error,
	).Scan(&mint.CreatedAt, &mint.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create gasless mint for user %s: %w", mint.UserID, err)
	}
	return nil
}

// UpdateStatus moves a mint to a new status. Nil fields keep their stored value.
func (r *GaslessMintRepository) UpdateStatus(ctx context.Context, id string, status models.MintStatus, txHash, tokenID, errMsg *string) error {
	query := `
		UPDATE gasless_mints
		SET status = $2,
			tx_hash = COALESCE($3, tx_hash),
			token_id = COALESCE($4, token_id),
			error = COALESCE($5, error),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, string(status), txHash, tokenID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update gasless mint %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("gasless mint %s not found", id)
	}
	return nil
}

// ListOpen returns mints whose outcome is not settled yet, oldest first
func (r *GaslessMintRepository) ListOpen(ctx context.Context, limit int) ([]*models.GaslessMint, error) {
	query := `
		SELECT id::text, user_id, session_id, duration_seconds, amount::text,
		       tx_hash, token_id, status, error, created_at, updated_at
		FROM gasless_mints
		WHERE status IN ('pending', 'unknown')
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query open gasless mints: %w", err)
	}
	defer rows.Close()

	var mints []*models.GaslessMint
	for rows.Next() {
		var m models.GaslessMint
		var amount, status string
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.SessionID,
			&m.DurationSeconds,
			&amount,
			&m.TxHash,
			&m.TokenID,
			&status,
			&m.Error,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gasless mint: %w", err)
		}
		if m.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		m.Status = models.MintStatus(status)
		mints = append(mints, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gasless mints: %w", err)
	}
	return mints, nil
}
