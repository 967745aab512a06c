package repository

import (
	"context"
	"fmt"

	"time26/database"
	"time26/models"
)

// InconsistencyRepository stores ledger inconsistencies for manual reconciliation
type InconsistencyRepository struct {
	q queryable
}

// NewInconsistencyRepository creates a new inconsistency repository
func NewInconsistencyRepository(db *database.DB) *InconsistencyRepository {
	return &InconsistencyRepository{q: db.Pool}
}

func newInconsistencyRepositoryWithTx(tx queryable) *InconsistencyRepository {
	return &InconsistencyRepository{q: tx}
}

// Record inserts a new open inconsistency
func (r *InconsistencyRepository) Record(ctx context.Context, inc *models.LedgerInconsistency) error {
	query := `
		INSERT INTO ledger_inconsistencies (user_id, amount, operation, reason, error, attempts)
		VALUES ($1, $2::numeric, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		inc.UserID,
		inc.Amount.String(),
		inc.Operation,
		inc.Reason,
		inc.Error,
		inc.Attempts,
	).Scan(&inc.ID, &inc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ledger inconsistency for user %s: %w", inc.UserID, err)
	}
	return nil
}

// ListOpen returns unresolved inconsistencies, oldest first
func (r *InconsistencyRepository) ListOpen(ctx context.Context) ([]*models.LedgerInconsistency, error) {
	query := `
		SELECT id, user_id, amount::text, operation, reason, error, attempts, created_at, resolved_at
		FROM ledger_inconsistencies
		WHERE resolved_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger inconsistencies: %w", err)
	}
	defer rows.Close()

	var out []*models.LedgerInconsistency
	for rows.Next() {
		var inc models.LedgerInconsistency
		var amount string
		if err := rows.Scan(
			&inc.ID,
			&inc.UserID,
			&amount,
			&inc.Operation,
			&inc.Reason,
			&inc.Error,
			&inc.Attempts,
			&inc.CreatedAt,
			&inc.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger inconsistency: %w", err)
		}
		if inc.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		out = append(out, &inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger inconsistencies: %w", err)
	}
	return out, nil
}
