package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"time26/database"
	"time26/models"
)

const userColumns = `id, wallet_address, time26_balance::text, time26_pending_burn::text, created_at, updated_at`

// UserRepository implements the ledger side of the users table
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var balance, pendingBurn string
	if err := row.Scan(
		&user.ID,
		&user.WalletAddress,
		&balance,
		&pendingBurn,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if user.Time26Balance, err = parseDecimal("time26_balance", balance); err != nil {
		return nil, err
	}
	if user.Time26PendingBurn, err = parseDecimal("time26_pending_burn", pendingBurn); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

// GetByWallet retrieves a user by lower-cased wallet address
func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = lower($1)`

	user, err := scanUser(r.q.QueryRow(ctx, query, wallet))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by wallet %s: %w", wallet, err)
	}
	return user, nil
}

// GetByIDs retrieves several users keyed by id
func (r *UserRepository) GetByIDs(ctx context.Context, userIDs []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := r.q.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Credit increments a user's balance in one statement
func (r *UserRepository) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	query := `
		UPDATE users
		SET time26_balance = time26_balance + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, amount.String(), userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit user %s: %w", userID, err)
	}
	return user, nil
}

// ConditionalDebit moves amount into pending burn only if the balance covers it.
// The check and the write are one statement, so concurrent debits cannot overspend.
func (r *UserRepository) ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	query := `
		UPDATE users
		SET time26_balance = time26_balance - $1::numeric,
			time26_pending_burn = time26_pending_burn + $1::numeric,
			updated_at = NOW()
		WHERE id = $2 AND time26_balance >= $1::numeric
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, amount.String(), userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit user %s: %w", userID, err)
	}
	return user, nil
}

// RollbackDebit reverses a ConditionalDebit, guarded by the pending burn it created
func (r *UserRepository) RollbackDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	query := `
		UPDATE users
		SET time26_balance = time26_balance + $1::numeric,
			time26_pending_burn = time26_pending_burn - $1::numeric,
			updated_at = NOW()
		WHERE id = $2 AND time26_pending_burn >= $1::numeric
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, amount.String(), userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to roll back debit for user %s: %w", userID, err)
	}
	return user, nil
}

// ListClaimEntries returns every wallet with a positive balance
func (r *UserRepository) ListClaimEntries(ctx context.Context) ([]models.MerkleRewardEntry, error) {
	query := `
		SELECT wallet_address, time26_balance::text
		FROM users
		WHERE time26_balance > 0
		ORDER BY wallet_address
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim entries: %w", err)
	}
	defer rows.Close()

	var entries []models.MerkleRewardEntry
	for rows.Next() {
		var wallet, balance string
		if err := rows.Scan(&wallet, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan claim entry: %w", err)
		}
		amount, err := parseDecimal("time26_balance", balance)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.MerkleRewardEntry{WalletAddress: wallet, CumulativeAmount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim entries: %w", err)
	}
	return entries, nil
}
