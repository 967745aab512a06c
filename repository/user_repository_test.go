package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0x00000000000000000000000000000000000000aa"

func TestUserRepository_ConditionalDebit_Success(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("400", "user-1").
		WillReturnRows(userRow("user-1", wallet, "600", "400"))

	user, err := repo.ConditionalDebit(context.Background(), "user-1", decimal.NewFromInt(400))

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "600", user.Time26Balance.String())
	assert.Equal(t, "400", user.Time26PendingBurn.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConditionalDebit_Insufficient(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`AND time26_balance >= \$1::numeric`).
		WithArgs("5000", "user-1").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.ConditionalDebit(context.Background(), "user-1", decimal.NewFromInt(5000))

	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConditionalDebit_DatabaseError(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("1", "user-1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ConditionalDebit(context.Background(), "user-1", decimal.NewFromInt(1))

	assert.ErrorContains(t, err, "connection reset")
}

func TestUserRepository_RollbackDebit_GuardedByPendingBurn(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`AND time26_pending_burn >= \$1::numeric`).
		WithArgs("400", "user-1").
		WillReturnRows(userRow("user-1", wallet, "1000", "0"))
	mock.ExpectQuery(`AND time26_pending_burn >= \$1::numeric`).
		WithArgs("400", "user-1").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.RollbackDebit(context.Background(), "user-1", decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.Equal(t, "1000", user.Time26Balance.String())

	user, err = repo.RollbackDebit(context.Background(), "user-1", decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.Nil(t, user, "second rollback must not match")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Credit(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`SET time26_balance = time26_balance \+ \$1::numeric`).
		WithArgs("43150684931500000000000", "user-1").
		WillReturnRows(userRow("user-1", wallet, "43150684931500000000000", "0"))

	user, err := repo.Credit(context.Background(), "user-1", decimal.RequireFromString("43150684931500000000000"))

	require.NoError(t, err)
	assert.Equal(t, "43150684931500000000000", user.Time26Balance.String())
}

func TestUserRepository_Credit_UnknownUser(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("10", "ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Credit(context.Background(), "ghost", decimal.NewFromInt(10))

	assert.ErrorContains(t, err, "ghost not found")
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.GetByID(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserRepository_GetByIDs(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	rows := userRow("a", wallet, "1", "0")
	rows.AddRow("b", "0x00000000000000000000000000000000000000bb", "2", "0", testTime, testTime)
	mock.ExpectQuery(`WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"a", "b"}).
		WillReturnRows(rows)

	users, err := repo.GetByIDs(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", users["b"].WalletAddress)
}

func TestUserRepository_GetByIDs_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	users, err := repo.GetByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListClaimEntries(t *testing.T) {
	mock := newMockPool(t)
	repo := newUserRepositoryWithTx(mock)

	mock.ExpectQuery(`WHERE time26_balance > 0`).
		WillReturnRows(pgxmock.NewRows([]string{"wallet_address", "time26_balance"}).
			AddRow(wallet, "1000000000000000000").
			AddRow("0x00000000000000000000000000000000000000bb", "5"))

	entries, err := repo.ListClaimEntries(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, wallet, entries[0].WalletAddress)
	assert.Equal(t, "1000000000000000000", entries[0].CumulativeAmount.String())
}
