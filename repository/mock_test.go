package repository

import (
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "wallet_address", "time26_balance", "time26_pending_burn", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var testTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func userRow(id, wallet, balance, pendingBurn string) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).AddRow(id, wallet, balance, pendingBurn, testTime, testTime)
}
