package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"time26/database"
	"time26/models"
)

// WalletFor returns a deterministic lower-case wallet for a numeric seed
func WalletFor(seed int) string {
	return fmt.Sprintf("0x%040x", seed)
}

// InsertUser creates a ledger user with the given balance
func InsertUser(t *testing.T, db *database.DB, id, wallet, balance string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO users (id, wallet_address, time26_balance) VALUES ($1, $2, $3::numeric)`,
		id, wallet, balance)
	require.NoError(t, err)
}

// InsertSession records a completed drawing session
func InsertSession(t *testing.T, db *database.DB, iv models.DrawingInterval) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO drawing_sessions (id, user_id, start_time, duration_seconds) VALUES ($1, $2, $3, $4)`,
		iv.SessionID, iv.UserID, iv.StartTime, iv.DurationSeconds)
	require.NoError(t, err)
}

// CreateTestInterval builds an interval offset from dayStart
func CreateTestInterval(userID string, dayStart time.Time, offsetSeconds, duration int64) models.DrawingInterval {
	return models.DrawingInterval{
		UserID:          userID,
		SessionID:       fmt.Sprintf("%s-%d", userID, offsetSeconds),
		StartTime:       dayStart.Add(time.Duration(offsetSeconds) * time.Second),
		DurationSeconds: duration,
	}
}
