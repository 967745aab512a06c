package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the ledger view of a TIME26 holder
type User struct {
	ID                string          `db:"id" json:"id"`
	WalletAddress     string          `db:"wallet_address" json:"walletAddress"`
	Time26Balance     decimal.Decimal `db:"time26_balance" json:"time26Balance"`
	Time26PendingBurn decimal.Decimal `db:"time26_pending_burn" json:"time26PendingBurn"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// LedgerBalance is the spendable and pending-burn pair for one user
type LedgerBalance struct {
	UserID      string          `json:"userId"`
	Balance     decimal.Decimal `json:"balance"`
	PendingBurn decimal.Decimal `json:"pendingBurn"`
}
