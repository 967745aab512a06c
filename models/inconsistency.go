package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerInconsistency is raised when a debit could not be reversed.
// Rows stay open until an operator resolves them.
type LedgerInconsistency struct {
	ID         int64           `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"userId"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Operation  string          `db:"operation" json:"operation"`
	Reason     string          `db:"reason" json:"reason"`
	Error      string          `db:"error" json:"error"`
	Attempts   int             `db:"attempts" json:"attempts"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	ResolvedAt *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
}
