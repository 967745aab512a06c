package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of ledger mutation
type TransactionType string

const (
	TransactionTypeSettlementCredit TransactionType = "settlement_credit"
	TransactionTypeSpendDebit       TransactionType = "spend_debit"
	TransactionTypeGaslessMintDebit TransactionType = "gasless_mint_debit"
	TransactionTypeDebitRollback    TransactionType = "debit_rollback"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeSettlement  RelatedType = "settlement"
	RelatedTypeGaslessMint RelatedType = "gasless_mint"
	RelatedTypeSession     RelatedType = "session"
)

// BalanceHistory is one append-only journal row
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              string          `db:"user_id"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	PendingBurnAfter    decimal.Decimal `db:"pending_burn_after"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *string         `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}
