package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EligibilityReason explains a negative gasless eligibility verdict
type EligibilityReason string

const (
	ReasonInsufficientBalance EligibilityReason = "insufficient_balance"
	ReasonBelowMinimumBalance EligibilityReason = "below_minimum_balance"
)

// GaslessEligibilityResult is derived on request and never persisted
type GaslessEligibilityResult struct {
	Eligible         bool              `json:"eligible"`
	UnclaimedBalance decimal.Decimal   `json:"unclaimedBalance"`
	MintCostTime26   decimal.Decimal   `json:"mintCostTime26"`
	GasCostTime26    decimal.Decimal   `json:"gasCostTime26"`
	TotalCostTime26  decimal.Decimal   `json:"totalCostTime26"`
	Shortfall        *decimal.Decimal  `json:"shortfall,omitempty"`
	Reason           EligibilityReason `json:"reason,omitempty"`
}

// MintStatus tracks a sponsored mint through submission
type MintStatus string

const (
	MintStatusPending    MintStatus = "pending"
	MintStatusMinted     MintStatus = "minted"
	MintStatusFailed     MintStatus = "failed"
	MintStatusRolledBack MintStatus = "rolled_back"
	MintStatusUnknown    MintStatus = "unknown"
)

// GaslessMint records one sponsored mint attempt
type GaslessMint struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"userId"`
	SessionID       string          `db:"session_id" json:"sessionId"`
	DurationSeconds int64           `db:"duration_seconds" json:"durationSeconds"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TxHash          *string         `db:"tx_hash" json:"txHash,omitempty"`
	TokenID         *string         `db:"token_id" json:"tokenId,omitempty"`
	Status          MintStatus      `db:"status" json:"status"`
	Error           *string         `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// GaslessMintResult is returned to the caller after a successful mint
type GaslessMintResult struct {
	Success         bool            `json:"success"`
	TxHash          string          `json:"txHash"`
	TokenID         string          `json:"tokenId"`
	BalanceDeducted decimal.Decimal `json:"balanceDeducted"`
}

// SponsoredMintRequest is what the sponsor submits on the user's behalf
type SponsoredMintRequest struct {
	Recipient       string `json:"recipient"`
	SessionID       string `json:"sessionId"`
	MetadataURI     string `json:"metadataURI"`
	DisplayName     string `json:"displayName"`
	Message         string `json:"message"`
	DurationSeconds int64  `json:"duration"`
}

// SponsoredMintReceipt is the confirmed outcome of a sponsored mint
type SponsoredMintReceipt struct {
	TxHash  string
	TokenID string
}
