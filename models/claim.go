package models

import "github.com/shopspring/decimal"

// MerkleRewardEntry is one leaf input of the claim tree
type MerkleRewardEntry struct {
	WalletAddress    string          `json:"walletAddress"`
	CumulativeAmount decimal.Decimal `json:"cumulativeAmount"`
}

// ClaimProof is the answer to a claim-proof request
type ClaimProof struct {
	Claimable        bool            `json:"claimable"`
	WalletAddress    string          `json:"walletAddress"`
	CumulativeAmount decimal.Decimal `json:"cumulativeAmount"`
	AlreadyClaimed   decimal.Decimal `json:"alreadyClaimed"`
	ClaimableAmount  decimal.Decimal `json:"claimableAmount"`
	Proof            []string        `json:"proof"`
	MerkleRoot       string          `json:"merkleRoot"`
	OnChainRoot      string          `json:"onChainRoot"`
	RootMatches      bool            `json:"rootMatches"`
	ContractAddress  string          `json:"contractAddress"`
}
