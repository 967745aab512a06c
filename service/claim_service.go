package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/events"
	"time26/merkle"
	"time26/metrics"
	"time26/models"
)

// RootPushResult reports a root push
type RootPushResult struct {
	Root      string `json:"root"`
	TxHash    string `json:"txHash,omitempty"`
	Entries   int    `json:"entries"`
	Unchanged bool   `json:"unchanged"`
}

type claimService struct {
	tree    ClaimTree
	pool    RewardPool
	bus     *events.Bus
	metrics metrics.Indicators
}

// NewClaimService creates a new claim service
func NewClaimService(tree ClaimTree, pool RewardPool, bus *events.Bus, indicators metrics.Indicators) ClaimService {
	return &claimService{
		tree:    tree,
		pool:    pool,
		bus:     bus,
		metrics: indicators,
	}
}

// GetClaimProof returns what wallet can claim and the proof to claim it with
func (s *claimService) GetClaimProof(ctx context.Context, wallet string) (*models.ClaimProof, error) {
	if !common.IsHexAddress(wallet) {
		return nil, &ValidationError{Field: "walletAddress", Reason: "not a hex address"}
	}
	addr := common.HexToAddress(wallet)

	snap, err := s.tree.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim tree: %w", err)
	}
	s.metrics.SetClaimTreeEntries(len(snap.Entries))

	entry, ok := snap.Lookup(wallet)
	if !ok || snap.Tree == nil {
		return nil, ErrNothingToClaim
	}

	claimed, err := s.pool.Claimed(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read claimed amount: %w", err)
	}
	onChainRoot, err := s.pool.MerkleRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read on-chain root: %w", err)
	}

	proof, err := snap.Tree.Proof(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build proof: %w", err)
	}

	claimable := entry.CumulativeAmount.Sub(claimed)
	if claimable.Sign() < 0 {
		claimable = decimal.Zero
	}
	rootMatches := onChainRoot == snap.Root

	if !rootMatches {
		log.WithFields(log.Fields{
			"wallet":      entry.WalletAddress,
			"treeRoot":    snap.Root.Hex(),
			"onChainRoot": onChainRoot.Hex(),
		}).Warn("Claim tree root differs from on-chain root")
	}

	return &models.ClaimProof{
		Claimable:        rootMatches && claimable.Sign() > 0,
		WalletAddress:    entry.WalletAddress,
		CumulativeAmount: entry.CumulativeAmount,
		AlreadyClaimed:   claimed,
		ClaimableAmount:  claimable,
		Proof:            merkle.EncodeProof(proof),
		MerkleRoot:       snap.Root.Hex(),
		OnChainRoot:      onChainRoot.Hex(),
		RootMatches:      rootMatches,
		ContractAddress:  s.pool.Address().Hex(),
	}, nil
}

// PushRoot rebuilds the tree from current balances and commits its root on-chain
func (s *claimService) PushRoot(ctx context.Context) (*RootPushResult, error) {
	snap, err := s.tree.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild claim tree: %w", err)
	}
	s.metrics.SetClaimTreeEntries(len(snap.Entries))

	if snap.Tree == nil {
		return nil, ErrNothingToClaim
	}

	result := &RootPushResult{
		Root:    snap.Root.Hex(),
		Entries: len(snap.Entries),
	}

	current, err := s.pool.MerkleRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read on-chain root: %w", err)
	}
	if current == snap.Root {
		result.Unchanged = true
		return result, nil
	}

	txHash, err := s.pool.UpdateMerkleRoot(ctx, snap.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to update merkle root: %w", err)
	}
	result.TxHash = txHash.Hex()

	log.WithFields(log.Fields{
		"root":    result.Root,
		"txHash":  result.TxHash,
		"entries": result.Entries,
	}).Info("Pushed merkle root")

	if s.bus != nil {
		s.bus.Emit(ctx, events.MerkleRootPushedEvent{
			Root:    result.Root,
			TxHash:  result.TxHash,
			Entries: result.Entries,
		})
	}

	return result, nil
}
