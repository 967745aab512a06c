package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RewardPool reads and updates the claim contract
type RewardPool struct {
	client  *Client
	address common.Address
	token   common.Address
}

// NewRewardPool binds the pool at address; token is the TIME26 ERC-20 it holds
func NewRewardPool(client *Client, address, token common.Address) *RewardPool {
	return &RewardPool{client: client, address: address, token: token}
}

func (p *RewardPool) Address() common.Address {
	return p.address
}

func (p *RewardPool) MerkleRoot(ctx context.Context) (common.Hash, error) {
	out, err := p.client.call(ctx, p.address, rewardPoolABI, "merkleRoot")
	if err != nil {
		return common.Hash{}, err
	}
	root, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected merkleRoot type %T", out[0])
	}
	return common.Hash(root), nil
}

func (p *RewardPool) Claimed(ctx context.Context, wallet common.Address) (decimal.Decimal, error) {
	out, err := p.client.call(ctx, p.address, rewardPoolABI, "claimed", wallet)
	if err != nil {
		return decimal.Zero, err
	}
	return bigToDecimal(out[0])
}

func (p *RewardPool) TokenBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := p.client.call(ctx, p.token, erc20ABI, "balanceOf", p.address)
	if err != nil {
		return decimal.Zero, err
	}
	return bigToDecimal(out[0])
}

// UpdateMerkleRoot commits root on-chain and returns the transaction hash
func (p *RewardPool) UpdateMerkleRoot(ctx context.Context, root common.Hash) (common.Hash, error) {
	hash, _, err := p.client.transact(ctx, p.address, rewardPoolABI, "updateMerkleRoot", [32]byte(root))
	return hash, err
}

func bigToDecimal(v any) (decimal.Decimal, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected uint256 type %T", v)
	}
	return decimal.NewFromBigInt(b, 0), nil
}
