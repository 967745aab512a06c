package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	merkletree "github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"

	"time26/models"
)

// ErrEmptyTree is returned when there is nothing to commit to
var ErrEmptyTree = errors.New("merkle tree has no entries")

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Tree is a claim tree over (wallet, cumulativeAmount) leaves
type Tree struct {
	inner *merkletree.MerkleTree
	root  common.Hash
}

// LeafData packs a claim entry the way Solidity's abi.encodePacked(address, uint256) does
func LeafData(wallet string, amount decimal.Decimal) ([]byte, error) {
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("invalid wallet address %q", wallet)
	}
	if amount.Sign() < 0 || !amount.Equal(amount.Truncate(0)) {
		return nil, fmt.Errorf("amount %s is not an unsigned integer", amount)
	}
	n := amount.BigInt()
	if n.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("amount %s overflows uint256", amount)
	}

	packed := make([]byte, 0, common.AddressLength+32)
	packed = append(packed, common.HexToAddress(wallet).Bytes()...)
	packed = append(packed, common.LeftPadBytes(n.Bytes(), 32)...)
	return packed, nil
}

// NormalizeWallet lower-cases a wallet address for lookups
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// BuildTree creates a keccak256 tree with sorted-pair hashing
func BuildTree(entries []models.MerkleRewardEntry) (*Tree, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTree
	}

	data := make([][]byte, 0, len(entries))
	for _, e := range entries {
		leaf, err := LeafData(e.WalletAddress, e.CumulativeAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to encode leaf for %s: %w", e.WalletAddress, err)
		}
		data = append(data, leaf)
	}
	// Leaf order must not change the root
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i], data[j]) < 0
	})

	inner, err := merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(keccak256.New()),
		merkletree.WithSorted(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create merkle tree: %w", err)
	}

	return &Tree{inner: inner, root: common.BytesToHash(inner.Root())}, nil
}

// Root returns the tree root
func (t *Tree) Root() common.Hash {
	return t.root
}

// Proof returns the sibling path for an entry, leaf to root
func (t *Tree) Proof(entry models.MerkleRewardEntry) ([][]byte, error) {
	leaf, err := LeafData(entry.WalletAddress, entry.CumulativeAmount)
	if err != nil {
		return nil, err
	}
	proof, err := t.inner.GenerateProof(leaf, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof for %s: %w", entry.WalletAddress, err)
	}
	return proof.Hashes, nil
}

// EncodeProof hex-encodes proof hashes for transport
func EncodeProof(proof [][]byte) []string {
	out := make([]string, len(proof))
	for i, h := range proof {
		out[i] = hexutil.Encode(h)
	}
	return out
}

// DecodeProof reverses EncodeProof
func DecodeProof(encoded []string) ([][]byte, error) {
	out := make([][]byte, len(encoded))
	for i, s := range encoded {
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid proof element %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// VerifyProof checks a proof for leafData against root using sorted-pair keccak256 hashing
func VerifyProof(leafData []byte, proof [][]byte, root common.Hash) bool {
	hasher := keccak256.New()
	current := hasher.Hash(leafData)
	for _, sibling := range proof {
		if bytes.Compare(current, sibling) <= 0 {
			current = hasher.Hash(current, sibling)
		} else {
			current = hasher.Hash(sibling, current)
		}
	}
	return bytes.Equal(current, root.Bytes())
}
