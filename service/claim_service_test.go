package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"time26/events"
	"time26/merkle"
	"time26/models"
)

var poolAddress = common.HexToAddress("0x5555555555555555555555555555555555555555")

func testSnapshot(t *testing.T, entries ...models.MerkleRewardEntry) *merkle.Snapshot {
	t.Helper()
	snap := &merkle.Snapshot{
		Entries: make(map[string]models.MerkleRewardEntry),
		BuiltAt: time.Now(),
	}
	for _, e := range entries {
		snap.Entries[merkle.NormalizeWallet(e.WalletAddress)] = e
	}
	if len(entries) > 0 {
		tree, err := merkle.BuildTree(entries)
		require.NoError(t, err)
		snap.Tree = tree
		snap.Root = tree.Root()
	}
	return snap
}

func claimEntries() []models.MerkleRewardEntry {
	return []models.MerkleRewardEntry{
		{WalletAddress: walletAlice, CumulativeAmount: dec("1000")},
		{WalletAddress: walletBob, CumulativeAmount: dec("2500")},
	}
}

func newClaimFixture() (*MockClaimTree, *MockRewardPool, ClaimService) {
	tree := new(MockClaimTree)
	pool := new(MockRewardPool)
	pool.On("Address").Return(poolAddress).Maybe()
	return tree, pool, NewClaimService(tree, pool, events.NewBus(), new(MockIndicators))
}

func TestClaimService_GetClaimProof(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()
	snap := testSnapshot(t, claimEntries()...)

	tree.On("Get", ctx).Return(snap, nil)
	pool.On("Claimed", ctx, common.HexToAddress(walletBob)).Return(dec("500"), nil)
	pool.On("MerkleRoot", ctx).Return(snap.Root, nil)

	proof, err := svc.GetClaimProof(ctx, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")

	require.NoError(t, err)
	assert.True(t, proof.Claimable)
	assert.True(t, proof.RootMatches)
	assert.Equal(t, walletBob, proof.WalletAddress)
	assert.Equal(t, "2500", proof.CumulativeAmount.String())
	assert.Equal(t, "2000", proof.ClaimableAmount.String())
	assert.Equal(t, poolAddress.Hex(), proof.ContractAddress)

	decoded, err := merkle.DecodeProof(proof.Proof)
	require.NoError(t, err)
	leaf, err := merkle.LeafData(walletBob, dec("2500"))
	require.NoError(t, err)
	assert.True(t, merkle.VerifyProof(leaf, decoded, common.HexToHash(proof.MerkleRoot)))
}

func TestClaimService_GetClaimProof_RootMismatch(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()
	snap := testSnapshot(t, claimEntries()...)

	tree.On("Get", ctx).Return(snap, nil)
	pool.On("Claimed", ctx, mock.Anything).Return(dec("0"), nil)
	pool.On("MerkleRoot", ctx).Return(common.HexToHash("0x01"), nil)

	proof, err := svc.GetClaimProof(ctx, walletAlice)

	require.NoError(t, err)
	assert.False(t, proof.RootMatches)
	assert.False(t, proof.Claimable)
	assert.Equal(t, "1000", proof.ClaimableAmount.String())
}

func TestClaimService_GetClaimProof_FullyClaimed(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()
	snap := testSnapshot(t, claimEntries()...)

	tree.On("Get", ctx).Return(snap, nil)
	// more than the cumulative amount clamps at zero
	pool.On("Claimed", ctx, mock.Anything).Return(dec("1200"), nil)
	pool.On("MerkleRoot", ctx).Return(snap.Root, nil)

	proof, err := svc.GetClaimProof(ctx, walletAlice)

	require.NoError(t, err)
	assert.True(t, proof.ClaimableAmount.IsZero())
	assert.False(t, proof.Claimable)
}

func TestClaimService_GetClaimProof_NoEntry(t *testing.T) {
	ctx := context.Background()
	tree, _, svc := newClaimFixture()

	tree.On("Get", ctx).Return(testSnapshot(t, claimEntries()...), nil)

	_, err := svc.GetClaimProof(ctx, "0xcccccccccccccccccccccccccccccccccccccccc")
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimService_GetClaimProof_EmptyTree(t *testing.T) {
	ctx := context.Background()
	tree, _, svc := newClaimFixture()

	tree.On("Get", ctx).Return(testSnapshot(t), nil)

	_, err := svc.GetClaimProof(ctx, walletAlice)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimService_GetClaimProof_InvalidWallet(t *testing.T) {
	tree, _, svc := newClaimFixture()

	_, err := svc.GetClaimProof(context.Background(), "not-a-wallet")

	assert.ErrorIs(t, err, ErrInvalidInput)
	tree.AssertNotCalled(t, "Get", mock.Anything)
}

func TestClaimService_GetClaimProof_ChainError(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()

	tree.On("Get", ctx).Return(testSnapshot(t, claimEntries()...), nil)
	pool.On("Claimed", ctx, mock.Anything).Return(dec("0"), errors.New("rpc down"))

	_, err := svc.GetClaimProof(ctx, walletAlice)
	assert.ErrorContains(t, err, "rpc down")
}

func TestClaimService_PushRoot(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()
	snap := testSnapshot(t, claimEntries()...)
	txHash := common.HexToHash("0xabc")

	tree.On("Rebuild", ctx).Return(snap, nil)
	pool.On("MerkleRoot", ctx).Return(common.Hash{}, nil)
	pool.On("UpdateMerkleRoot", ctx, snap.Root).Return(txHash, nil)

	result, err := svc.PushRoot(ctx)

	require.NoError(t, err)
	assert.False(t, result.Unchanged)
	assert.Equal(t, snap.Root.Hex(), result.Root)
	assert.Equal(t, txHash.Hex(), result.TxHash)
	assert.Equal(t, 2, result.Entries)
}

func TestClaimService_PushRoot_Unchanged(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()
	snap := testSnapshot(t, claimEntries()...)

	tree.On("Rebuild", ctx).Return(snap, nil)
	pool.On("MerkleRoot", ctx).Return(snap.Root, nil)

	result, err := svc.PushRoot(ctx)

	require.NoError(t, err)
	assert.True(t, result.Unchanged)
	pool.AssertNotCalled(t, "UpdateMerkleRoot", mock.Anything, mock.Anything)
}

func TestClaimService_PushRoot_Empty(t *testing.T) {
	ctx := context.Background()
	tree, pool, svc := newClaimFixture()

	tree.On("Rebuild", ctx).Return(testSnapshot(t), nil)

	_, err := svc.PushRoot(ctx)

	assert.ErrorIs(t, err, ErrNothingToClaim)
	pool.AssertNotCalled(t, "UpdateMerkleRoot", mock.Anything, mock.Anything)
}
