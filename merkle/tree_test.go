package merkle

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/models"
)

func entry(i int, amount int64) models.MerkleRewardEntry {
	return models.MerkleRewardEntry{
		WalletAddress:    fmt.Sprintf("0x%040x", 0xabc000+i),
		CumulativeAmount: decimal.NewFromInt(amount),
	}
}

func entries(n int) []models.MerkleRewardEntry {
	out := make([]models.MerkleRewardEntry, n)
	for i := range out {
		out[i] = entry(i, int64(1000*(i+1)))
	}
	return out
}

func TestLeafData_Packed(t *testing.T) {
	leaf, err := LeafData("0x00000000000000000000000000000000000000AA", decimal.NewFromInt(258))
	require.NoError(t, err)

	require.Len(t, leaf, 52)
	assert.Equal(t, byte(0xaa), leaf[19])
	assert.Equal(t, byte(0x01), leaf[50])
	assert.Equal(t, byte(0x02), leaf[51])
}

func TestLeafData_Invalid(t *testing.T) {
	_, err := LeafData("not-a-wallet", decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = LeafData("0x00000000000000000000000000000000000000aa", decimal.NewFromInt(-1))
	assert.Error(t, err)

	_, err = LeafData("0x00000000000000000000000000000000000000aa", decimal.RequireFromString("1.5"))
	assert.Error(t, err)
}

func TestBuildTree_Empty(t *testing.T) {
	_, err := BuildTree(nil)
	assert.ErrorIs(t, err, ErrEmptyTree)
}

func TestBuildTree_ProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d_leaves", n), func(t *testing.T) {
			es := entries(n)
			tree, err := BuildTree(es)
			require.NoError(t, err)

			for _, e := range es {
				proof, err := tree.Proof(e)
				require.NoError(t, err)

				leaf, err := LeafData(e.WalletAddress, e.CumulativeAmount)
				require.NoError(t, err)
				assert.True(t, VerifyProof(leaf, proof, tree.Root()), "wallet %s", e.WalletAddress)
			}
		})
	}
}

func TestBuildTree_RootIsOrderIndependent(t *testing.T) {
	es := entries(6)
	reversed := make([]models.MerkleRewardEntry, len(es))
	for i := range es {
		reversed[len(es)-1-i] = es[i]
	}

	a, err := BuildTree(es)
	require.NoError(t, err)
	b, err := BuildTree(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Root(), b.Root())
}

func TestVerifyProof_WrongAmountFails(t *testing.T) {
	es := entries(4)
	tree, err := BuildTree(es)
	require.NoError(t, err)

	proof, err := tree.Proof(es[1])
	require.NoError(t, err)

	forged, err := LeafData(es[1].WalletAddress, es[1].CumulativeAmount.Add(decimal.NewFromInt(1)))
	require.NoError(t, err)
	assert.False(t, VerifyProof(forged, proof, tree.Root()))
}

func TestVerifyProof_StaleProofFailsAgainstNewRoot(t *testing.T) {
	old := entries(4)
	oldTree, err := BuildTree(old)
	require.NoError(t, err)

	proof, err := oldTree.Proof(old[0])
	require.NoError(t, err)

	// a new participant joins after the last on-chain push
	newTree, err := BuildTree(append(entries(4), entry(99, 500)))
	require.NoError(t, err)
	require.NotEqual(t, oldTree.Root(), newTree.Root())

	leaf, err := LeafData(old[0].WalletAddress, old[0].CumulativeAmount)
	require.NoError(t, err)
	assert.True(t, VerifyProof(leaf, proof, oldTree.Root()))
	assert.False(t, VerifyProof(leaf, proof, newTree.Root()))
}

func TestEncodeDecodeProof(t *testing.T) {
	es := entries(5)
	tree, err := BuildTree(es)
	require.NoError(t, err)
	proof, err := tree.Proof(es[2])
	require.NoError(t, err)

	decoded, err := DecodeProof(EncodeProof(proof))
	require.NoError(t, err)

	leaf, err := LeafData(es[2].WalletAddress, es[2].CumulativeAmount)
	require.NoError(t, err)
	assert.True(t, VerifyProof(leaf, decoded, tree.Root()))

	_, err = DecodeProof([]string{"zz"})
	assert.Error(t, err)
}
