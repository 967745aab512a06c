package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/models"
)

// MintContract submits sponsored mints paid for by the operator
type MintContract struct {
	client  *Client
	address common.Address
}

// NewMintContract binds the NFT contract at address
func NewMintContract(client *Client, address common.Address) *MintContract {
	return &MintContract{client: client, address: address}
}

func (m *MintContract) MintPrice(ctx context.Context, durationSeconds int64) (decimal.Decimal, error) {
	out, err := m.client.call(ctx, m.address, mintABI, "mintPrice", big.NewInt(durationSeconds))
	if err != nil {
		return decimal.Zero, err
	}
	return bigToDecimal(out[0])
}

// EstimateMintGas returns the expected wei cost of submitting req
func (m *MintContract) EstimateMintGas(ctx context.Context, req models.SponsoredMintRequest) (decimal.Decimal, error) {
	input, err := packSponsoredMint(req)
	if err != nil {
		return decimal.Zero, err
	}
	cost, err := m.client.estimateCost(ctx, m.address, input)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(cost, 0), nil
}

func (m *MintContract) SponsoredMint(ctx context.Context, req models.SponsoredMintRequest) (*models.SponsoredMintReceipt, error) {
	if !common.IsHexAddress(req.Recipient) {
		return nil, fmt.Errorf("%w: invalid recipient %q", ErrNotBroadcast, req.Recipient)
	}
	hash, receipt, err := m.client.transact(ctx, m.address, mintABI, "sponsoredMint", sponsoredMintArgs(req)...)
	if err != nil {
		if hash == (common.Hash{}) {
			return nil, err
		}
		return &models.SponsoredMintReceipt{TxHash: hash.Hex()}, err
	}
	return m.toReceipt(receipt)
}

func (m *MintContract) MintOutcome(ctx context.Context, txHash string) (*models.SponsoredMintReceipt, error) {
	receipt, err := m.client.receiptOutcome(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}
	return m.toReceipt(receipt)
}

// toReceipt reads the token id from a successful receipt. A mined mint is
// a mint even when the id cannot be found, so TokenID is then left empty.
func (m *MintContract) toReceipt(receipt *types.Receipt) (*models.SponsoredMintReceipt, error) {
	out := &models.SponsoredMintReceipt{TxHash: receipt.TxHash.Hex()}
	tokenID, ok := MintedTokenID(receipt, m.address)
	if !ok {
		log.WithFields(log.Fields{
			"txHash":   out.TxHash,
			"contract": m.address.Hex(),
		}).Warn("Mint succeeded without a Transfer event from the mint contract")
		return out, nil
	}
	out.TokenID = tokenID.String()
	return out, nil
}

// MintedTokenID finds the Transfer-from-zero log emitted by contract
func MintedTokenID(receipt *types.Receipt, contract common.Address) (*big.Int, bool) {
	transferID := mintABI.Events["Transfer"].ID
	for _, l := range receipt.Logs {
		if l.Address != contract || len(l.Topics) != 4 || l.Topics[0] != transferID {
			continue
		}
		if l.Topics[1] != (common.Hash{}) {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes()), true
	}
	return nil, false
}

func sponsoredMintArgs(req models.SponsoredMintRequest) []any {
	return []any{
		common.HexToAddress(req.Recipient),
		req.SessionID,
		req.MetadataURI,
		req.DisplayName,
		req.Message,
		big.NewInt(req.DurationSeconds),
	}
}

func packSponsoredMint(req models.SponsoredMintRequest) ([]byte, error) {
	input, err := mintABI.Pack("sponsoredMint", sponsoredMintArgs(req)...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack sponsoredMint: %w", err)
	}
	return input, nil
}
