package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"time26/metrics"
)

// Backend is the subset of ethclient.Client the contracts use
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Config configures the chain client
type Config struct {
	RPCURL              string
	ChainID             int64
	OperatorPrivateKey  string
	TxTimeout           time.Duration
	ReceiptPollInterval time.Duration
}

// Client signs and submits operator transactions and performs view calls
type Client struct {
	backend Backend
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	cfg     Config
	metrics metrics.Indicators

	// nonce assignment and broadcast must not interleave
	sendMu sync.Mutex
}

// Dial connects to the RPC endpoint in cfg
func Dial(ctx context.Context, cfg Config, indicators metrics.Indicators) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	if cfg.ChainID == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to retrieve chain ID: %w", err)
		}
		cfg.ChainID = id.Int64()
	}
	client, err := NewClient(backend, cfg, indicators)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return client, nil
}

// NewClient wraps an existing backend. Without an operator key the client
// can only perform view calls.
func NewClient(backend Backend, cfg Config, indicators metrics.Indicators) (*Client, error) {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 120 * time.Second
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 2 * time.Second
	}

	c := &Client{
		backend: backend,
		chainID: big.NewInt(cfg.ChainID),
		cfg:     cfg,
		metrics: indicators,
	}

	if cfg.OperatorPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse operator key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// From is the operator address
func (c *Client) From() common.Address {
	return c.from
}

// Close releases the backend connection
func (c *Client) Close() {
	c.backend.Close()
}

// call performs a view call and returns the unpacked outputs
func (c *Client) call(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) ([]any, error) {
	start := time.Now()
	out, err := c.doCall(ctx, to, contract, method, args...)
	c.metrics.ObserveChainCall(method, metrics.Result(err), time.Since(start))
	return out, err
}

func (c *Client) doCall(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) ([]any, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	values, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

// suggestFees returns tip and fee caps; feeCap = 2*baseFee + tip
func (c *Client) suggestFees(ctx context.Context) (*big.Int, *big.Int, *big.Int, error) {
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return baseFee, tip, feeCap, nil
}

// estimateCost returns the expected wei cost of sending input to `to`
func (c *Client) estimateCost(ctx context.Context, to common.Address, input []byte) (*big.Int, error) {
	baseFee, tip, _, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: input})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	price := new(big.Int).Add(baseFee, tip)
	return price.Mul(price, new(big.Int).SetUint64(gas)), nil
}

// transact signs, sends and waits for a transaction. The wait is bounded by
// the configured timeout; running out of time yields ErrOutcomeUnknown
// together with the hash so the caller can reconcile later.
func (c *Client) transact(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) (common.Hash, *types.Receipt, error) {
	start := time.Now()
	hash, receipt, err := c.doTransact(ctx, to, contract, method, args...)
	c.metrics.ObserveChainCall(method, metrics.Result(err), time.Since(start))
	return hash, receipt, err
}

func (c *Client) doTransact(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) (common.Hash, *types.Receipt, error) {
	if c.key == nil {
		return common.Hash{}, nil, fmt.Errorf("%w: %w", ErrNotBroadcast, ErrNoSigner)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
	defer cancel()

	input, err := contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: failed to pack %s: %v", ErrNotBroadcast, method, err)
	}

	signed, err := c.send(ctx, to, input)
	if err != nil {
		if signed != nil {
			return signed.Hash(), nil, err
		}
		return common.Hash{}, nil, err
	}
	hash := signed.Hash()

	log.WithFields(log.Fields{
		"method": method,
		"txHash": hash.Hex(),
		"to":     to.Hex(),
	}).Info("Submitted transaction")

	receipt, err := c.waitMined(ctx, hash)
	if err != nil {
		return hash, nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, receipt, fmt.Errorf("%w: %s %s", ErrTxReverted, method, hash.Hex())
	}
	return hash, receipt, nil
}

// send signs and broadcasts a transaction. Failures before SendTransaction
// wrap ErrNotBroadcast. A failed SendTransaction returns the signed
// transaction: an explicit node rejection wraps ErrNotBroadcast, anything
// else wraps ErrOutcomeUnknown since the node may have accepted it.
func (c *Client) send(ctx context.Context, to common.Address, input []byte) (*types.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get nonce: %w", ErrNotBroadcast, err)
	}
	_, tip, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotBroadcast, err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      c.from,
		To:        &to,
		GasFeeCap: feeCap,
		GasTipCap: tip,
		Data:      input,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to estimate gas: %w", ErrNotBroadcast, err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Data:      input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %w", ErrNotBroadcast, err)
	}

	err = c.backend.SendTransaction(ctx, signed)
	switch {
	case err == nil:
		return signed, nil
	case isAlreadyKnown(err):
		return signed, nil
	case isNodeRejection(err):
		return signed, fmt.Errorf("%w: node rejected %s: %w", ErrNotBroadcast, signed.Hash().Hex(), err)
	default:
		return signed, fmt.Errorf("%w: failed to send %s: %w", ErrOutcomeUnknown, signed.Hash().Hex(), err)
	}
}

// isNodeRejection reports whether the node answered the request with a
// JSON-RPC error, which means the transaction was not added to its pool
func isNodeRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

func isAlreadyKnown(err error) bool {
	return strings.Contains(err.Error(), "already known")
}

// waitMined polls for the receipt until ctx ends
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			log.WithError(err).WithField("txHash", hash.Hex()).Debug("Receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrOutcomeUnknown, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// receiptOutcome classifies an already mined or missing receipt
func (c *Client) receiptOutcome(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOutcomeUnknown, hash.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
	}
	return receipt, nil
}
