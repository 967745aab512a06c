package chain

import "errors"

var (
	// ErrOutcomeUnknown means a transaction was (or may have been) broadcast
	// but no receipt was seen before the wait ended
	ErrOutcomeUnknown = errors.New("transaction outcome unknown")

	// ErrNotBroadcast means the transaction never left the process, or the
	// node explicitly refused it. Nothing can land on-chain.
	ErrNotBroadcast = errors.New("transaction not broadcast")

	// ErrTxReverted means the transaction was mined with a failed status
	ErrTxReverted = errors.New("transaction reverted")

	// ErrNoSigner means the client was built without an operator key
	ErrNoSigner = errors.New("no operator key configured")
)
