package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"time26/events"
	"time26/merkle"
	"time26/models"
)

// UserRepository defines the ledger operations on users.
// Every balance mutation is a single conditional statement.
type UserRepository interface {
	// GetByID retrieves a user, nil if missing
	GetByID(ctx context.Context, userID string) (*models.User, error)

	// GetByWallet retrieves a user by lower-cased wallet, nil if missing
	GetByWallet(ctx context.Context, wallet string) (*models.User, error)

	// GetByIDs retrieves several users keyed by id
	GetByIDs(ctx context.Context, userIDs []string) (map[string]*models.User, error)

	// Credit adds amount to the balance and returns the updated user
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)

	// ConditionalDebit moves amount from balance to pending burn if the balance covers it.
	// Returns nil when no row matched.
	ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)

	// RollbackDebit moves amount from pending burn back to balance.
	// Returns nil when no row matched.
	RollbackDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)

	// ListClaimEntries returns (wallet, balance) for every user with a positive balance
	ListClaimEntries(ctx context.Context) ([]models.MerkleRewardEntry, error)
}

// BalanceHistoryRepository journals ledger mutations
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns the most recent entries for a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// SettlementRepository stores daily settlements and their per-user rows
type SettlementRepository interface {
	// Exists reports whether dayID already has a settlement row
	Exists(ctx context.Context, dayID string) (bool, error)

	// GetByDayID returns the settlement for a day, nil if unsettled
	GetByDayID(ctx context.Context, dayID string) (*models.DailySettlement, error)

	// Create inserts the settlement row unless one already exists.
	// Returns false when another run won the race.
	Create(ctx context.Context, settlement *models.DailySettlement) (bool, error)

	// InsertRewards stores per-user results for a settled day
	InsertRewards(ctx context.Context, dayID string, rewards []models.UserRewardResult) error

	// GetRewardsByDay lists the stored per-user rows for a day
	GetRewardsByDay(ctx context.Context, dayID string) ([]*models.UserDailyReward, error)
}

// DrawingSessionRepository reads sessions written by the session recorder
type DrawingSessionRepository interface {
	// ListBetween returns every session overlapping [from, to)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.DrawingInterval, error)
}

// GaslessMintRepository tracks sponsored mint attempts
type GaslessMintRepository interface {
	Create(ctx context.Context, mint *models.GaslessMint) error
	UpdateStatus(ctx context.Context, id string, status models.MintStatus, txHash, tokenID, errMsg *string) error
	ListOpen(ctx context.Context, limit int) ([]*models.GaslessMint, error)
}

// InconsistencyRepository stores critical ledger inconsistencies
type InconsistencyRepository interface {
	Record(ctx context.Context, inc *models.LedgerInconsistency) error
	ListOpen(ctx context.Context) ([]*models.LedgerInconsistency, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	SettlementRepository() SettlementRepository
	DrawingSessionRepository() DrawingSessionRepository
	GaslessMintRepository() GaslessMintRepository
	InconsistencyRepository() InconsistencyRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// RewardPool is the on-chain claim contract
type RewardPool interface {
	Address() common.Address

	// MerkleRoot returns the root the contract currently verifies against
	MerkleRoot(ctx context.Context) (common.Hash, error)

	// Claimed returns the cumulative amount already claimed by wallet
	Claimed(ctx context.Context, wallet common.Address) (decimal.Decimal, error)

	// TokenBalance returns the pool's TIME26 holdings
	TokenBalance(ctx context.Context) (decimal.Decimal, error)

	// UpdateMerkleRoot submits a new root and waits for it to be mined
	UpdateMerkleRoot(ctx context.Context, root common.Hash) (common.Hash, error)
}

// MintContract is the on-chain NFT contract used for sponsored mints
type MintContract interface {
	// MintPrice returns the TIME26 price for a drawing of the given duration
	MintPrice(ctx context.Context, durationSeconds int64) (decimal.Decimal, error)

	// EstimateMintGas returns the expected native-currency cost of a sponsored mint in wei
	EstimateMintGas(ctx context.Context, req models.SponsoredMintRequest) (decimal.Decimal, error)

	// SponsoredMint submits the mint and waits for its receipt. When the wait
	// ends without a receipt the error wraps chain.ErrOutcomeUnknown and the
	// returned receipt still carries the transaction hash.
	SponsoredMint(ctx context.Context, req models.SponsoredMintRequest) (*models.SponsoredMintReceipt, error)

	// MintOutcome looks up a previously submitted mint. It fails with
	// chain.ErrOutcomeUnknown while the transaction is pending or unknown to
	// the node and with chain.ErrTxReverted once it is known to have failed.
	MintOutcome(ctx context.Context, txHash string) (*models.SponsoredMintReceipt, error)
}

// PriceOracle provides USD prices for TIME26 and the native gas currency
type PriceOracle interface {
	Prices(ctx context.Context) (tokenUSD, nativeUSD decimal.Decimal, err error)
}

// Alerter surfaces critical inconsistencies to operators
type Alerter interface {
	Critical(ctx context.Context, inc *models.LedgerInconsistency) error
}

// LedgerService exposes the balance ledger to the spend, mint and settlement flows
type LedgerService interface {
	GetBalance(ctx context.Context, userID string) (*models.LedgerBalance, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)
	ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal, txType models.TransactionType, metadata map[string]any) (*models.User, error)
	Rollback(ctx context.Context, userID string, amount decimal.Decimal, reason string) error
	Spend(ctx context.Context, req SpendRequest) (*models.LedgerBalance, error)
}

// ClaimTree serves the current claim tree snapshot
type ClaimTree interface {
	Get(ctx context.Context) (*merkle.Snapshot, error)
	Rebuild(ctx context.Context) (*merkle.Snapshot, error)
}

// SettlementService settles one UTC day of drawing time
type SettlementService interface {
	Settle(ctx context.Context, dayID string) (*SettlementResult, error)
}

// ClaimService answers claim-proof requests and pushes roots
type ClaimService interface {
	GetClaimProof(ctx context.Context, wallet string) (*models.ClaimProof, error)
	PushRoot(ctx context.Context) (*RootPushResult, error)
}

// GaslessService evaluates and performs sponsored mints
type GaslessService interface {
	CheckEligibility(ctx context.Context, userID string, durationSeconds int64) (*models.GaslessEligibilityResult, error)
	Mint(ctx context.Context, userID string, req models.SponsoredMintRequest) (*models.GaslessMintResult, error)
	ReconcilePending(ctx context.Context) (*ReconcileResult, error)
}
