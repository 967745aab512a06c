package service

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"time26/events"
	"time26/merkle"
	"time26/models"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	args := m.Called(ctx, wallet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, userIDs []string) (map[string]*models.User, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*models.User), args.Error(1)
}

func (m *MockUserRepository) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) RollbackDebit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListClaimEntries(ctx context.Context) ([]models.MerkleRewardEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MerkleRewardEntry), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockSettlementRepository is a mock implementation of SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Exists(ctx context.Context, dayID string) (bool, error) {
	args := m.Called(ctx, dayID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) GetByDayID(ctx context.Context, dayID string) (*models.DailySettlement, error) {
	args := m.Called(ctx, dayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailySettlement), args.Error(1)
}

func (m *MockSettlementRepository) Create(ctx context.Context, settlement *models.DailySettlement) (bool, error) {
	args := m.Called(ctx, settlement)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) InsertRewards(ctx context.Context, dayID string, rewards []models.UserRewardResult) error {
	args := m.Called(ctx, dayID, rewards)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetRewardsByDay(ctx context.Context, dayID string) ([]*models.UserDailyReward, error) {
	args := m.Called(ctx, dayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserDailyReward), args.Error(1)
}

// MockDrawingSessionRepository is a mock implementation of DrawingSessionRepository
type MockDrawingSessionRepository struct {
	mock.Mock
}

func (m *MockDrawingSessionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.DrawingInterval, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DrawingInterval), args.Error(1)
}

// MockGaslessMintRepository is a mock implementation of GaslessMintRepository
type MockGaslessMintRepository struct {
	mock.Mock
}

func (m *MockGaslessMintRepository) Create(ctx context.Context, mint *models.GaslessMint) error {
	args := m.Called(ctx, mint)
	return args.Error(0)
}

func (m *MockGaslessMintRepository) UpdateStatus(ctx context.Context, id string, status models.MintStatus, txHash, tokenID, errMsg *string) error {
	args := m.Called(ctx, id, status, txHash, tokenID, errMsg)
	return args.Error(0)
}

func (m *MockGaslessMintRepository) ListOpen(ctx context.Context, limit int) ([]*models.GaslessMint, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GaslessMint), args.Error(1)
}

// MockInconsistencyRepository is a mock implementation of InconsistencyRepository
type MockInconsistencyRepository struct {
	mock.Mock
}

func (m *MockInconsistencyRepository) Record(ctx context.Context, inc *models.LedgerInconsistency) error {
	args := m.Called(ctx, inc)
	return args.Error(0)
}

func (m *MockInconsistencyRepository) ListOpen(ctx context.Context) ([]*models.LedgerInconsistency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerInconsistency), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns everything published so far
func (m *MockEventPublisher) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

// MockRepositories groups the repositories a MockUnitOfWork hands out
type MockRepositories struct {
	Users           *MockUserRepository
	History         *MockBalanceHistoryRepository
	Settlements     *MockSettlementRepository
	Sessions        *MockDrawingSessionRepository
	Mints           *MockGaslessMintRepository
	Inconsistencies *MockInconsistencyRepository
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	repos MockRepositories
	bus   MockEventPublisher
}

// SetRepositories sets the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(repos MockRepositories) {
	m.repos = repos
}

// Published returns the events queued on this unit of work
func (m *MockUnitOfWork) Published() []events.Event {
	return m.bus.Events()
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.repos.Users
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.repos.History
}

func (m *MockUnitOfWork) SettlementRepository() SettlementRepository {
	return m.repos.Settlements
}

func (m *MockUnitOfWork) DrawingSessionRepository() DrawingSessionRepository {
	return m.repos.Sessions
}

func (m *MockUnitOfWork) GaslessMintRepository() GaslessMintRepository {
	return m.repos.Mints
}

func (m *MockUnitOfWork) InconsistencyRepository() InconsistencyRepository {
	return m.repos.Inconsistencies
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return &m.bus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockRewardPool is a mock implementation of RewardPool
type MockRewardPool struct {
	mock.Mock
}

func (m *MockRewardPool) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *MockRewardPool) MerkleRoot(ctx context.Context) (common.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockRewardPool) Claimed(ctx context.Context, wallet common.Address) (decimal.Decimal, error) {
	args := m.Called(ctx, wallet)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRewardPool) TokenBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRewardPool) UpdateMerkleRoot(ctx context.Context, root common.Hash) (common.Hash, error) {
	args := m.Called(ctx, root)
	return args.Get(0).(common.Hash), args.Error(1)
}

// MockMintContract is a mock implementation of MintContract
type MockMintContract struct {
	mock.Mock
}

func (m *MockMintContract) MintPrice(ctx context.Context, durationSeconds int64) (decimal.Decimal, error) {
	args := m.Called(ctx, durationSeconds)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMintContract) EstimateMintGas(ctx context.Context, req models.SponsoredMintRequest) (decimal.Decimal, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMintContract) SponsoredMint(ctx context.Context, req models.SponsoredMintRequest) (*models.SponsoredMintReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SponsoredMintReceipt), args.Error(1)
}

func (m *MockMintContract) MintOutcome(ctx context.Context, txHash string) (*models.SponsoredMintReceipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SponsoredMintReceipt), args.Error(1)
}

// MockPriceOracle is a mock implementation of PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) Prices(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

// MockAlerter is a mock implementation of Alerter
type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Critical(ctx context.Context, inc *models.LedgerInconsistency) error {
	args := m.Called(ctx, inc)
	return args.Error(0)
}

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetBalance(ctx context.Context, userID string) (*models.LedgerBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerBalance), args.Error(1)
}

func (m *MockLedgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLedgerService) ConditionalDebit(ctx context.Context, userID string, amount decimal.Decimal, txType models.TransactionType, metadata map[string]any) (*models.User, error) {
	args := m.Called(ctx, userID, amount, txType, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLedgerService) Rollback(ctx context.Context, userID string, amount decimal.Decimal, reason string) error {
	args := m.Called(ctx, userID, amount, reason)
	return args.Error(0)
}

func (m *MockLedgerService) Spend(ctx context.Context, req SpendRequest) (*models.LedgerBalance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerBalance), args.Error(1)
}

// MockClaimTree is a mock implementation of ClaimTree
type MockClaimTree struct {
	mock.Mock
}

func (m *MockClaimTree) Get(ctx context.Context) (*merkle.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merkle.Snapshot), args.Error(1)
}

func (m *MockClaimTree) Rebuild(ctx context.Context) (*merkle.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merkle.Snapshot), args.Error(1)
}

// MockIndicators is a no-op metrics.Indicators that counts critical alerts
type MockIndicators struct {
	mu       sync.Mutex
	critical int
	ops      map[string]int
}

func (m *MockIndicators) IncSettlement(string) {}

func (m *MockIndicators) IncLedgerOperation(operation, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = make(map[string]int)
	}
	m.ops[operation+"/"+result]++
}

func (m *MockIndicators) IncCriticalInconsistency() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical++
}

func (m *MockIndicators) ObserveChainCall(string, string, time.Duration) {}

func (m *MockIndicators) IncPriceFetch(string) {}

func (m *MockIndicators) SetClaimTreeEntries(int) {}

// Critical returns how many critical inconsistencies were reported
func (m *MockIndicators) Critical() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.critical
}

// Ops returns the count for an operation/result pair
func (m *MockIndicators) Ops(operation, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[operation+"/"+result]
}
