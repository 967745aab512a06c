package events

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"time26/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeSettlementCompleted EventType = "settlement_completed"
	EventTypeLedgerInconsistency EventType = "ledger_inconsistency"
	EventTypeMerkleRootPushed    EventType = "merkle_root_pushed"
	EventTypeGaslessMint         EventType = "gasless_mint"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a committed ledger mutation
type BalanceChangeEvent struct {
	UserID          string                 `json:"userId"`
	OldBalance      decimal.Decimal        `json:"oldBalance"`
	NewBalance      decimal.Decimal        `json:"newBalance"`
	PendingBurn     decimal.Decimal        `json:"pendingBurn"`
	TransactionType models.TransactionType `json:"transactionType"`
	ChangeAmount    decimal.Decimal        `json:"changeAmount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// SettlementCompletedEvent is emitted once per settled day
type SettlementCompletedEvent struct {
	DayID            string          `json:"dayId"`
	ParticipantCount int             `json:"participantCount"`
	TotalSeconds     int64           `json:"totalSeconds"`
	TotalDistributed decimal.Decimal `json:"totalDistributed"`
}

func (e SettlementCompletedEvent) Type() EventType {
	return EventTypeSettlementCompleted
}

// LedgerInconsistencyEvent is emitted when a debit could not be reversed
type LedgerInconsistencyEvent struct {
	InconsistencyID int64           `json:"inconsistencyId"`
	UserID          string          `json:"userId"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
}

func (e LedgerInconsistencyEvent) Type() EventType {
	return EventTypeLedgerInconsistency
}

// MerkleRootPushedEvent is emitted after a root is committed on-chain
type MerkleRootPushedEvent struct {
	Root    string `json:"root"`
	TxHash  string `json:"txHash"`
	Entries int    `json:"entries"`
}

func (e MerkleRootPushedEvent) Type() EventType {
	return EventTypeMerkleRootPushed
}

// GaslessMintEvent reports the final state of a sponsored mint
type GaslessMintEvent struct {
	MintID  string            `json:"mintId"`
	UserID  string            `json:"userId"`
	Status  models.MintStatus `json:"status"`
	TxHash  string            `json:"txHash,omitempty"`
	TokenID string            `json:"tokenId,omitempty"`
}

func (e GaslessMintEvent) Type() EventType {
	return EventTypeGaslessMint
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines; a panicking handler is logged and dropped.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	// Handlers outlive the request that committed the transaction
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}

	log.WithField("eventCount", len(b.pending)).Debug("Flushed transactional events")
	b.pending = nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
