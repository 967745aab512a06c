package merkle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"time26/models"
)

// DefaultTTL is how long a built tree is served before it is rebuilt
const DefaultTTL = 5 * time.Minute

// EntrySource lists every wallet with a strictly positive balance
type EntrySource interface {
	ListClaimEntries(ctx context.Context) ([]models.MerkleRewardEntry, error)
}

// Snapshot is one immutable build of the claim tree
type Snapshot struct {
	Tree    *Tree
	Entries map[string]models.MerkleRewardEntry
	Root    common.Hash
	BuiltAt time.Time
}

// Lookup finds the entry for a wallet, case-insensitively
func (s *Snapshot) Lookup(wallet string) (models.MerkleRewardEntry, bool) {
	e, ok := s.Entries[NormalizeWallet(wallet)]
	return e, ok
}

// Cache holds the current snapshot and rebuilds it once it is older than the TTL
type Cache struct {
	source EntrySource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	group   singleflight.Group
}

// NewCache creates a cache. A nil clock uses time.Now.
func NewCache(source EntrySource, ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{source: source, ttl: ttl, now: now}
}

// Get returns the cached snapshot, rebuilding it if missing or stale
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.current
	c.mu.RUnlock()

	if snap != nil && c.now().Sub(snap.BuiltAt) < c.ttl {
		return snap, nil
	}
	return c.Rebuild(ctx)
}

// Rebuild forces a new snapshot. Concurrent callers share one build.
func (c *Cache) Rebuild(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("rebuild", func() (interface{}, error) {
		return c.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the current snapshot
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Cache) build(ctx context.Context) (*Snapshot, error) {
	entries, err := c.source.ListClaimEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim entries: %w", err)
	}

	snap := &Snapshot{
		Entries: make(map[string]models.MerkleRewardEntry, len(entries)),
		BuiltAt: c.now(),
	}
	leaves := make([]models.MerkleRewardEntry, 0, len(entries))
	for _, e := range entries {
		if e.CumulativeAmount.Sign() <= 0 {
			continue
		}
		e.WalletAddress = NormalizeWallet(e.WalletAddress)
		snap.Entries[e.WalletAddress] = e
		leaves = append(leaves, e)
	}

	tree, err := BuildTree(leaves)
	switch {
	case errors.Is(err, ErrEmptyTree):
		// keep an empty snapshot so callers get "nothing to claim" instead of an error
	case err != nil:
		return nil, err
	default:
		snap.Tree = tree
		snap.Root = tree.Root()
	}

	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"entries": len(snap.Entries),
		"root":    snap.Root.Hex(),
	}).Info("Rebuilt merkle claim tree")

	return snap, nil
}
