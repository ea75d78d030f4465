package client

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ankushKun/subspace-prod-sub001/internal/db"
	"github.com/ankushKun/subspace-prod-sub001/internal/remote"
	"github.com/tryfix/log"
)

// Config holds the coordinator's tunables. The settle delays compensate
// for the remote service's propagation lag and are empirically chosen
// defaults, not guarantees.
type Config struct {
	StructuralSettle    time.Duration // write -> server refetch
	MessageSettle       time.Duration // write -> message refetch
	LoaderDelay         time.Duration // pacing between joined-server fetches
	ProfilePollInterval time.Duration
	MessagePollInterval time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		StructuralSettle:    200 * time.Millisecond,
		MessageSettle:       500 * time.Millisecond,
		LoaderDelay:         100 * time.Millisecond,
		ProfilePollInterval: 20 * time.Second,
		MessagePollInterval: time.Second,
	}
}

// Coordinator owns the local copy of every remote entity and keeps it
// synchronized: it decides when to fetch versus serve from cache, holds
// at most one in-flight fetch per key, preserves locally loaded
// substructure across refreshes, paces the joined-server background walk
// and binds the whole cache to the currently active wallet identity.
type Coordinator struct {
	cfg    Config
	remote remote.Service
	store  *db.Store // nil disables persistence
	log    log.Logger
	cache  *Cache

	mu             sync.Mutex
	address        string
	onIdentity     func(address string)
	onServerUpdate func(serverID string)

	// gen invalidates scheduled work (refetch timers, loader walks,
	// pollers) belonging to a previous identity binding; msgEpoch does
	// the same for the active-channel message poller alone.
	gen      atomic.Uint64
	msgEpoch atomic.Uint64

	ui uiState
}

// NewCoordinator wires a coordinator and rehydrates the cache from the
// store without contacting the remote service. The store may be nil.
func NewCoordinator(cfg Config, svc remote.Service, store *db.Store, logger log.Logger) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		remote: svc,
		store:  store,
		log:    logger,
		cache:  NewCache(),
	}
	c.ui.init()
	c.rehydrate()
	c.loadUIState()
	return c
}

// Cache exposes the entity cache store for read paths (UI selectors).
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// Address returns the bound wallet address, or "" when unbound.
func (c *Coordinator) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// SetIdentityHandler registers a callback fired whenever binding to a
// new identity completes.
func (c *Coordinator) SetIdentityHandler(fn func(address string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onIdentity = fn
}

// SetServerUpdateHandler registers a callback fired after a server entry
// is refreshed in the cache.
func (c *Coordinator) SetServerUpdateHandler(fn func(serverID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onServerUpdate = fn
}

func (c *Coordinator) notifyServerUpdate(serverID string) {
	c.mu.Lock()
	handler := c.onServerUpdate
	c.mu.Unlock()
	if handler != nil {
		handler(serverID)
	}
}

// generation returns the current scheduling generation.
func (c *Coordinator) generation() uint64 {
	return c.gen.Load()
}

// alive reports whether work scheduled at generation g should still run.
func (c *Coordinator) alive(g uint64) bool {
	return c.gen.Load() == g
}

// after schedules fn, skipping it if the binding that scheduled it has
// been superseded by the time the timer fires.
func (c *Coordinator) after(d time.Duration, fn func()) {
	g := c.generation()
	time.AfterFunc(d, func() {
		if c.alive(g) {
			fn()
		}
	})
}

// flush persists the cache subset, best effort.
func (c *Coordinator) flush() {
	if c.store == nil {
		return
	}
	if err := c.Flush(); err != nil {
		c.log.Error(fmt.Sprintf("failed to persist cache: %v", err))
	}
}
