package client

import "sync"

// guardKind selects one of the in-flight key sets.
type guardKind int

const (
	guardProfile guardKind = iota
	guardServer
	guardFriend
	guardDM
	guardKinds
)

// loadGuards is the loading-guard registry: per-kind sets of keys with a
// fetch currently in flight. It collapses concurrent requests for the
// same key into a single logical fetch. A caller that fails to acquire
// falls back to the cached value instead of waiting (cache-or-skip); the
// sets are transient and never persisted.
type loadGuards struct {
	mu       sync.Mutex
	inflight [guardKinds]map[string]bool
}

func newLoadGuards() *loadGuards {
	g := &loadGuards{}
	for i := range g.inflight {
		g.inflight[i] = make(map[string]bool)
	}
	return g
}

// tryAcquire records the key if no fetch for it is in flight and returns
// a release func for the caller to defer, guaranteeing release on all
// paths. It returns ok=false if another fetch already holds the key.
func (g *loadGuards) tryAcquire(kind guardKind, key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight[kind][key] {
		return nil, false
	}
	g.inflight[kind][key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight[kind], key)
			g.mu.Unlock()
		})
	}, true
}

// held reports whether a fetch for the key is in flight.
func (g *loadGuards) held(kind guardKind, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight[kind][key]
}

func (g *loadGuards) clear(kind guardKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight[kind] = make(map[string]bool)
}

func (g *loadGuards) clearAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.inflight {
		g.inflight[i] = make(map[string]bool)
	}
}
