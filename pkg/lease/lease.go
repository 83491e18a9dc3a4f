// Package lease implements the broker's lease allocator: a per-pool dense
// assignment of the smallest unused non-negative integer to a named
// worker, renewed in place and reclaimed on release or expiry.
package lease

import (
	"container/heap"
	"sync"
	"time"

	"github.com/marmos91/statebroker/pkg/broker"
)

// Metrics is the optional, nil-safe hook for the leases_expired counter.
type Metrics interface {
	ObserveExpired(n int)
}

// Entry is one lease-table row, keyed by worker id in Table.entries.
type Entry struct {
	PoolKey       string
	AssignedValue int
	ExpiresAt     int64
}

// pool tracks the free-list and high-water mark for one pool_key so a new
// allocation is O(log k) instead of an O(k) smallest-free-integer scan.
type pool struct {
	free   freeHeap // released values smaller than highWater, available for reuse
	nextHW int      // next value to hand out if free is empty
}

func newPool() *pool {
	p := &pool{free: freeHeap{}}
	heap.Init(&p.free)
	return p
}

func (p *pool) allocate() int {
	if p.free.Len() > 0 {
		return heap.Pop(&p.free).(int)
	}
	v := p.nextHW
	p.nextHW++
	return v
}

// release returns v to the pool's free list. It is only called for values
// below nextHW; values are never released twice for the same worker.
func (p *pool) release(v int) {
	heap.Push(&p.free, v)
}

type freeHeap []int

func (h freeHeap) Len() int            { return len(h) }
func (h freeHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h freeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *freeHeap) Push(x any)         { *h = append(*h, x.(int)) }
func (h *freeHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Config carries the allocator's only policy knob: the TTL applied when a
// lease/renew omits one.
type Config struct {
	DefaultTTLMs int64
}

// Table is the lease allocator. Zero value is not usable; construct with
// New.
type Table struct {
	cfg     Config
	metrics Metrics

	mu      sync.Mutex
	entries map[string]Entry // worker_id -> Entry
	pools   map[string]*pool // pool_key -> pool
}

// New constructs an empty Table. metrics may be nil.
func New(cfg Config, metrics Metrics) *Table {
	return &Table{
		cfg:     cfg,
		metrics: metrics,
		entries: make(map[string]Entry),
		pools:   make(map[string]*pool),
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Lease grants, renews, or rejects a lease for workerID in poolKey. ttlMs
// nil or zero resolves to the configured default TTL.
func (t *Table) Lease(poolKey, workerID string, ttlMs *int64) (int, error) {
	if poolKey == "" || workerID == "" {
		return 0, broker.ErrKeyAndWorkerRequired
	}

	ttl := t.cfg.DefaultTTLMs
	if ttlMs != nil && *ttlMs > 0 {
		ttl = *ttlMs
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked()

	if existing, ok := t.entries[workerID]; ok {
		if existing.PoolKey != poolKey {
			return 0, broker.ErrWorkerAlreadyLeased
		}
		existing.ExpiresAt = nowMs() + ttl
		t.entries[workerID] = existing
		return existing.AssignedValue, nil
	}

	p, ok := t.pools[poolKey]
	if !ok {
		p = newPool()
		t.pools[poolKey] = p
	}
	value := p.allocate()

	t.entries[workerID] = Entry{
		PoolKey:       poolKey,
		AssignedValue: value,
		ExpiresAt:     nowMs() + ttl,
	}
	return value, nil
}

// Release removes workerID's lease if present, freeing its assigned value
// back to the pool. Returns whether a lease was present.
func (t *Table) Release(workerID string) (bool, error) {
	if workerID == "" {
		return false, broker.ErrWorkerRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[workerID]
	if !ok {
		return false, nil
	}
	delete(t.entries, workerID)
	t.releaseValueLocked(e)
	return true, nil
}

func (t *Table) releaseValueLocked(e Entry) {
	if p, ok := t.pools[e.PoolKey]; ok {
		p.release(e.AssignedValue)
	}
}

// Count returns the number of non-expired leases.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := nowMs()
	n := 0
	for _, e := range t.entries {
		if e.ExpiresAt > now {
			n++
		}
	}
	return n
}

// Sweep deletes every lease with expires_at <= now, frees their values back
// to their pools, and returns the count removed.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

func (t *Table) sweepLocked() int {
	now := nowMs()
	removed := 0
	for w, e := range t.entries {
		if e.ExpiresAt <= now {
			delete(t.entries, w)
			t.releaseValueLocked(e)
			removed++
		}
	}
	if removed > 0 && t.metrics != nil {
		t.metrics.ObserveExpired(removed)
	}
	return removed
}

// Clear empties the table and every pool. Called by the lifecycle
// controller on stop.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]Entry)
	t.pools = make(map[string]*pool)
}
