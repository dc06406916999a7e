package risk

import (
	"sync"
	"time"
)

// Lease is a time-bounded claim on a symbol
type Lease struct {
	Symbol     string
	Owner      string
	AcquiredAt time.Time
	Duration   time.Duration

	token uint64
}

// ExpiresAt returns the instant the lease lapses on its own
func (l Lease) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.Duration)
}

// LockTable grants at most one live lease per symbol. Expiry is enforced
// here on every call so holders never compare timestamps themselves.
type LockTable struct {
	mu     sync.Mutex
	leases map[string]Lease
	now    func() time.Time
	next   uint64
}

// NewLockTable creates an empty table; a nil clock uses time.Now
func NewLockTable(now func() time.Time) *LockTable {
	if now == nil {
		now = time.Now
	}
	return &LockTable{leases: make(map[string]Lease), now: now}
}

// Acquire grants a lease on symbol unless an unexpired one exists, whoever owns it.
func (t *LockTable) Acquire(symbol, owner string, d time.Duration) (*Lease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if cur, ok := t.leases[symbol]; ok && now.Before(cur.ExpiresAt()) {
		return nil, false
	}

	t.next++
	l := Lease{Symbol: symbol, Owner: owner, AcquiredAt: now, Duration: d, token: t.next}
	t.leases[symbol] = l
	return &l, true
}

// Release drops the lease if it is still the current one for its symbol.
// Releasing a lapsed lease never removes a newer holder's claim.
func (t *LockTable) Release(l *Lease) bool {
	if l == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.leases[l.Symbol]
	if !ok || cur.token != l.token {
		return false
	}
	delete(t.leases, l.Symbol)
	return true
}

// Holder returns the live lease for symbol, if any
func (t *LockTable) Holder(symbol string) (Lease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.leases[symbol]
	if !ok || !t.now().Before(cur.ExpiresAt()) {
		return Lease{}, false
	}
	return cur, true
}

// Sweep removes lapsed leases and returns how many were dropped
func (t *LockTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for symbol, l := range t.leases {
		if !now.Before(l.ExpiresAt()) {
			delete(t.leases, symbol)
			removed++
		}
	}
	return removed
}

// Active counts unexpired leases
func (t *LockTable) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for _, l := range t.leases {
		if now.Before(l.ExpiresAt()) {
			n++
		}
	}
	return n
}
