package risk

import (
	"context"
	"sync"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// pendingEntry is a submitted position the broker has not reported yet
type pendingEntry struct {
	pos   types.Position
	until time.Time
}

// EntrySlot is the account-wide entry claim. It is held from the correlation
// check until the order result is known, so entries for different symbols
// gate against each other's positions one at a time.
type EntrySlot struct {
	m    *Manager
	once sync.Once
}

// BeginEntry waits for the entry slot. Exits never take it.
func (m *Manager) BeginEntry(ctx context.Context) (*EntrySlot, error) {
	select {
	case m.entry <- struct{}{}:
		return &EntrySlot{m: m}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submitted counts pos as open for later gate checks until the broker lists
// the symbol or the lock lease passes.
func (s *EntrySlot) Submitted(pos types.Position) {
	m := s.m
	ttl := m.cfg.LockLease
	if ttl <= 0 {
		ttl = time.Minute
	}
	m.mu.Lock()
	m.pending[pos.Symbol] = pendingEntry{pos: pos, until: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Release frees the slot; later calls are no-ops.
func (s *EntrySlot) Release() {
	s.once.Do(func() { <-s.m.entry })
}

// OpenPositions is the broker snapshot plus submitted entries not yet reported.
// Portfolio heat and the position count are recomputed from it.
func (m *Manager) OpenPositions(ctx context.Context) ([]types.Position, error) {
	return m.refreshPositions(ctx)
}

func (m *Manager) withPendingLocked(positions []types.Position) []types.Position {
	if len(m.pending) == 0 {
		return positions
	}
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		seen[p.Symbol] = true
	}
	now := m.now()
	for sym, pe := range m.pending {
		if seen[sym] || now.After(pe.until) {
			delete(m.pending, sym)
			continue
		}
		positions = append(positions, pe.pos)
	}
	return positions
}
