package portfolio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

// Recorder persists closed positions
type Recorder interface {
	Record(ctx context.Context, p history.ClosedPosition) (history.ClosedPosition, error)
}

// Entry is the open leg of a tracked position
type Entry struct {
	Symbol   string
	Strategy string
	Price    float64
	Qty      float64
	At       time.Time
}

// DailyStats summarizes positions closed since the last daily reset
type DailyStats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	RealizedPL    float64
	TopWinner     *history.ClosedPosition
	TopLoser      *history.ClosedPosition
}

// Tracker computes realized P/L from entry and exit fills. Persistence
// failures are logged; the in-memory figures stay authoritative.
type Tracker struct {
	mu              sync.Mutex
	entries         map[string]Entry
	closed          []history.ClosedPosition
	realizedPL      float64
	dailyRealizedPL float64
	store           Recorder
	log             *logger.Logger
	now             func() time.Time
}

// NewTracker creates a tracker. store may be nil.
func NewTracker(store Recorder, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		entries: make(map[string]Entry),
		store:   store,
		log:     log.With("component", "portfolio"),
		now:     time.Now,
	}
}

// RecordEntry remembers the entry fill for symbol, replacing any previous one.
func (t *Tracker) RecordEntry(symbol, strategy string, price, qty float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if qty <= 0 {
		qty = 1
	}
	t.entries[symbol] = Entry{Symbol: symbol, Strategy: strategy, Price: price, Qty: qty, At: t.now()}
}

// RecordClose realizes P/L against the stored entry. A non-positive qty
// closes the full entry quantity. It reports false when no entry is known.
func (t *Tracker) RecordClose(ctx context.Context, symbol string, exitPrice, qty float64) (history.ClosedPosition, bool) {
	t.mu.Lock()
	entry, ok := t.entries[symbol]
	if !ok {
		t.mu.Unlock()
		t.log.Warning("no entry found for %s, cannot calculate realized P/L", symbol)
		return history.ClosedPosition{}, false
	}
	if qty <= 0 {
		qty = entry.Qty
	}

	now := t.now()
	pos := history.ClosedPosition{
		Symbol:     symbol,
		Strategy:   entry.Strategy,
		Qty:        qty,
		EntryPrice: entry.Price,
		ExitPrice:  exitPrice,
		PL:         (exitPrice - entry.Price) * qty,
		HoldTime:   now.Sub(entry.At),
		ClosedAt:   now,
	}
	if entry.Price > 0 {
		pos.PLPercent = (exitPrice - entry.Price) / entry.Price * 100
	}

	t.closed = append(t.closed, pos)
	t.realizedPL += pos.PL
	t.dailyRealizedPL += pos.PL
	delete(t.entries, symbol)
	store := t.store
	t.mu.Unlock()

	if store != nil {
		saved, err := store.Record(ctx, pos)
		if err != nil {
			t.log.LogError("history record", err)
		} else {
			pos = saved
		}
	}
	t.log.Trade("realized P/L for %s: $%.2f (%.2f%%)", symbol, pos.PL, pos.PLPercent)
	return pos, true
}

// Entry returns the tracked entry for symbol
func (t *Tracker) Entry(symbol string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[symbol]
	return e, ok
}

// OpenEntries lists tracked entries sorted by symbol
func (t *Tracker) OpenEntries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (t *Tracker) TotalRealizedPL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realizedPL
}

func (t *Tracker) DailyRealizedPL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyRealizedPL
}

// DailyStats counts today's closes. Breakeven closes are neither wins nor losses.
func (t *Tracker) DailyStats() DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := DailyStats{TotalTrades: len(t.closed), RealizedPL: t.dailyRealizedPL}
	for i := range t.closed {
		p := t.closed[i]
		switch {
		case p.PL > 0:
			st.WinningTrades++
			if st.TopWinner == nil || p.PL > st.TopWinner.PL {
				st.TopWinner = &p
			}
		case p.PL < 0:
			st.LosingTrades++
			if st.TopLoser == nil || p.PL < st.TopLoser.PL {
				st.TopLoser = &p
			}
		}
	}
	if st.TotalTrades > 0 {
		st.WinRate = float64(st.WinningTrades) / float64(st.TotalTrades) * 100
	}
	return st
}

// ResetDaily clears today's closes and daily P/L. Open entries are kept.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = nil
	t.dailyRealizedPL = 0
}
