package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

type fakeRecorder struct {
	saved []history.ClosedPosition
	err   error
}

func (f *fakeRecorder) Record(ctx context.Context, p history.ClosedPosition) (history.ClosedPosition, error) {
	if f.err != nil {
		return p, f.err
	}
	p.ID = "id-" + p.Symbol
	f.saved = append(f.saved, p)
	return p, nil
}

func newTestTracker(rec Recorder) (*Tracker, *time.Time) {
	tr := NewTracker(rec, logger.Nop())
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestTracker_RealizedPL(t *testing.T) {
	rec := &fakeRecorder{}
	tr, now := newTestTracker(rec)
	ctx := context.Background()

	tr.RecordEntry("AAPL", "day", 100, 10)
	*now = now.Add(30 * time.Minute)

	pos, ok := tr.RecordClose(ctx, "AAPL", 103, 0)
	require.True(t, ok)
	assert.InDelta(t, 30.0, pos.PL, 1e-9)
	assert.InDelta(t, 3.0, pos.PLPercent, 1e-9)
	assert.Equal(t, 30*time.Minute, pos.HoldTime)
	assert.Equal(t, "day", pos.Strategy)
	assert.Equal(t, "id-AAPL", pos.ID)
	require.Len(t, rec.saved, 1)

	_, ok = tr.Entry("AAPL")
	assert.False(t, ok)

	_, ok = tr.RecordClose(ctx, "AAPL", 103, 10)
	assert.False(t, ok)
}

func TestTracker_DailyStats(t *testing.T) {
	tr, _ := newTestTracker(nil)
	ctx := context.Background()

	trades := []struct {
		symbol      string
		entry, exit float64
		qty         float64
	}{
		{"AAPL", 100, 103, 10},
		{"TSLA", 200, 190, 2},
		{"MSFT", 400, 400, 1},
		{"NVDA", 100, 150, 1},
	}
	for _, tt := range trades {
		tr.RecordEntry(tt.symbol, "scalping", tt.entry, tt.qty)
		_, ok := tr.RecordClose(ctx, tt.symbol, tt.exit, tt.qty)
		require.True(t, ok)
	}

	st := tr.DailyStats()
	assert.Equal(t, 4, st.TotalTrades)
	assert.Equal(t, 2, st.WinningTrades)
	assert.Equal(t, 1, st.LosingTrades)
	assert.Equal(t, 50.0, st.WinRate)
	assert.InDelta(t, 60.0, st.RealizedPL, 1e-9)
	require.NotNil(t, st.TopWinner)
	assert.Equal(t, "NVDA", st.TopWinner.Symbol)
	assert.Equal(t, "TSLA", st.TopLoser.Symbol)

	tr.RecordEntry("AMD", "swing", 50, 4)
	tr.ResetDaily()
	assert.Equal(t, DailyStats{}, tr.DailyStats())
	assert.Equal(t, 0.0, tr.DailyRealizedPL())
	assert.InDelta(t, 60.0, tr.TotalRealizedPL(), 1e-9)
	assert.Len(t, tr.OpenEntries(), 1)
}

func TestTracker_StoreFailureIsAbsorbed(t *testing.T) {
	tr, _ := newTestTracker(&fakeRecorder{err: errors.New("disk full")})
	tr.RecordEntry("ETHUSD", "swing", 2000, 1)
	pos, ok := tr.RecordClose(context.Background(), "ETHUSD", 1900, 1)
	require.True(t, ok)
	assert.Equal(t, "", pos.ID)
	assert.InDelta(t, -100.0, tr.DailyRealizedPL(), 1e-9)
}
