package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := NewGuard(nil, 2)
	require.NoError(t, err)
	return g
}

func TestNewGuard_RejectsOverlap(t *testing.T) {
	_, err := NewGuard(map[string][]string{
		"a": {"AAPL", "MSFT"},
		"b": {"MSFT"},
	}, 2)
	assert.Error(t, err)

	_, err = NewGuard(map[string][]string{Uncorrelated: {"AAPL"}}, 2)
	assert.Error(t, err)

	g, err := NewGuard(map[string][]string{"a": {"AAPL"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPerGroup, g.MaxPerGroup())
}

func TestGroup(t *testing.T) {
	g := newTestGuard(t)
	assert.Equal(t, "major-crypto", g.Group("BTCUSD"))
	assert.Equal(t, "mega-cap-tech", g.Group("AAPL"))
	assert.Equal(t, Uncorrelated, g.Group("XYZ"))
}

func TestCanAddPosition(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name    string
		symbol  string
		open    []string
		allowed bool
		count   int
	}{
		{"uncorrelated always allowed", "XYZ", []string{"XYZ", "XYZ", "XYZ"}, true, 0},
		{"empty book", "AAPL", nil, true, 0},
		{"one in group", "MSFT", []string{"AAPL", "BTCUSD"}, true, 1},
		{"group full", "GOOGL", []string{"AAPL", "MSFT"}, false, 2},
		{"other group full", "NVDA", []string{"AAPL", "MSFT"}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.CanAddPosition(tt.symbol, tt.open)
			assert.Equal(t, tt.allowed, d.Allowed, d.Reason)
			assert.Equal(t, tt.count, d.Count)
		})
	}

	d := g.CanAddPosition("GOOGL", []string{"AAPL", "MSFT"})
	assert.Equal(t, "Already holding 2 positions in mega-cap-tech group (max: 2)", d.Reason)
	assert.Equal(t, []string{"AAPL", "MSFT"}, d.Existing)
}

// Any sequence of opens that follows the guard's answers keeps every group at or below the limit.
func TestCanAddPosition_OccupancyNeverExceedsLimit(t *testing.T) {
	g := newTestGuard(t)
	candidates := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "BTCUSD", "ETHUSD", "SOLUSD", "AVAXUSD", "DOTUSD", "NVDA", "AMD", "SPY", "QQQ", "AAPL", "XYZ"}

	var open []string
	for round := 0; round < 3; round++ {
		for _, s := range candidates {
			if g.CanAddPosition(s, open).Allowed {
				open = append(open, s)
			}
		}
	}

	counts := map[string]int{}
	for _, s := range open {
		counts[g.Group(s)]++
	}
	for group, n := range counts {
		if group == Uncorrelated {
			continue
		}
		assert.LessOrEqual(t, n, g.MaxPerGroup(), group)
	}
	assert.Empty(t, g.AnalyzeRisk(open).Overconcentrated)
}

func TestDiversificationScore(t *testing.T) {
	g := newTestGuard(t)
	assert.Equal(t, 100.0, g.DiversificationScore(nil))
	assert.Equal(t, 50.0, g.DiversificationScore([]string{"AAPL", "MSFT"}))
	assert.Equal(t, 100.0, g.DiversificationScore([]string{"AAPL", "BTCUSD", "NVDA"}))
}

func TestPortfolioBalance(t *testing.T) {
	assert.Equal(t, Balance{Balanced: true}, PortfolioBalance(nil))

	b := PortfolioBalance([]string{"BTCUSD", "AAPL"})
	assert.Equal(t, 50.0, b.CryptoPercent)
	assert.True(t, b.Balanced)

	b = PortfolioBalance([]string{"BTCUSD", "ETHUSD", "SOLUSD", "AAPL"})
	assert.Equal(t, 75.0, b.CryptoPercent)
	assert.False(t, b.Balanced)

	assert.Equal(t, "stock", SuggestNextAssetType([]string{"BTCUSD", "ETHUSD", "AAPL"}))
	assert.Equal(t, "crypto", SuggestNextAssetType([]string{"AAPL", "MSFT", "BTCUSD"}))
	assert.Equal(t, "any", SuggestNextAssetType([]string{"AAPL", "BTCUSD"}))
	assert.Equal(t, "any", SuggestNextAssetType(nil))
}

func TestAnalyzeRisk(t *testing.T) {
	g := newTestGuard(t)

	r := g.AnalyzeRisk([]string{"AAPL", "MSFT", "GOOGL", "BTCUSD"})
	assert.Equal(t, 50.0, r.DiversificationScore)
	assert.Equal(t, RiskMedium, r.Risk)
	assert.Equal(t, []GroupCount{{Group: "mega-cap-tech", Count: 3}}, r.Overconcentrated)

	assert.Equal(t, RiskHigh, g.AnalyzeRisk([]string{"AAPL", "MSFT", "GOOGL"}).Risk)
	assert.Equal(t, RiskLow, g.AnalyzeRisk(nil).Risk)
}
