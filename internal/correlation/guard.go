package correlation

import (
	"fmt"
	"math"
	"sort"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Uncorrelated is the group of symbols outside every configured group
const Uncorrelated = "uncorrelated"

// DefaultMaxPerGroup limits open positions within one group
const DefaultMaxPerGroup = 2

// DefaultGroups is used when configuration supplies none
func DefaultGroups() map[string][]string {
	return map[string][]string{
		"major-crypto":  {"BTCUSD", "ETHUSD"},
		"layer1-crypto": {"SOLUSD", "AVAXUSD", "DOTUSD"},
		"defi-crypto":   {"AAVEUSD", "UNIUSD", "LINKUSD"},
		"meme-crypto":   {"DOGEUSD", "SHIBUSD"},
		"mega-cap-tech": {"AAPL", "MSFT", "GOOGL", "AMZN"},
		"ai-tech":       {"NVDA", "AMD"},
		"social-tech":   {"META"},
		"ev-auto":       {"TSLA"},
		"index-etf":     {"SPY", "QQQ"},
	}
}

// Guard answers diversification questions over a static membership table.
// It holds no mutable state and is safe for concurrent use.
type Guard struct {
	membership  map[string]string
	maxPerGroup int
}

// NewGuard builds the membership table. A symbol listed in two groups is rejected.
func NewGuard(groups map[string][]string, maxPerGroup int) (*Guard, error) {
	if maxPerGroup <= 0 {
		maxPerGroup = DefaultMaxPerGroup
	}
	if groups == nil {
		groups = DefaultGroups()
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	membership := make(map[string]string)
	for _, name := range names {
		if name == Uncorrelated {
			return nil, fmt.Errorf("group name %q is reserved", Uncorrelated)
		}
		for _, symbol := range groups[name] {
			if prev, ok := membership[symbol]; ok && prev != name {
				return nil, fmt.Errorf("symbol %s is in both %s and %s", symbol, prev, name)
			}
			membership[symbol] = name
		}
	}

	return &Guard{membership: membership, maxPerGroup: maxPerGroup}, nil
}

// MaxPerGroup returns the configured group limit
func (g *Guard) MaxPerGroup() int { return g.maxPerGroup }

// Group returns the group name for symbol
func (g *Guard) Group(symbol string) string {
	if name, ok := g.membership[symbol]; ok {
		return name
	}
	return Uncorrelated
}

// Decision is the answer to CanAddPosition
type Decision struct {
	Allowed  bool
	Reason   string
	Group    string
	Count    int
	Existing []string
}

// CanAddPosition allows symbol while fewer than MaxPerGroup open positions share its group.
func (g *Guard) CanAddPosition(symbol string, openSymbols []string) Decision {
	group := g.Group(symbol)
	if group == Uncorrelated {
		return Decision{Allowed: true, Reason: "Symbol not in correlation groups", Group: group}
	}

	var existing []string
	for _, s := range openSymbols {
		if g.Group(s) == group {
			existing = append(existing, s)
		}
	}

	if len(existing) >= g.maxPerGroup {
		return Decision{
			Allowed:  false,
			Reason:   fmt.Sprintf("Already holding %d positions in %s group (max: %d)", len(existing), group, g.maxPerGroup),
			Group:    group,
			Count:    len(existing),
			Existing: existing,
		}
	}

	return Decision{
		Allowed:  true,
		Reason:   fmt.Sprintf("OK to add (%d/%d in %s)", len(existing), g.maxPerGroup, group),
		Group:    group,
		Count:    len(existing),
		Existing: existing,
	}
}

// DiversificationScore is distinct groups over positions times 100; 100 when flat.
func (g *Guard) DiversificationScore(openSymbols []string) float64 {
	if len(openSymbols) == 0 {
		return 100
	}
	groups := make(map[string]struct{})
	for _, s := range openSymbols {
		groups[g.Group(s)] = struct{}{}
	}
	return float64(len(groups)) / float64(len(openSymbols)) * 100
}

// Balance splits positions between crypto and stocks
type Balance struct {
	CryptoPercent float64
	StockPercent  float64
	Balanced      bool
}

// PortfolioBalance reports the crypto and stock share of open positions.
func PortfolioBalance(openSymbols []string) Balance {
	if len(openSymbols) == 0 {
		return Balance{Balanced: true}
	}
	crypto := 0
	for _, s := range openSymbols {
		if types.AssetType(s) == types.AssetCrypto {
			crypto++
		}
	}
	cryptoPct := float64(crypto) / float64(len(openSymbols)) * 100
	return Balance{
		CryptoPercent: cryptoPct,
		StockPercent:  100 - cryptoPct,
		Balanced:      math.Abs(cryptoPct-50) < 20,
	}
}

// SuggestNextAssetType leans toward the under-weighted asset class.
func SuggestNextAssetType(openSymbols []string) string {
	b := PortfolioBalance(openSymbols)
	switch {
	case b.CryptoPercent > 60:
		return types.AssetStock
	case b.StockPercent > 60 && len(openSymbols) > 0:
		return types.AssetCrypto
	default:
		return "any"
	}
}

// RiskLevel buckets the diversification score
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// GroupCount is the number of open positions inside one group
type GroupCount struct {
	Group string
	Count int
}

// RiskReport summarizes concentration of the open book
type RiskReport struct {
	DiversificationScore float64
	Balance              Balance
	Overconcentrated     []GroupCount
	Risk                 RiskLevel
}

// AnalyzeRisk reports diversification, balance and groups above the limit.
func (g *Guard) AnalyzeRisk(openSymbols []string) RiskReport {
	score := g.DiversificationScore(openSymbols)

	counts := make(map[string]int)
	for _, s := range openSymbols {
		counts[g.Group(s)]++
	}
	var over []GroupCount
	for group, n := range counts {
		if n > g.maxPerGroup {
			over = append(over, GroupCount{Group: group, Count: n})
		}
	}
	sort.Slice(over, func(i, j int) bool { return over[i].Group < over[j].Group })

	risk := RiskLow
	switch {
	case score < 50:
		risk = RiskHigh
	case score < 70:
		risk = RiskMedium
	}

	return RiskReport{
		DiversificationScore: score,
		Balance:              PortfolioBalance(openSymbols),
		Overconcentrated:     over,
		Risk:                 risk,
	}
}
