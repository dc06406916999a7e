package signal

// Direction is the trade direction a signal argues for
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL"
)

// Opposite returns the reverse direction; NEUTRAL stays NEUTRAL
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return Neutral
	}
}

// Momentum is the majority direction of consecutive RSI moves
type Momentum string

const (
	MomentumUp   Momentum = "UP"
	MomentumDown Momentum = "DOWN"
	MomentumFlat Momentum = "FLAT"
)

// SlopeSignal is the class assigned by the RSI slope ladder
type SlopeSignal string

const (
	StrongBuy    SlopeSignal = "STRONG_BUY"
	BuySignal    SlopeSignal = "BUY"
	WeakBuy      SlopeSignal = "WEAK_BUY"
	StrongSell   SlopeSignal = "STRONG_SELL"
	SellSignal   SlopeSignal = "SELL"
	WeakSell     SlopeSignal = "WEAK_SELL"
	ReversalBuy  SlopeSignal = "REVERSAL_BUY"
	ReversalSell SlopeSignal = "REVERSAL_SELL"
	NoSignal     SlopeSignal = "NEUTRAL"
)

// Direction maps a ladder class onto BUY, SELL or NEUTRAL
func (s SlopeSignal) Direction() Direction {
	switch s {
	case StrongBuy, BuySignal, WeakBuy, ReversalBuy:
		return Buy
	case StrongSell, SellSignal, WeakSell, ReversalSell:
		return Sell
	default:
		return Neutral
	}
}

// Divergence between price and RSI over a short window
type Divergence string

const (
	NoDivergence      Divergence = ""
	BullishDivergence Divergence = "BULLISH_DIVERGENCE"
	BearishDivergence Divergence = "BEARISH_DIVERGENCE"
)
