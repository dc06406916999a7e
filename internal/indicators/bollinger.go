package indicators

import "math"

// BollingerBands represents the Bollinger Bands indicator
type BollingerBands struct {
	period         int
	stdDevMultiple float64
}

// Bands is a single Bollinger reading. Percent is where the last price sits
// between the lower (0) and upper (100) band.
type Bands struct {
	Upper   float64
	Middle  float64
	Lower   float64
	Percent float64
}

// NewBollingerBands creates a new BollingerBands instance with the given period and standard deviation multiplier
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{
		period:         period,
		stdDevMultiple: stdDev,
	}
}

// Calculate computes the bands over the trailing period prices
func (bb *BollingerBands) Calculate(prices []float64) (Bands, error) {
	if bb.period <= 0 || len(prices) < bb.period {
		return Bands{}, ErrInsufficientData
	}

	recent := prices[len(prices)-bb.period:]
	middle, _ := SMAOf(recent, bb.period)

	variance := 0.0
	for _, p := range recent {
		variance += (p - middle) * (p - middle)
	}
	stdDev := math.Sqrt(variance / float64(bb.period))

	b := Bands{
		Upper:  middle + bb.stdDevMultiple*stdDev,
		Middle: middle,
		Lower:  middle - bb.stdDevMultiple*stdDev,
	}

	current := prices[len(prices)-1]
	if b.Upper == b.Lower {
		b.Percent = 50
	} else {
		b.Percent = (current - b.Lower) / (b.Upper - b.Lower) * 100
	}
	return b, nil
}
