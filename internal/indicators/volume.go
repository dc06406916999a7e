package indicators

import (
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const (
	volumeLookback      = 10
	highVolumeThreshold = 1.5
)

// VolumeAnalysis compares the latest bar volume with the recent average.
type VolumeAnalysis struct {
	Current float64
	Average float64
	Ratio   float64
	IsHigh  bool
}

// AnalyzeVolume averages the last ten bars (current included) and flags the
// current bar as high volume above 1.5x that average.
func AnalyzeVolume(data []types.OHLCV) VolumeAnalysis {
	if len(data) == 0 {
		return VolumeAnalysis{}
	}

	start := len(data) - volumeLookback
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, b := range data[start:] {
		sum += b.Volume
	}
	avg := sum / float64(len(data)-start)
	current := data[len(data)-1].Volume

	va := VolumeAnalysis{Current: current, Average: avg}
	if avg > 0 {
		va.Ratio = current / avg
		va.IsHigh = current > avg*highVolumeThreshold
	}
	return va
}
