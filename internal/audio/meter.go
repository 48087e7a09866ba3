package audio

import "math"

// Bins [meterLow, meterHigh) cover the speech band of the analyser output.
const (
	meterLow   = 5
	meterHigh  = 60
	meterScale = 80.0
	meterKeep  = 0.3
	meterCurve = 0.8
)

// Meter converts frequency frames into a 0..1 loudness level.
// The zero value is ready to use.
type Meter struct {
	prev float64
}

// Sample folds one frame into the meter and returns the displayed level.
func (m *Meter) Sample(bins []uint8) float64 {
	lo, hi := meterLow, meterHigh
	if hi > len(bins) {
		hi = len(bins)
	}

	var level float64
	if lo < hi {
		var sum float64
		for _, b := range bins[lo:hi] {
			v := float64(b)
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(hi-lo))
		level = math.Min(1, math.Max(0, rms/meterScale))
	}

	smoothed := m.prev*meterKeep + level*(1-meterKeep)
	m.prev = smoothed
	return math.Pow(smoothed, meterCurve)
}

// Reset drops the smoothing history.
func (m *Meter) Reset() { m.prev = 0 }

// LevelFrame builds a flat frame that Sample reads as the linear level v,
// for sources that report a level instead of a spectrum.
func LevelFrame(v float64) []uint8 {
	v = math.Min(1, math.Max(0, v))
	frame := make([]uint8, meterHigh)
	b := uint8(math.Round(v * meterScale))
	for i := range frame {
		frame[i] = b
	}
	return frame
}
