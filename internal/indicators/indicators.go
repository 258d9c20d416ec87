// Package indicators holds the pure series math every strategy builds on.
// All transforms take a full series and return a slice of the same length,
// with math.NaN() at every index where the trailing window has not filled
// yet. Downstream code must treat NaN as "no contribution", never as zero.
package indicators

import (
	"math"

	"github.com/montanaflynn/stats"

	"example.com/deltabot/models"
)

// Defined reports whether an indicator value is usable at this index.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Closes extracts the close column from a candle sequence.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume column from a candle sequence.
func Volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SMA computes the simple moving average over a trailing window.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		mean, err := stats.Mean(values[i-period+1 : i+1])
		if err != nil {
			continue
		}
		out[i] = mean
	}
	return out
}

// RollingStdDev computes the trailing sample standard deviation.
func RollingStdDev(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sd, err := stats.StandardDeviationSample(values[i-period+1 : i+1])
		if err != nil {
			continue
		}
		out[i] = sd
	}
	return out
}

// RSI computes the relative strength index using a plain trailing-window
// mean of gains and losses. This is intentionally NOT Wilder's smoothed
// RSI: the signal thresholds downstream are tuned against the simple
// variant, so it must stay bit-for-bit as is. A window with zero average
// loss yields 100 (all gains); a completely flat window stays undefined.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period+1 {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(values); i++ {
		avgGain, err := stats.Mean(gains[i-period+1 : i+1])
		if err != nil {
			continue
		}
		avgLoss, err := stats.Mean(losses[i-period+1 : i+1])
		if err != nil {
			continue
		}
		if avgLoss == 0 {
			if avgGain == 0 {
				continue // flat window, undefined
			}
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - (100.0 / (1.0 + rs))
	}
	return out
}

// BollingerBands returns upper, middle and lower bands where the middle
// band is SMA(period) and the outer bands sit k standard deviations away.
func BollingerBands(values []float64, period int, k float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	sd := RollingStdDev(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	for i := range values {
		if Defined(middle[i]) && Defined(sd[i]) {
			upper[i] = middle[i] + sd[i]*k
			lower[i] = middle[i] - sd[i]*k
		}
	}
	return upper, middle, lower
}

// PctChange computes the fractional change over lag steps.
func PctChange(values []float64, lag int) []float64 {
	out := nanSlice(len(values))
	if lag <= 0 {
		return out
	}
	for i := lag; i < len(values); i++ {
		if values[i-lag] == 0 {
			continue
		}
		out[i] = (values[i] - values[i-lag]) / values[i-lag]
	}
	return out
}

// Diff computes the step-to-step difference of a series, propagating NaN.
func Diff(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if Defined(values[i]) && Defined(values[i-1]) {
			out[i] = values[i] - values[i-1]
		}
	}
	return out
}

// Slope fits a least-squares line through the defined points of the series
// and returns its per-step slope. ok is false when fewer than two points
// are defined.
func Slope(values []float64) (slope float64, ok bool) {
	var pts []stats.Coordinate
	for i, v := range values {
		if Defined(v) {
			pts = append(pts, stats.Coordinate{X: float64(i), Y: v})
		}
	}
	if len(pts) < 2 {
		return 0, false
	}
	fitted, err := stats.LinearRegression(pts)
	if err != nil || len(fitted) < 2 {
		return 0, false
	}
	first, last := fitted[0], fitted[len(fitted)-1]
	if last.X == first.X {
		return 0, false
	}
	return (last.Y - first.Y) / (last.X - first.X), true
}

// ReturnsVolatility is the sample standard deviation of one-step returns
// over the given closes. Returns NaN when there are not enough points.
func ReturnsVolatility(closes []float64) float64 {
	rets := PctChange(closes, 1)
	var defined []float64
	for _, r := range rets {
		if Defined(r) {
			defined = append(defined, r)
		}
	}
	if len(defined) < 2 {
		return math.NaN()
	}
	sd, err := stats.StandardDeviationSample(defined)
	if err != nil {
		return math.NaN()
	}
	return sd
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
