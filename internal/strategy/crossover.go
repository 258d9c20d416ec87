package strategy

import (
	"fmt"
	"math"
	"time"

	"example.com/deltabot/config"
	"example.com/deltabot/internal/indicators"
	"example.com/deltabot/models"
)

const crossoverVolumePeriod = 10

// CrossoverIndicators is the derived series set of the SMA crossover
// strategy. All slices are candle-aligned with NaN before windows fill.
type CrossoverIndicators struct {
	SMAShort    []float64
	SMALong     []float64
	SMADiff     []float64
	RSI         []float64
	PriceChange []float64
	VolumeMA    []float64
}

func (*CrossoverIndicators) indicatorSet() {}

// Crossover trades sign changes of short SMA minus long SMA, with RSI,
// momentum and volume shaping the signal strength.
type Crossover struct {
	core
}

// NewCrossover builds an SMA crossover strategy for one instrument.
func NewCrossover(cfg *config.Config, symbol string) *Crossover {
	return &Crossover{core: newCore("sma_crossover", symbol, cfg)}
}

// ComputeIndicators derives the crossover series from the candle window.
func (s *Crossover) ComputeIndicators(candles []models.Candle) IndicatorSet {
	closes := indicators.Closes(candles)

	set := &CrossoverIndicators{
		SMAShort:    indicators.SMA(closes, s.cfg.SMAShortPeriod),
		SMALong:     indicators.SMA(closes, s.cfg.SMALongPeriod),
		RSI:         indicators.RSI(closes, s.cfg.RSIPeriod),
		PriceChange: indicators.PctChange(closes, 1),
		VolumeMA:    indicators.SMA(indicators.Volumes(candles), crossoverVolumePeriod),
	}

	set.SMADiff = make([]float64, len(closes))
	for i := range closes {
		if indicators.Defined(set.SMAShort[i]) && indicators.Defined(set.SMALong[i]) {
			set.SMADiff[i] = set.SMAShort[i] - set.SMALong[i]
		} else {
			set.SMADiff[i] = math.NaN()
		}
	}
	return set
}

// GenerateSignal produces exactly one signal for the latest candle.
func (s *Crossover) GenerateSignal(candles []models.Candle, set IndicatorSet) models.TradingSignal {
	if len(candles) < maxInt(s.cfg.SMAShortPeriod, s.cfg.SMALongPeriod)+1 {
		return s.holdSignal(candles, "insufficient data for SMA calculation")
	}
	ind := set.(*CrossoverIndicators)

	i := len(candles) - 1
	price := candles[i].Close

	diff := ind.SMADiff[i]
	prev := ind.SMADiff[i-1]

	sigType := models.SignalHold
	reason := "no crossover signal"
	if indicators.Defined(diff) && indicators.Defined(prev) {
		switch {
		case diff > 0 && prev <= 0:
			sigType = models.SignalBuy
			reason = fmt.Sprintf("bullish crossover: SMA%d crossed above SMA%d",
				s.cfg.SMAShortPeriod, s.cfg.SMALongPeriod)
		case diff < 0 && prev >= 0:
			sigType = models.SignalSell
			reason = fmt.Sprintf("bearish crossover: SMA%d crossed below SMA%d",
				s.cfg.SMAShortPeriod, s.cfg.SMALongPeriod)
		}
	}

	strength := s.signalStrength(candles, ind, i)
	confidence := s.confidence(candles, ind, i)

	// An adverse RSI extreme weakens the signal but never vetoes it.
	rsi := ind.RSI[i]
	if indicators.Defined(rsi) {
		if sigType == models.SignalBuy && rsi > s.cfg.RSIOverbought {
			strength *= 0.7
			reason += fmt.Sprintf(" (RSI overbought: %.1f)", rsi)
		} else if sigType == models.SignalSell && rsi < s.cfg.RSIOversold {
			strength *= 0.7
			reason += fmt.Sprintf(" (RSI oversold: %.1f)", rsi)
		}
	}

	stop, take := s.stopTakeLevels(price, sigType)

	return models.TradingSignal{
		Type:       sigType,
		Strength:   strength,
		Confidence: confidence,
		Price:      price,
		Timestamp:  time.Now(),
		Reason:     reason,
		StopLoss:   stop,
		TakeProfit: take,
	}
}

// signalStrength sums capped bonus terms: SMA separation, RSI reading,
// price momentum and volume confirmation. The per-term caps are tuned
// values and stay as they are even though the sum can saturate early.
func (s *Crossover) signalStrength(candles []models.Candle, ind *CrossoverIndicators, i int) float64 {
	smaShort := ind.SMAShort[i]
	smaLong := ind.SMALong[i]
	price := candles[i].Close
	if !indicators.Defined(smaShort) || !indicators.Defined(smaLong) {
		return 0
	}

	strength := 0.0

	smaDiffPct := math.Abs(smaShort-smaLong) / price * 100
	strength += math.Min(smaDiffPct/2.0, 0.4)

	rsi := ind.RSI[i]
	if indicators.Defined(rsi) {
		switch {
		case rsi < s.cfg.RSIOversold:
			strength += 0.2
		case rsi > s.cfg.RSIOverbought:
			strength += 0.2
		case rsi >= 40 && rsi <= 60:
			strength += 0.1
		}
	}

	if pc := ind.PriceChange[i]; indicators.Defined(pc) {
		strength += math.Min(math.Abs(pc)*10, 0.2)
	}

	if volMA := ind.VolumeMA[i]; indicators.Defined(volMA) && candles[i].Volume > volMA*1.2 {
		strength += 0.1
	}

	return clamp01(strength)
}

// confidence starts at 0.5 and shifts with trend consistency of the SMA
// spread and the recent volatility regime.
func (s *Crossover) confidence(candles []models.Candle, ind *CrossoverIndicators, i int) float64 {
	confidence := 0.5

	if i >= 5 {
		defined, positive, negative := 0, 0, 0
		for j := i - 5; j <= i; j++ {
			d := ind.SMADiff[j]
			if !indicators.Defined(d) {
				continue
			}
			defined++
			if d > 0 {
				positive++
			} else if d < 0 {
				negative++
			}
		}
		if defined > 0 && (positive == defined || negative == defined) {
			confidence += 0.2
		}
	}

	if i >= 10 {
		vol := indicators.ReturnsVolatility(indicators.Closes(candles[i-10 : i+1]))
		if indicators.Defined(vol) {
			if vol < 0.02 {
				confidence += 0.1
			} else if vol > 0.05 {
				confidence -= 0.1
			}
		}
	}

	return clamp01(confidence)
}
