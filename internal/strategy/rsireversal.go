package strategy

import (
	"fmt"
	"math"
	"time"

	"example.com/deltabot/config"
	"example.com/deltabot/internal/indicators"
	"example.com/deltabot/models"
)

const (
	trendSMAPeriod      = 20
	reversalVolumePeriod = 10
)

// RSIIndicators is the derived series set of the RSI reversal strategy.
type RSIIndicators struct {
	RSI            []float64
	RSIChange      []float64
	TrendSMA       []float64
	BBUpper        []float64
	BBLower        []float64
	PriceMomentum3 []float64
	VolumeRatio    []float64
}

func (*RSIIndicators) indicatorSet() {}

// RSIReversal buys recoveries out of oversold territory and sells
// declines out of overbought territory, with trend, momentum, volume and
// Bollinger extremity shaping the signal.
type RSIReversal struct {
	core
}

// NewRSIReversal builds an RSI oversold/overbought strategy for one instrument.
func NewRSIReversal(cfg *config.Config, symbol string) *RSIReversal {
	return &RSIReversal{core: newCore("rsi_reversal", symbol, cfg)}
}

// ComputeIndicators derives the reversal series from the candle window.
func (s *RSIReversal) ComputeIndicators(candles []models.Candle) IndicatorSet {
	closes := indicators.Closes(candles)
	volumes := indicators.Volumes(candles)

	rsi := indicators.RSI(closes, s.cfg.RSIPeriod)
	bbUpper, _, bbLower := indicators.BollingerBands(closes, s.cfg.BBPeriod, s.cfg.BBStdDev)

	volumeSMA := indicators.SMA(volumes, reversalVolumePeriod)
	volumeRatio := make([]float64, len(candles))
	for i := range candles {
		if indicators.Defined(volumeSMA[i]) && volumeSMA[i] > 0 {
			volumeRatio[i] = volumes[i] / volumeSMA[i]
		} else {
			volumeRatio[i] = math.NaN()
		}
	}

	return &RSIIndicators{
		RSI:            rsi,
		RSIChange:      indicators.Diff(rsi),
		TrendSMA:       indicators.SMA(closes, trendSMAPeriod),
		BBUpper:        bbUpper,
		BBLower:        bbLower,
		PriceMomentum3: indicators.PctChange(closes, 3),
		VolumeRatio:    volumeRatio,
	}
}

// GenerateSignal produces exactly one signal for the latest candle.
func (s *RSIReversal) GenerateSignal(candles []models.Candle, set IndicatorSet) models.TradingSignal {
	if len(candles) < maxInt(s.cfg.RSIPeriod, trendSMAPeriod)+1 {
		return s.holdSignal(candles, "insufficient data for RSI calculation")
	}
	ind := set.(*RSIIndicators)

	i := len(candles) - 1
	price := candles[i].Close
	rsi := ind.RSI[i]
	prevRSI := ind.RSI[i-1]
	change := ind.RSIChange[i]

	sigType := models.SignalHold
	reason := "no RSI signal"

	switch {
	// Crossing back up through the oversold threshold with momentum.
	case defined(prevRSI, rsi, change) && prevRSI < s.cfg.RSIOversold && rsi >= s.cfg.RSIOversold && change > 0:
		sigType = models.SignalBuy
		reason = fmt.Sprintf("RSI recovery from oversold: %.1f", rsi)
	// Still deep oversold but already turning up hard.
	case defined(rsi, change) && rsi < s.cfg.RSIOversold && change > 1:
		sigType = models.SignalBuy
		reason = fmt.Sprintf("RSI oversold with upward momentum: %.1f", rsi)
	// Crossing back down through the overbought threshold with momentum.
	case defined(prevRSI, rsi, change) && prevRSI > s.cfg.RSIOverbought && rsi <= s.cfg.RSIOverbought && change < 0:
		sigType = models.SignalSell
		reason = fmt.Sprintf("RSI decline from overbought: %.1f", rsi)
	// Still deep overbought but already turning down hard.
	case defined(rsi, change) && rsi > s.cfg.RSIOverbought && change < -1:
		sigType = models.SignalSell
		reason = fmt.Sprintf("RSI overbought with downward momentum: %.1f", rsi)
	}

	strength := s.signalStrength(candles, ind, i, sigType)
	confidence := s.confidence(candles, ind, i)

	if sigType != models.SignalHold {
		aboveSMA := indicators.Defined(ind.TrendSMA[i]) && price > ind.TrendSMA[i]
		belowSMA := indicators.Defined(ind.TrendSMA[i]) && price < ind.TrendSMA[i]

		if sigType == models.SignalBuy && !aboveSMA {
			strength *= 0.8
			reason += " (against trend)"
		}
		if sigType == models.SignalSell && !belowSMA {
			strength *= 0.8
			reason += " (against trend)"
		}

		if vr := ind.VolumeRatio[i]; indicators.Defined(vr) && vr < 0.8 {
			strength *= 0.9
			reason += " (low volume)"
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

// signalStrength sums capped bonus terms: threshold depth, RSI momentum,
// trend agreement, short price momentum, volume and Bollinger extremity.
func (s *RSIReversal) signalStrength(candles []models.Candle, ind *RSIIndicators, i int, sigType models.SignalType) float64 {
	rsi := ind.RSI[i]
	if !indicators.Defined(rsi) {
		return 0
	}

	price := candles[i].Close
	change := ind.RSIChange[i]
	momentum := ind.PriceMomentum3[i]
	aboveSMA := indicators.Defined(ind.TrendSMA[i]) && price > ind.TrendSMA[i]
	belowSMA := indicators.Defined(ind.TrendSMA[i]) && price < ind.TrendSMA[i]

	strength := 0.0

	switch sigType {
	case models.SignalBuy:
		if rsi <= s.cfg.RSIOversold {
			strength += math.Min((s.cfg.RSIOversold-rsi)/s.cfg.RSIOversold, 0.4)
		}
		if indicators.Defined(change) && change > 0 {
			strength += math.Min(change/10, 0.2)
		}
		if aboveSMA {
			strength += 0.1
		}
		if indicators.Defined(momentum) && momentum > 0 {
			strength += math.Min(momentum*5, 0.15)
		}
	case models.SignalSell:
		if rsi >= s.cfg.RSIOverbought {
			strength += math.Min((rsi-s.cfg.RSIOverbought)/(100-s.cfg.RSIOverbought), 0.4)
		}
		if indicators.Defined(change) && change < 0 {
			strength += math.Min(math.Abs(change)/10, 0.2)
		}
		if belowSMA {
			strength += 0.1
		}
		if indicators.Defined(momentum) && momentum < 0 {
			strength += math.Min(math.Abs(momentum)*5, 0.15)
		}
	}

	if vr := ind.VolumeRatio[i]; indicators.Defined(vr) && vr > 1.2 {
		strength += 0.1
	}

	if sigType == models.SignalBuy && indicators.Defined(ind.BBLower[i]) && price < ind.BBLower[i] {
		strength += 0.1
	} else if sigType == models.SignalSell && indicators.Defined(ind.BBUpper[i]) && price > ind.BBUpper[i] {
		strength += 0.1
	}

	return clamp01(strength)
}

// confidence starts at 0.5 and shifts with RSI trend clarity, price/RSI
// agreement and the recent volatility regime.
func (s *RSIReversal) confidence(candles []models.Candle, ind *RSIIndicators, i int) float64 {
	confidence := 0.5

	if i >= 10 {
		if slope, ok := indicators.Slope(ind.RSI[i-10 : i+1]); ok && math.Abs(slope) > 0.5 {
			confidence += 0.15
		}

		priceChange := candles[i].Close - candles[i-10].Close
		if defined(ind.RSI[i], ind.RSI[i-10]) {
			rsiChange := ind.RSI[i] - ind.RSI[i-10]
			if (priceChange > 0 && rsiChange > 0) || (priceChange < 0 && rsiChange < 0) {
				confidence += 0.1
			}
		}
	}

	if i >= 20 {
		vol := indicators.ReturnsVolatility(indicators.Closes(candles[i-20 : i+1]))
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

func defined(values ...float64) bool {
	for _, v := range values {
		if !indicators.Defined(v) {
			return false
		}
	}
	return true
}
