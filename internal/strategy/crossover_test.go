package strategy

import (
	"strings"
	"testing"
	"time"

	"example.com/deltabot/config"
	"example.com/deltabot/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbol:      "BTCUSD",
		Interval:    "1m",
		CandleCount: 100,

		Strategy: "sma_crossover",

		SMAShortPeriod: 3,
		SMALongPeriod:  5,
		RSIPeriod:      14,
		RSIOversold:    30,
		RSIOverbought:  70,
		BBPeriod:       20,
		BBStdDev:       2,

		MinSignalStrength:    0.6,
		CooldownMinutes:      5,
		MaxConsecutiveLosses: 3,

		MaxPositionSize:  1000,
		StopLossPct:      2,
		TakeProfitPct:    3,
		MaxDailyLoss:     100,
		RiskPct:          1,
		MaxLeverage:      10,
		DrawdownLimit:    10,
		MaxOpenPositions: 5,

		TickIntervalSeconds: 5,
		ErrorBackoffAfter:   5,
	}
}

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func flatCandle(close float64) func(int) models.Candle {
	return func(i int) models.Candle {
		return models.Candle{
			Timestamp: time.Unix(int64(i)*60, 0),
			Open:      close,
			High:      close,
			Low:       close,
			Close:     close,
			Volume:    1000,
		}
	}
}

// riseFallCandles holds flat, then rises one point per candle, then falls.
func riseFallCandles(n, riseAt, fallAt int) []models.Candle {
	return generateTestCandles(n, func(i int) models.Candle {
		close := 100.0
		switch {
		case i >= fallAt:
			close = 100 + float64(fallAt-riseAt) - float64(i-fallAt+1)
		case i >= riseAt:
			close = 100 + float64(i-riseAt+1)
		}
		return models.Candle{
			Timestamp: time.Unix(int64(i)*60, 0),
			Open:      close,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    1000,
		}
	})
}

func TestCrossoverInsufficientData(t *testing.T) {
	s := NewCrossover(testConfig(), "BTCUSD")
	candles := generateTestCandles(5, flatCandle(100))

	sig := s.GenerateSignal(candles, s.ComputeIndicators(candles))

	if sig.Type != models.SignalHold {
		t.Errorf("signal = %v, want hold", sig.Type)
	}
	if sig.Strength != 0 || sig.Confidence != 0 {
		t.Errorf("strength/confidence = %v/%v, want 0/0", sig.Strength, sig.Confidence)
	}
	if !strings.Contains(sig.Reason, "insufficient data") {
		t.Errorf("reason = %q, want insufficient data", sig.Reason)
	}
}

func TestCrossoverFlatSeriesHolds(t *testing.T) {
	s := NewCrossover(testConfig(), "BTCUSD")
	candles := generateTestCandles(40, flatCandle(100))

	for end := 6; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		if sig.Type != models.SignalHold {
			t.Fatalf("signal at window %d = %v, want hold on flat series", end, sig.Type)
		}
	}
}

func TestCrossoverBuyAndSellAtKnownIndices(t *testing.T) {
	s := NewCrossover(testConfig(), "BTCUSD")
	candles := riseFallCandles(40, 10, 20)

	buyIdx, sellIdx := -1, -1
	var buySig, sellSig models.TradingSignal

	for end := 6; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		switch sig.Type {
		case models.SignalBuy:
			if buyIdx == -1 {
				buyIdx = end - 1
				buySig = sig
			}
		case models.SignalSell:
			if sellIdx == -1 {
				sellIdx = end - 1
				sellSig = sig
			}
		}
	}

	// The short SMA crosses the long SMA on the first rising candle and
	// back down two candles into the decline.
	if buyIdx != 10 {
		t.Errorf("first buy at index %d, want 10", buyIdx)
	}
	if sellIdx != 22 {
		t.Errorf("first sell at index %d, want 22", sellIdx)
	}
	if buySig.Strength <= 0 {
		t.Errorf("buy strength = %v, want > 0", buySig.Strength)
	}
	if sellSig.Strength <= 0 {
		t.Errorf("sell strength = %v, want > 0", sellSig.Strength)
	}
	if !strings.Contains(buySig.Reason, "bullish crossover") {
		t.Errorf("buy reason = %q", buySig.Reason)
	}
	if !strings.Contains(sellSig.Reason, "bearish crossover") {
		t.Errorf("sell reason = %q", sellSig.Reason)
	}
}

func TestCrossoverStopAndTakeSides(t *testing.T) {
	s := NewCrossover(testConfig(), "BTCUSD")
	candles := riseFallCandles(40, 10, 20)

	window := candles[:11] // buy fires here
	sig := s.GenerateSignal(window, s.ComputeIndicators(window))
	if sig.Type != models.SignalBuy {
		t.Fatalf("signal = %v, want buy", sig.Type)
	}
	if sig.StopLoss == nil || sig.TakeProfit == nil {
		t.Fatal("buy signal missing stop or take level")
	}
	if *sig.StopLoss >= sig.Price {
		t.Errorf("stop loss %v not below entry %v", *sig.StopLoss, sig.Price)
	}
	if *sig.TakeProfit <= sig.Price {
		t.Errorf("take profit %v not above entry %v", *sig.TakeProfit, sig.Price)
	}
}

func TestCrossoverBoundsAlwaysRespected(t *testing.T) {
	s := NewCrossover(testConfig(), "BTCUSD")
	candles := riseFallCandles(60, 5, 25)

	for end := 1; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		if sig.Strength < 0 || sig.Strength > 1 {
			t.Fatalf("strength %v out of [0,1] at window %d", sig.Strength, end)
		}
		if sig.Confidence < 0 || sig.Confidence > 1 {
			t.Fatalf("confidence %v out of [0,1] at window %d", sig.Confidence, end)
		}
	}
}
