package strategy

import (
	"strings"
	"testing"
	"time"

	"example.com/deltabot/models"
)

// trendCandles moves the close by step percent per candle: down through
// turnAt, then up (negate step for the mirror image).
func trendCandles(n, turnAt int, step float64) []models.Candle {
	price := 100.0
	return generateTestCandles(n, func(i int) models.Candle {
		if i > 0 {
			if i <= turnAt {
				price *= 1 - step
			} else {
				price *= 1 + step
			}
		}
		return models.Candle{
			Timestamp: time.Unix(int64(i)*60, 0),
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    1000,
		}
	})
}

func TestRSIReversalInsufficientData(t *testing.T) {
	s := NewRSIReversal(testConfig(), "BTCUSD")
	candles := generateTestCandles(20, flatCandle(100))

	sig := s.GenerateSignal(candles, s.ComputeIndicators(candles))

	if sig.Type != models.SignalHold {
		t.Errorf("signal = %v, want hold", sig.Type)
	}
	if !strings.Contains(sig.Reason, "insufficient data") {
		t.Errorf("reason = %q, want insufficient data", sig.Reason)
	}
}

func TestRSIReversalBuysOversoldTurn(t *testing.T) {
	s := NewRSIReversal(testConfig(), "BTCUSD")
	// 2% down per candle through index 24, then up. The steady decline pins
	// RSI at zero; the first up candle lifts it by far more than one point.
	candles := trendCandles(30, 24, 0.02)

	buyIdx := -1
	var buySig models.TradingSignal
	for end := 21; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		if sig.Type == models.SignalBuy && buyIdx == -1 {
			buyIdx = end - 1
			buySig = sig
		}
		if sig.Type == models.SignalSell {
			t.Fatalf("unexpected sell at window %d", end)
		}
	}

	if buyIdx != 25 {
		t.Fatalf("first buy at index %d, want 25 (first up candle)", buyIdx)
	}
	if !strings.Contains(buySig.Reason, "oversold") {
		t.Errorf("buy reason = %q, want oversold mention", buySig.Reason)
	}
	// Price is still far below the trend SMA, so the against-trend penalty
	// applies but must not zero the signal out.
	if !strings.Contains(buySig.Reason, "against trend") {
		t.Errorf("buy reason = %q, want against-trend note", buySig.Reason)
	}
	if buySig.Strength <= 0 || buySig.Strength > 1 {
		t.Errorf("buy strength = %v, want in (0,1]", buySig.Strength)
	}
	if buySig.StopLoss == nil || *buySig.StopLoss >= buySig.Price {
		t.Error("buy stop loss missing or not below entry")
	}
	if buySig.TakeProfit == nil || *buySig.TakeProfit <= buySig.Price {
		t.Error("buy take profit missing or not above entry")
	}
}

func TestRSIReversalSellsOverboughtTurn(t *testing.T) {
	s := NewRSIReversal(testConfig(), "BTCUSD")
	// Mirror image: 2% up per candle through index 24, then down.
	candles := trendCandles(30, 24, -0.02)

	sellIdx := -1
	var sellSig models.TradingSignal
	for end := 21; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		if sig.Type == models.SignalSell && sellIdx == -1 {
			sellIdx = end - 1
			sellSig = sig
		}
		if sig.Type == models.SignalBuy {
			t.Fatalf("unexpected buy at window %d", end)
		}
	}

	if sellIdx != 25 {
		t.Fatalf("first sell at index %d, want 25 (first down candle)", sellIdx)
	}
	if !strings.Contains(sellSig.Reason, "overbought") {
		t.Errorf("sell reason = %q, want overbought mention", sellSig.Reason)
	}
	if sellSig.Strength <= 0 || sellSig.Strength > 1 {
		t.Errorf("sell strength = %v, want in (0,1]", sellSig.Strength)
	}
	if sellSig.StopLoss == nil || *sellSig.StopLoss <= sellSig.Price {
		t.Error("sell stop loss missing or not above entry")
	}
	if sellSig.TakeProfit == nil || *sellSig.TakeProfit >= sellSig.Price {
		t.Error("sell take profit missing or not below entry")
	}
}

func TestRSIReversalFlatSeriesHolds(t *testing.T) {
	s := NewRSIReversal(testConfig(), "BTCUSD")
	candles := generateTestCandles(40, flatCandle(100))

	for end := 21; end <= len(candles); end++ {
		window := candles[:end]
		sig := s.GenerateSignal(window, s.ComputeIndicators(window))
		if sig.Type != models.SignalHold {
			t.Fatalf("signal at window %d = %v, want hold on flat series", end, sig.Type)
		}
	}
}
