package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/deltabot/config"
	"example.com/deltabot/internal/risk"
	"example.com/deltabot/internal/strategy"
	"example.com/deltabot/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbol:      "BTCUSD",
		Interval:    "1m",
		CandleCount: 100,

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

		// high enough that the limiter never stalls the tests
		OrdersPerSecond: 100,
	}
}

type fakeMarket struct {
	candles []models.Candle
	err     error
}

func (f *fakeMarket) GetCandles(context.Context, string, string, int) ([]models.Candle, error) {
	return f.candles, f.err
}

type fakeAccount struct {
	balance   float64
	positions []models.Position
}

func (f *fakeAccount) GetBalance(context.Context) (float64, error) {
	return f.balance, nil
}

func (f *fakeAccount) GetOpenPositions(context.Context) ([]models.Position, error) {
	return f.positions, nil
}

type placedOrder struct {
	symbol string
	side   models.SignalType
	size   float64
}

type fakeOrders struct {
	placed []placedOrder
}

func (f *fakeOrders) PlaceOrder(_ context.Context, symbol string, side models.SignalType, size float64) (*models.OrderResult, error) {
	f.placed = append(f.placed, placedOrder{symbol: symbol, side: side, size: size})
	return &models.OrderResult{OrderID: "test-1", FillPrice: 100}, nil
}

// stubStrategy emits a fixed signal and never gates it.
type stubStrategy struct {
	sig   models.TradingSignal
	state *strategy.State
}

func (s *stubStrategy) Name() string   { return "stub" }
func (s *stubStrategy) Symbol() string { return "BTCUSD" }

func (s *stubStrategy) ComputeIndicators([]models.Candle) strategy.IndicatorSet { return nil }

func (s *stubStrategy) GenerateSignal([]models.Candle, strategy.IndicatorSet) models.TradingSignal {
	return s.sig
}

func (s *stubStrategy) ShouldExecute(sig models.TradingSignal, _ time.Time) bool {
	return sig.Type.IsActionable()
}

func (s *stubStrategy) State() *strategy.State { return s.state }

func newTestBot(t *testing.T, cfg *config.Config, sig models.TradingSignal, account *fakeAccount) (*Bot, *fakeOrders, *stubStrategy) {
	t.Helper()

	riskManager := risk.NewManager(cfg, account)
	if err := riskManager.InitializeDailyTracking(context.Background()); err != nil {
		t.Fatalf("InitializeDailyTracking() error = %v", err)
	}

	orders := &fakeOrders{}
	strat := &stubStrategy{sig: sig, state: &strategy.State{}}
	candles := []models.Candle{{Timestamp: time.Now(), Close: 100, Volume: 1000}}

	b := New(cfg, Deps{
		Candles:    &fakeMarket{candles: candles},
		Account:    account,
		Orders:     orders,
		Risk:       riskManager,
		Strategies: []strategy.Strategy{strat},
	})
	return b, orders, strat
}

func TestRunIterationNilOnEmptyCandles(t *testing.T) {
	cfg := testConfig()
	b := New(cfg, Deps{Candles: &fakeMarket{}})
	strat := &stubStrategy{state: &strategy.State{}}

	sig, err := b.RunIteration(context.Background(), strat)
	if err != nil {
		t.Fatalf("RunIteration() error = %v", err)
	}
	if sig != nil {
		t.Errorf("RunIteration() = %+v, want nil on empty candle window", sig)
	}
}

func TestTickExecutesAllowedTrade(t *testing.T) {
	cfg := testConfig()
	sig := models.TradingSignal{Type: models.SignalBuy, Strength: 0.9, Confidence: 0.9, Price: 100}
	b, orders, strat := newTestBot(t, cfg, sig, &fakeAccount{balance: 10000})

	if err := b.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(orders.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(orders.placed))
	}
	got := orders.placed[0]
	if got.side != models.SignalBuy || got.symbol != "BTCUSD" {
		t.Errorf("order = %+v", got)
	}
	// sizing: 0.81 of the 50-unit base, then the 10%-of-balance cap
	if got.size < 9.999 || got.size > 10.001 {
		t.Errorf("order size = %v, want 10", got.size)
	}
	if strat.state.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", strat.state.TotalTrades)
	}
	if strat.state.LastExecutionTime.IsZero() {
		t.Error("LastExecutionTime not recorded")
	}
}

func TestTickBlockedTradePlacesNoOrder(t *testing.T) {
	cfg := testConfig()
	sig := models.TradingSignal{Type: models.SignalBuy, Strength: 0.9, Confidence: 0.9, Price: 100}
	b, orders, strat := newTestBot(t, cfg, sig, &fakeAccount{balance: 10000})

	b.deps.Risk.TriggerEmergencyStop()

	// A risk-gate rejection is a normal outcome, not a tick error.
	if err := b.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(orders.placed) != 0 {
		t.Errorf("placed %d orders, want 0 under emergency stop", len(orders.placed))
	}
	if strat.state.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0", strat.state.TotalTrades)
	}
}

func TestTickHoldSignalNotExecuted(t *testing.T) {
	cfg := testConfig()
	sig := models.TradingSignal{Type: models.SignalHold, Strength: 0.9, Confidence: 0.9, Price: 100}
	b, orders, _ := newTestBot(t, cfg, sig, &fakeAccount{balance: 10000})

	if err := b.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(orders.placed) != 0 {
		t.Errorf("placed %d orders, want 0 for hold", len(orders.placed))
	}
}

func TestTickClosesPositionPastStopLoss(t *testing.T) {
	cfg := testConfig()
	account := &fakeAccount{
		balance: 10000,
		positions: []models.Position{
			{Symbol: "BTCUSD", Size: 1, EntryPrice: 100, MarkPrice: 97},
		},
	}
	sig := models.TradingSignal{Type: models.SignalHold}
	b, orders, _ := newTestBot(t, cfg, sig, account)

	if err := b.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(orders.placed) != 1 {
		t.Fatalf("placed %d orders, want 1 close", len(orders.placed))
	}
	got := orders.placed[0]
	if got.side != models.SignalCloseLong {
		t.Errorf("close side = %v, want close_long", got.side)
	}
	if got.size != 1 {
		t.Errorf("close size = %v, want 1", got.size)
	}
}

func TestTickReportsStrategyError(t *testing.T) {
	cfg := testConfig()
	b := New(cfg, Deps{
		Candles:    &fakeMarket{err: errors.New("feed down")},
		Account:    &fakeAccount{balance: 10000},
		Orders:     &fakeOrders{},
		Risk:       risk.NewManager(cfg, &fakeAccount{balance: 10000}),
		Strategies: []strategy.Strategy{&stubStrategy{state: &strategy.State{}}},
	})

	if err := b.Tick(context.Background()); err == nil {
		t.Error("Tick() error = nil, want candle fetch failure surfaced")
	}
}

func TestNextSleepRegularCadence(t *testing.T) {
	b := New(testConfig(), Deps{})
	bo := b.newBackoff()

	if got := b.nextSleep(time.Second, bo); got != 4*time.Second {
		t.Errorf("nextSleep(1s) = %v, want 4s", got)
	}
	// A slow tick never drops the sleep below the one-second floor.
	if got := b.nextSleep(10*time.Second, bo); got != time.Second {
		t.Errorf("nextSleep(10s) = %v, want 1s floor", got)
	}
}

func TestNextSleepErrorBackoffSchedule(t *testing.T) {
	b := New(testConfig(), Deps{})
	bo := b.newBackoff()
	b.consecutiveErrors = b.cfg.ErrorBackoffAfter + 1

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second, // capped
	}
	for i, w := range want {
		if got := b.nextSleep(0, bo); got != w {
			t.Fatalf("backoff step %d = %v, want %v", i, got, w)
		}
	}

	// Recovery resets both the counter and the schedule.
	b.consecutiveErrors = 0
	bo.Reset()
	if got := b.nextSleep(0, bo); got != 5*time.Second {
		t.Errorf("nextSleep after reset = %v, want 5s", got)
	}
}

func TestBlockCheckLabel(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"emergency stop is active", "emergency_stop"},
		{"daily loss limit reached: -150.00", "daily_loss"},
		{"maximum drawdown reached: 12.00%", "drawdown"},
		{"maximum number of positions reached: 5", "max_positions"},
		{"portfolio risk level is critical", "critical_risk"},
		{"position size too large: 2000.00 > 1000.00", "position_size"},
		{"adding position would exceed portfolio exposure limit", "exposure"},
		{"error in risk check: boom", "other"},
	}

	for _, tt := range tests {
		if got := blockCheckLabel(tt.reason); got != tt.want {
			t.Errorf("blockCheckLabel(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
