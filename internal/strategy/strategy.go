// Package strategy contains the signal-generation engine: the strategy
// contract, its two concrete variants and the per-strategy execution gate.
package strategy

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/config"
	"example.com/deltabot/models"
)

// IndicatorSet is the typed bundle of indicator series a strategy derives
// from a candle window. Each variant owns its own concrete set; the marker
// method keeps the set closed.
type IndicatorSet interface {
	indicatorSet()
}

// Strategy is the capability contract every trading strategy implements.
// ComputeIndicators and GenerateSignal are split so callers (and tests)
// can inspect the derived series independently of the decision logic.
type Strategy interface {
	Name() string
	Symbol() string
	ComputeIndicators(candles []models.Candle) IndicatorSet
	GenerateSignal(candles []models.Candle, set IndicatorSet) models.TradingSignal
	ShouldExecute(sig models.TradingSignal, now time.Time) bool
	State() *State
}

// State tracks one strategy's trading history. It is owned by exactly one
// strategy instance and mutated only after a trade outcome is known.
type State struct {
	LastSignal        *models.TradingSignal
	LastExecutionTime time.Time
	ConsecutiveLosses int
	ConsecutiveWins   int
	TotalTrades       int
	WinningTrades     int
	TotalPnL          float64
	PeakValue         float64
	MaxDrawdown       float64
}

// RecordExecution marks that a signal was acted on.
func (s *State) RecordExecution(now time.Time) {
	s.LastExecutionTime = now
	s.TotalTrades++
}

// RecordTradeOutcome updates streaks, PnL peak and drawdown once the
// result of a trade is known. A win resets the loss streak and vice versa.
func (s *State) RecordTradeOutcome(pnl float64) {
	s.TotalPnL += pnl

	if pnl > 0 {
		s.WinningTrades++
		s.ConsecutiveWins++
		s.ConsecutiveLosses = 0
	} else {
		s.ConsecutiveLosses++
		s.ConsecutiveWins = 0
	}

	if s.TotalPnL > s.PeakValue {
		s.PeakValue = s.TotalPnL
	}
	drawdown := (s.PeakValue - s.TotalPnL) / math.Max(s.PeakValue, 1)
	if drawdown > s.MaxDrawdown {
		s.MaxDrawdown = drawdown
	}
}

// WinRate returns the fraction of winning trades, or 0 before any trade.
func (s *State) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades)
}

// Reset clears all tracked history.
func (s *State) Reset() {
	*s = State{}
}

// core carries what both variants share: configuration, state and the
// execution gate. It replaces subclassing with plain embedding.
type core struct {
	name   string
	symbol string
	cfg    *config.Config
	state  *State
	logger zerolog.Logger
}

func newCore(name, symbol string, cfg *config.Config) core {
	return core{
		name:   name,
		symbol: symbol,
		cfg:    cfg,
		state:  &State{},
		logger: log.With().Str("component", "strategy").Str("strategy", name).Logger(),
	}
}

func (c *core) Name() string   { return c.name }
func (c *core) Symbol() string { return c.symbol }
func (c *core) State() *State  { return c.state }

// ShouldExecute is the execution eligibility gate. Every rejection is
// silent: the signal itself is untouched, the caller simply does not act.
func (c *core) ShouldExecute(sig models.TradingSignal, now time.Time) bool {
	if sig.Strength < c.cfg.MinSignalStrength {
		return false
	}
	if sig.Confidence < 0.5 {
		return false
	}
	if !c.state.LastExecutionTime.IsZero() {
		cooldown := time.Duration(c.cfg.CooldownMinutes) * time.Minute
		if now.Sub(c.state.LastExecutionTime) < cooldown {
			return false
		}
	}
	if c.state.ConsecutiveLosses >= c.cfg.MaxConsecutiveLosses {
		return false
	}
	return true
}

// holdSignal is the universal degenerate case for short candle windows.
func (c *core) holdSignal(candles []models.Candle, reason string) models.TradingSignal {
	price := 0.0
	if len(candles) > 0 {
		price = candles[len(candles)-1].Close
	}
	return models.TradingSignal{
		Type:       models.SignalHold,
		Strength:   0,
		Confidence: 0,
		Price:      price,
		Timestamp:  time.Now(),
		Reason:     reason,
	}
}

// stopTakeLevels derives stop-loss and take-profit prices on the correct
// side of the entry for the given direction.
func (c *core) stopTakeLevels(price float64, side models.SignalType) (stop, take *float64) {
	var sl, tp float64
	switch side {
	case models.SignalBuy:
		sl = price * (1 - c.cfg.StopLossPct/100)
		tp = price * (1 + c.cfg.TakeProfitPct/100)
	case models.SignalSell:
		sl = price * (1 + c.cfg.StopLossPct/100)
		tp = price * (1 - c.cfg.TakeProfitPct/100)
	default:
		return nil, nil
	}
	return &sl, &tp
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}

// New builds the strategy variant named in the configuration. Unknown
// names fall back to the SMA crossover, matching the original behavior.
func New(cfg *config.Config, symbol string) Strategy {
	switch cfg.Strategy {
	case "sma_crossover":
		return NewCrossover(cfg, symbol)
	case "rsi_reversal", "rsi_oversold_overbought":
		return NewRSIReversal(cfg, symbol)
	default:
		log.Warn().Str("strategy", cfg.Strategy).Msg("unknown strategy, using SMA crossover")
		return NewCrossover(cfg, symbol)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
