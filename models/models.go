package models

import (
	"time"
)

// SignalType identifies what a strategy wants to do with the position.
type SignalType string

const (
	SignalBuy        SignalType = "buy"
	SignalSell       SignalType = "sell"
	SignalHold       SignalType = "hold"
	SignalCloseLong  SignalType = "close_long"
	SignalCloseShort SignalType = "close_short"
)

// IsActionable reports whether the signal opens or closes a position.
func (s SignalType) IsActionable() bool {
	return s != SignalHold && s != ""
}

// Candle represents a single price candle. Sequences are ordered by
// strictly increasing timestamp and never mutated after construction.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// TradingSignal is the immutable outcome of one strategy iteration.
// Strength and Confidence are always clamped to [0,1] before the value
// leaves the strategy. StopLoss/TakeProfit/PositionSize are nil when the
// strategy has no opinion (Hold, or sizing delegated to the risk engine).
type TradingSignal struct {
	Type       SignalType `json:"signal_type"`
	Strength   float64    `json:"strength"`
	Confidence float64    `json:"confidence"`
	Price      float64    `json:"price"`
	Timestamp  time.Time  `json:"timestamp"`
	Reason     string     `json:"reason"`

	StopLoss     *float64 `json:"stop_loss,omitempty"`
	TakeProfit   *float64 `json:"take_profit,omitempty"`
	PositionSize *float64 `json:"position_size,omitempty"`
}

// Position is an open position snapshot as reported by the account provider.
// Size is signed: positive for long, negative for short.
type Position struct {
	Symbol     string  `json:"symbol"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
	MarkPrice  float64 `json:"mark_price"`
}

// PositionRisk is a per-position risk assessment, recomputed on demand
// and never persisted.
type PositionRisk struct {
	Symbol           string  `json:"symbol"`
	Size             float64 `json:"size"`
	NotionalValue    float64 `json:"notional_value"`
	RiskPercentage   float64 `json:"risk_percentage"`
	StopLossDistance float64 `json:"stop_loss_distance"`
	PotentialLoss    float64 `json:"potential_loss"`
}

// RiskLevel classifies the portfolio risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskMetrics is the portfolio-wide risk snapshot produced by one
// assessment pass.
type RiskMetrics struct {
	TotalExposure float64   `json:"total_exposure"`
	PositionRisk  float64   `json:"position_risk"`
	AccountRisk   float64   `json:"account_risk"`
	DailyPnL      float64   `json:"daily_pnl"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	VaR95         float64   `json:"var_95"`
	RiskLevel     RiskLevel `json:"risk_level"`
}

// OrderResult is what the order executor reports back on a fill.
type OrderResult struct {
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
}
