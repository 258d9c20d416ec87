package models

import "context"

// CandleProvider supplies ordered candle history for one instrument.
// The returned slice may be empty when no data is available yet.
type CandleProvider interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// AccountProvider exposes the account snapshot the risk engine works from.
type AccountProvider interface {
	GetBalance(ctx context.Context) (float64, error)
	GetOpenPositions(ctx context.Context) ([]Position, error)
}

// OrderExecutor places market orders. Side is SignalBuy, SignalSell,
// SignalCloseLong or SignalCloseShort; size is always positive.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, symbol string, side SignalType, size float64) (*OrderResult, error)
}
