// Package exchange provides the paper-trading collaborator: an in-memory
// exchange that serves candles, account snapshots and market fills so the
// whole loop runs end to end without touching a real venue.
package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/models"
)

type paperPosition struct {
	size       float64
	entryPrice float64
}

// Paper is a deterministic (seeded) simulated exchange. Each candle
// request advances the random-walk price by one step, so the bot sees a
// fresh candle per tick just like a live feed.
type Paper struct {
	symbol string
	logger zerolog.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	cash      float64
	history   []models.Candle
	positions map[string]*paperPosition
	orderSeq  int
}

// NewPaper builds a paper exchange with a pre-seeded candle history so
// strategies have a full indicator window from the first tick.
func NewPaper(symbol string, startBalance, startPrice float64, historyLen int, seed int64) *Paper {
	p := &Paper{
		symbol:    symbol,
		logger:    log.With().Str("component", "paper_exchange").Logger(),
		rng:       rand.New(rand.NewSource(seed)),
		cash:      startBalance,
		positions: make(map[string]*paperPosition),
	}

	ts := time.Now().Add(-time.Duration(historyLen) * time.Minute)
	price := startPrice
	for i := 0; i < historyLen; i++ {
		candle := p.nextCandle(price, ts)
		p.history = append(p.history, candle)
		price = candle.Close
		ts = ts.Add(time.Minute)
	}
	return p
}

func (p *Paper) nextCandle(prevClose float64, ts time.Time) models.Candle {
	// 0.2% per-step volatility random walk with a slight mean reversion
	step := p.rng.NormFloat64() * 0.002
	open := prevClose
	close := open * (1 + step)
	high := math.Max(open, close) * (1 + math.Abs(p.rng.NormFloat64())*0.0005)
	low := math.Min(open, close) * (1 - math.Abs(p.rng.NormFloat64())*0.0005)
	volume := 800 + p.rng.Float64()*400

	return models.Candle{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// GetCandles advances the walk by one candle and returns the trailing
// window, newest last.
func (p *Paper) GetCandles(_ context.Context, symbol, _ string, limit int) ([]models.Candle, error) {
	if symbol != p.symbol {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.history[len(p.history)-1]
	p.history = append(p.history, p.nextCandle(last.Close, last.Timestamp.Add(time.Minute)))

	if limit > len(p.history) {
		limit = len(p.history)
	}
	window := make([]models.Candle, limit)
	copy(window, p.history[len(p.history)-limit:])
	return window, nil
}

// LastPrice returns the most recent close.
func (p *Paper) LastPrice() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history[len(p.history)-1].Close
}

// GetBalance returns cash plus the marked value of open positions.
func (p *Paper) GetBalance(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark := p.history[len(p.history)-1].Close
	equity := p.cash
	for _, pos := range p.positions {
		equity += (mark - pos.entryPrice) * pos.size
	}
	return equity, nil
}

// GetOpenPositions returns the current position snapshot.
func (p *Paper) GetOpenPositions(_ context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark := p.history[len(p.history)-1].Close
	var out []models.Position
	for symbol, pos := range p.positions {
		out = append(out, models.Position{
			Symbol:     symbol,
			Size:       pos.size,
			EntryPrice: pos.entryPrice,
			MarkPrice:  mark,
		})
	}
	return out, nil
}

// PlaceOrder fills a market order at the latest close. Buy extends the
// long side, sell the short side; close orders flatten and realize PnL
// into cash.
func (p *Paper) PlaceOrder(_ context.Context, symbol string, side models.SignalType, size float64) (*models.OrderResult, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid order size %.8f", size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fill := p.history[len(p.history)-1].Close
	pos := p.positions[symbol]

	switch side {
	case models.SignalBuy, models.SignalSell:
		signed := size
		if side == models.SignalSell {
			signed = -size
		}
		if pos == nil {
			p.positions[symbol] = &paperPosition{size: signed, entryPrice: fill}
		} else {
			total := pos.size + signed
			if total == 0 {
				p.cash += (fill - pos.entryPrice) * pos.size
				delete(p.positions, symbol)
			} else {
				// weighted average entry when adding, realize when reducing
				if math.Signbit(pos.size) == math.Signbit(total) && math.Abs(total) > math.Abs(pos.size) {
					pos.entryPrice = (pos.entryPrice*math.Abs(pos.size) + fill*size) / math.Abs(total)
				} else {
					p.cash += (fill - pos.entryPrice) * (pos.size - total)
				}
				pos.size = total
			}
		}
	case models.SignalCloseLong, models.SignalCloseShort:
		if pos == nil {
			return nil, fmt.Errorf("no open position for %s", symbol)
		}
		p.cash += (fill - pos.entryPrice) * pos.size
		delete(p.positions, symbol)
	default:
		return nil, fmt.Errorf("unsupported order side %q", side)
	}

	p.orderSeq++
	res := &models.OrderResult{
		OrderID:   fmt.Sprintf("paper-%d", p.orderSeq),
		FillPrice: fill,
	}
	p.logger.Debug().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("size", size).
		Float64("fill", fill).
		Msg("paper order filled")
	return res, nil
}
