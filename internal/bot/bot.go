// Package bot sequences one trading tick: candles → indicators → signal
// → eligibility gate → sizing → risk gate → order. It also owns the
// fixed-tick scheduler and its error backoff policy.
package bot

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"example.com/deltabot/config"
	"example.com/deltabot/internal/monitoring"
	"example.com/deltabot/internal/notify"
	"example.com/deltabot/internal/risk"
	"example.com/deltabot/internal/strategy"
	"example.com/deltabot/models"
)

const minTickSleep = time.Second

// Deps are the collaborators the coordinator sequences. Metrics and
// Notifier may be nil.
type Deps struct {
	Candles    models.CandleProvider
	Account    models.AccountProvider
	Orders     models.OrderExecutor
	Risk       *risk.Manager
	Strategies []strategy.Strategy
	Metrics    *monitoring.Metrics
	Notifier   notify.Notifier
}

// Bot runs the single-threaded trading loop. All state mutation happens
// inside a tick; shutdown is observed only at the tick boundary.
type Bot struct {
	cfg    *config.Config
	deps   Deps
	logger zerolog.Logger

	limiter *rate.Limiter

	consecutiveErrors int
	iterationCount    int
}

// New wires up a coordinator.
func New(cfg *config.Config, deps Deps) *Bot {
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	return &Bot{
		cfg:     cfg,
		deps:    deps,
		logger:  log.With().Str("component", "bot").Logger(),
		limiter: rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), 1),
	}
}

// Run drives the fixed-tick scheduler until ctx is cancelled. A tick is
// never aborted mid-flight; cancellation takes effect between ticks.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info().
		Int("strategies", len(b.deps.Strategies)).
		Int("tick_seconds", b.cfg.TickIntervalSeconds).
		Msg("starting main trading loop")

	bo := b.newBackoff()

	for {
		start := time.Now()

		if err := b.Tick(ctx); err != nil {
			b.consecutiveErrors++
			if b.deps.Metrics != nil {
				b.deps.Metrics.RecordTickError()
			}
			b.logger.Error().Err(err).Int("consecutive_errors", b.consecutiveErrors).Msg("tick failed")
		} else {
			b.consecutiveErrors = 0
			bo.Reset()
		}

		b.iterationCount++
		if b.iterationCount%100 == 0 {
			b.logger.Info().
				Int("iterations", b.iterationCount).
				Dur("tick_duration", time.Since(start)).
				Msg("loop progress")
		}

		select {
		case <-ctx.Done():
			b.logger.Info().Msg("shutdown requested, stopping trading loop")
			return
		case <-time.After(b.nextSleep(time.Since(start), bo)):
		}
	}
}

func (b *Bot) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(b.cfg.TickIntervalSeconds) * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0 // deterministic schedule
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// nextSleep implements the pacing policy: the regular cadence keeps a
// one-second floor after subtracting tick cost; past the error threshold
// the exponential schedule takes over.
func (b *Bot) nextSleep(elapsed time.Duration, bo *backoff.ExponentialBackOff) time.Duration {
	if b.consecutiveErrors > b.cfg.ErrorBackoffAfter {
		return bo.NextBackOff()
	}
	interval := time.Duration(b.cfg.TickIntervalSeconds) * time.Second
	sleep := interval - elapsed
	if sleep < minTickSleep {
		return minTickSleep
	}
	return sleep
}

// Tick runs one full synchronous iteration over all strategies, then the
// exit gate over open positions, then refreshes the metrics gauges.
// Failures degrade the tick to no-action; they never stop the loop.
func (b *Bot) Tick(ctx context.Context) error {
	var firstErr error

	for _, strat := range b.deps.Strategies {
		sig, err := b.RunIteration(ctx, strat)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("strategy %s: %w", strat.Name(), err)
			}
			b.logger.Error().Err(err).Str("strategy", strat.Name()).Msg("iteration failed")
			continue
		}
		if sig == nil {
			continue
		}
		if sig.Type.IsActionable() && strat.ShouldExecute(*sig, time.Now()) {
			if err := b.executeSignal(ctx, strat, *sig); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				b.logger.Error().Err(err).Str("strategy", strat.Name()).Msg("execution failed")
			}
		}
	}

	if err := b.monitorPositions(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	b.updateMetrics(ctx)

	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordIteration()
	}
	return firstErr
}

// RunIteration fetches data, computes indicators and generates exactly
// one signal for the strategy. It returns nil (with no error) only on a
// hard data gap — a Hold is still a signal.
func (b *Bot) RunIteration(ctx context.Context, strat strategy.Strategy) (*models.TradingSignal, error) {
	candles, err := b.deps.Candles.GetCandles(ctx, strat.Symbol(), b.cfg.Interval, b.cfg.CandleCount)
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	set := strat.ComputeIndicators(candles)
	sig := strat.GenerateSignal(candles, set)
	strat.State().LastSignal = &sig

	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordSignal(strat.Name(), sig)
	}
	b.logger.Debug().
		Str("strategy", strat.Name()).
		Str("signal", string(sig.Type)).
		Float64("strength", sig.Strength).
		Float64("confidence", sig.Confidence).
		Str("reason", sig.Reason).
		Msg("signal generated")

	return &sig, nil
}

// executeSignal sizes the position, runs the pre-trade risk gate and
// places the order. A gate rejection is a normal outcome, not an error.
func (b *Bot) executeSignal(ctx context.Context, strat strategy.Strategy, sig models.TradingSignal) error {
	balance, err := b.deps.Account.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}

	size := b.deps.Risk.CalculatePositionSize(sig, balance, sig.Price)

	allowed, reason := b.deps.Risk.ShouldAllowNewPosition(ctx, sig, size, sig.Price)
	if !allowed {
		b.logger.Warn().
			Str("strategy", strat.Name()).
			Str("reason", reason).
			Msg("trade blocked by risk management")
		if b.deps.Metrics != nil {
			b.deps.Metrics.RecordBlock(blockCheckLabel(reason))
		}
		b.deps.Notifier.TradeBlocked(strat.Symbol(), reason)
		return nil
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("order rate limiter: %w", err)
	}

	res, err := b.deps.Orders.PlaceOrder(ctx, strat.Symbol(), sig.Type, size)
	if err != nil {
		return fmt.Errorf("placing order: %w", err)
	}

	strat.State().RecordExecution(time.Now())

	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordTrade(sig.Type)
	}
	b.deps.Notifier.TradeExecuted(strat.Symbol(), sig, size, res.FillPrice)

	b.logger.Info().
		Str("strategy", strat.Name()).
		Str("side", string(sig.Type)).
		Float64("size", size).
		Float64("fill_price", res.FillPrice).
		Str("order_id", res.OrderID).
		Msg("trade executed")
	return nil
}

// monitorPositions runs the exit gate over every open position and
// flattens the ones the risk engine wants closed.
func (b *Bot) monitorPositions(ctx context.Context) error {
	positions, err := b.deps.Account.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	balance, err := b.deps.Account.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetching balance: %w", err)
	}

	for _, pos := range positions {
		shouldClose, reason := b.deps.Risk.ShouldClosePosition(pos, pos.MarkPrice, balance)
		if !shouldClose {
			continue
		}

		side := models.SignalCloseLong
		if pos.Size < 0 {
			side = models.SignalCloseShort
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("order rate limiter: %w", err)
		}
		if _, err := b.deps.Orders.PlaceOrder(ctx, pos.Symbol, side, math.Abs(pos.Size)); err != nil {
			return fmt.Errorf("closing position %s: %w", pos.Symbol, err)
		}

		if b.deps.Metrics != nil {
			b.deps.Metrics.RecordTrade(side)
		}
		b.logger.Info().
			Str("symbol", pos.Symbol).
			Str("side", string(side)).
			Float64("size", pos.Size).
			Str("reason", reason).
			Msg("position closed by risk engine")
	}
	return nil
}

func (b *Bot) updateMetrics(ctx context.Context) {
	if b.deps.Metrics == nil {
		return
	}
	rm, err := b.deps.Risk.AssessPortfolioRisk(ctx)
	if err != nil {
		return
	}
	balance, err := b.deps.Account.GetBalance(ctx)
	if err != nil {
		return
	}
	positions, err := b.deps.Account.GetOpenPositions(ctx)
	if err != nil {
		return
	}
	b.deps.Metrics.UpdatePortfolio(balance, rm, len(positions))
}

// blockCheckLabel buckets a gate reason into a bounded metric label.
func blockCheckLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "emergency stop"):
		return "emergency_stop"
	case strings.HasPrefix(reason, "daily loss"):
		return "daily_loss"
	case strings.HasPrefix(reason, "maximum drawdown"):
		return "drawdown"
	case strings.HasPrefix(reason, "maximum number of positions"):
		return "max_positions"
	case strings.HasPrefix(reason, "portfolio risk level"):
		return "critical_risk"
	case strings.HasPrefix(reason, "position size too large"):
		return "position_size"
	case strings.HasPrefix(reason, "adding position"):
		return "exposure"
	default:
		return "other"
	}
}
