// Package risk holds the account-scoped risk engine: position sizing,
// portfolio risk scoring and the pre/post-trade gates. Gate failures are
// ordinary results (allowed=false plus a reason), never errors.
package risk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/config"
	"example.com/deltabot/models"
)

const minPositionSize = 0.001

// Manager tracks account-level risk state across ticks: daily starting
// balance, peak balance and the sticky emergency stop. The scheduler is
// single-threaded, but the metrics endpoint reads concurrently, so the
// counters stay behind a mutex.
type Manager struct {
	cfg     *config.Config
	account models.AccountProvider
	logger  zerolog.Logger

	mu                sync.Mutex
	dailyStartBalance float64
	peakBalance       float64
	currentDrawdown   float64
	dailyPnL          float64
	emergencyStop     bool
}

// NewManager builds a risk manager bound to one account.
func NewManager(cfg *config.Config, account models.AccountProvider) *Manager {
	return &Manager{
		cfg:     cfg,
		account: account,
		logger:  log.With().Str("component", "risk").Logger(),
	}
}

// InitializeDailyTracking records the day's starting balance and seeds
// the peak. Call once at startup and again at each day rollover.
func (m *Manager) InitializeDailyTracking(ctx context.Context) error {
	balance, err := m.account.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("initializing daily tracking: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyStartBalance = balance
	if balance > m.peakBalance {
		m.peakBalance = balance
	}
	m.logger.Info().Float64("balance", balance).Msg("daily risk tracking initialized")
	return nil
}

// ResetDailyTracking starts a fresh trading day. The emergency stop is
// explicitly cleared here and nowhere else.
func (m *Manager) ResetDailyTracking(ctx context.Context) error {
	if err := m.InitializeDailyTracking(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyPnL = 0
	m.emergencyStop = false
	m.logger.Info().Msg("daily risk tracking reset")
	return nil
}

// TriggerEmergencyStop sets the sticky block on all new positions.
func (m *Manager) TriggerEmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyStop = true
	m.logger.Error().Msg("emergency stop activated, all new positions blocked")
}

// EmergencyStopActive reports whether the sticky flag is set.
func (m *Manager) EmergencyStopActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyStop
}

// CalculatePositionSize converts a signal into a bounded size. The base
// size risks cfg.RiskPct of the balance against the stop distance, scaled
// by strength×confidence, then clamped by notional, leverage and the
// 10%-of-balance cap, and floored at the minimum tradeable size.
func (m *Manager) CalculatePositionSize(sig models.TradingSignal, balance, price float64) float64 {
	riskAmount := balance * (m.cfg.RiskPct / 100)

	stopLossDistance := m.cfg.StopLossPct / 100
	maxLossPerUnit := price * stopLossDistance

	var baseSize float64
	if maxLossPerUnit > 0 {
		baseSize = riskAmount / maxLossPerUnit
	} else {
		baseSize = balance * 0.01
	}

	adjustedSize := baseSize * sig.Strength * sig.Confidence

	maxSizeByNotional := m.cfg.MaxPositionSize / price
	maxSizeByLeverage := (balance * m.cfg.MaxLeverage) / price

	finalSize := math.Min(adjustedSize, maxSizeByNotional)
	finalSize = math.Min(finalSize, maxSizeByLeverage)
	finalSize = math.Min(finalSize, balance*0.1/price)

	return math.Max(finalSize, minPositionSize)
}

// CheckPositionRisk assesses a single open position against the account
// balance snapshot. Short positions carry negative size.
func (m *Manager) CheckPositionRisk(pos models.Position, currentPrice, balance float64) models.PositionRisk {
	notionalValue := math.Abs(pos.Size * currentPrice)

	var stopLossPrice, potentialLoss float64
	if pos.Size > 0 {
		stopLossPrice = pos.EntryPrice * (1 - m.cfg.StopLossPct/100)
		potentialLoss = (pos.EntryPrice - stopLossPrice) * pos.Size
	} else {
		stopLossPrice = pos.EntryPrice * (1 + m.cfg.StopLossPct/100)
		potentialLoss = (stopLossPrice - pos.EntryPrice) * math.Abs(pos.Size)
	}

	var stopLossDistance float64
	if currentPrice > 0 {
		stopLossDistance = math.Abs(currentPrice-stopLossPrice) / currentPrice * 100
	}

	var riskPercentage float64
	if balance > 0 {
		riskPercentage = potentialLoss / balance * 100
	}

	return models.PositionRisk{
		Symbol:           pos.Symbol,
		Size:             pos.Size,
		NotionalValue:    notionalValue,
		RiskPercentage:   riskPercentage,
		StopLossDistance: stopLossDistance,
		PotentialLoss:    potentialLoss,
	}
}

// AssessPortfolioRisk recomputes the portfolio risk snapshot from live
// account data. The drawdown resets to zero whenever a new peak is set.
func (m *Manager) AssessPortfolioRisk(ctx context.Context) (models.RiskMetrics, error) {
	balance, err := m.account.GetBalance(ctx)
	if err != nil {
		return models.RiskMetrics{}, fmt.Errorf("assessing portfolio risk: %w", err)
	}
	positions, err := m.account.GetOpenPositions(ctx)
	if err != nil {
		return models.RiskMetrics{}, fmt.Errorf("assessing portfolio risk: %w", err)
	}

	var totalExposure, totalPotentialLoss float64
	for _, pos := range positions {
		pr := m.CheckPositionRisk(pos, pos.MarkPrice, balance)
		totalExposure += pr.NotionalValue
		totalPotentialLoss += pr.PotentialLoss
	}

	var exposureRatio, positionRiskRatio float64
	if balance > 0 {
		exposureRatio = totalExposure / balance
		positionRiskRatio = totalPotentialLoss / balance
	}

	m.mu.Lock()
	if balance > m.peakBalance {
		m.peakBalance = balance
		m.currentDrawdown = 0
	} else if m.peakBalance > 0 {
		m.currentDrawdown = (m.peakBalance - balance) / m.peakBalance * 100
	}
	m.dailyPnL = balance - m.dailyStartBalance
	drawdown := m.currentDrawdown
	dailyPnL := m.dailyPnL
	m.mu.Unlock()

	level := m.determineRiskLevel(exposureRatio, positionRiskRatio, drawdown, dailyPnL)

	return models.RiskMetrics{
		TotalExposure: totalExposure,
		PositionRisk:  positionRiskRatio,
		AccountRisk:   exposureRatio,
		DailyPnL:      dailyPnL,
		MaxDrawdown:   drawdown,
		VaR95:         totalPotentialLoss,
		RiskLevel:     level,
	}, nil
}

// riskScore is the additive four-factor score behind the risk level. The
// breakpoints are load-bearing: the Critical band is the sole trigger of
// the Critical-block gate, so they are reproduced exactly.
func (m *Manager) riskScore(exposureRatio, positionRisk, drawdown, dailyPnL float64) int {
	score := 0

	switch {
	case exposureRatio > 0.8:
		score += 3
	case exposureRatio > 0.6:
		score += 2
	case exposureRatio > 0.4:
		score += 1
	}

	switch {
	case positionRisk > 0.1:
		score += 3
	case positionRisk > 0.05:
		score += 2
	case positionRisk > 0.02:
		score += 1
	}

	switch {
	case drawdown > m.cfg.DrawdownLimit:
		score += 4
	case drawdown > m.cfg.DrawdownLimit*0.7:
		score += 2
	case drawdown > m.cfg.DrawdownLimit*0.5:
		score += 1
	}

	switch {
	case dailyPnL < -m.cfg.MaxDailyLoss:
		score += 4
	case dailyPnL < -m.cfg.MaxDailyLoss*0.7:
		score += 2
	case dailyPnL < -m.cfg.MaxDailyLoss*0.5:
		score += 1
	}

	return score
}

func (m *Manager) determineRiskLevel(exposureRatio, positionRisk, drawdown, dailyPnL float64) models.RiskLevel {
	score := m.riskScore(exposureRatio, positionRisk, drawdown, dailyPnL)
	switch {
	case score >= 6:
		return models.RiskCritical
	case score >= 4:
		return models.RiskHigh
	case score >= 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// ShouldAllowNewPosition runs the pre-trade gate. Checks run in a fixed
// order and the first failure wins; each reason string is stable so
// callers and dashboards can key on it.
func (m *Manager) ShouldAllowNewPosition(ctx context.Context, sig models.TradingSignal, positionSize, currentPrice float64) (bool, string) {
	if m.EmergencyStopActive() {
		return false, "emergency stop is active"
	}

	metrics, err := m.AssessPortfolioRisk(ctx)
	if err != nil {
		return false, fmt.Sprintf("error in risk check: %v", err)
	}

	if metrics.DailyPnL <= -m.cfg.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f", metrics.DailyPnL)
	}

	if metrics.MaxDrawdown >= m.cfg.DrawdownLimit {
		return false, fmt.Sprintf("maximum drawdown reached: %.2f%%", metrics.MaxDrawdown)
	}

	positions, err := m.account.GetOpenPositions(ctx)
	if err != nil {
		return false, fmt.Sprintf("error in risk check: %v", err)
	}
	if len(positions) >= m.cfg.MaxOpenPositions {
		return false, fmt.Sprintf("maximum number of positions reached: %d", len(positions))
	}

	if metrics.RiskLevel == models.RiskCritical {
		return false, "portfolio risk level is critical"
	}

	notionalValue := positionSize * currentPrice
	if notionalValue > m.cfg.MaxPositionSize {
		return false, fmt.Sprintf("position size too large: %.2f > %.2f", notionalValue, m.cfg.MaxPositionSize)
	}

	balance, err := m.account.GetBalance(ctx)
	if err != nil {
		return false, fmt.Sprintf("error in risk check: %v", err)
	}
	if balance > 0 && (metrics.TotalExposure+notionalValue)/balance > 0.9 {
		return false, "adding position would exceed portfolio exposure limit"
	}

	return true, "position allowed"
}

// ShouldClosePosition runs the exit gate for one open position against
// the given balance snapshot.
func (m *Manager) ShouldClosePosition(pos models.Position, currentPrice, balance float64) (bool, string) {
	pr := m.CheckPositionRisk(pos, currentPrice, balance)

	if pr.RiskPercentage > 5.0 {
		return true, fmt.Sprintf("position risk too high: %.2f%%", pr.RiskPercentage)
	}

	var lossPercentage float64
	if pos.Size > 0 {
		lossPercentage = (pos.EntryPrice - currentPrice) / pos.EntryPrice * 100
	} else {
		lossPercentage = (currentPrice - pos.EntryPrice) / pos.EntryPrice * 100
	}

	if lossPercentage >= m.cfg.StopLossPct {
		return true, fmt.Sprintf("stop loss hit: %.2f%%", lossPercentage)
	}

	profitPercentage := -lossPercentage
	if profitPercentage >= m.cfg.TakeProfitPct {
		return true, fmt.Sprintf("take profit hit: %.2f%%", profitPercentage)
	}

	return false, "position within risk parameters"
}

// DailyPnL returns the last computed daily profit and loss.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

// CurrentDrawdown returns the last computed drawdown percentage.
func (m *Manager) CurrentDrawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentDrawdown
}
