package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration. It is built once at startup
// and passed by pointer to every component; nothing mutates it afterwards.
type Config struct {
	// Instrument and data
	Symbol      string
	Interval    string
	CandleCount int

	// Strategy selection
	Strategy string // "sma_crossover" or "rsi_reversal"

	// Indicator parameters
	SMAShortPeriod int
	SMALongPeriod  int
	RSIPeriod      int
	RSIOversold    float64
	RSIOverbought  float64
	BBPeriod       int
	BBStdDev       float64

	// Execution gating
	MinSignalStrength    float64
	CooldownMinutes      int
	MaxConsecutiveLosses int

	// Risk management
	MaxPositionSize    float64 // max notional per position
	StopLossPct        float64
	TakeProfitPct      float64
	MaxDailyLoss       float64
	RiskPct            float64 // % of balance risked per trade
	MaxLeverage        float64
	DrawdownLimit      float64 // %
	MaxOpenPositions   int
	MinAccountBalance  float64

	// Scheduler
	TickIntervalSeconds int
	ErrorBackoffAfter   int // consecutive tick errors before backoff kicks in

	// Paper trading
	PaperBalance float64

	// Rate limiting for order placement
	OrdersPerSecond float64

	// Observability
	LogLevel     string
	MetricsAddr  string
	EnableMetrics bool

	// Notifications
	TelegramToken  string
	TelegramChatID int64
}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		Symbol:      getEnvWithDefault("SYMBOL", "BTCUSD"),
		Interval:    getEnvWithDefault("INTERVAL", "1m"),
		CandleCount: getEnvIntWithDefault("CANDLE_COUNT", 100),

		Strategy: getEnvWithDefault("STRATEGY", "sma_crossover"),

		SMAShortPeriod: getEnvIntWithDefault("SMA_SHORT_PERIOD", 10),
		SMALongPeriod:  getEnvIntWithDefault("SMA_LONG_PERIOD", 30),
		RSIPeriod:      getEnvIntWithDefault("RSI_PERIOD", 14),
		RSIOversold:    getEnvFloatWithDefault("RSI_OVERSOLD", 30.0),
		RSIOverbought:  getEnvFloatWithDefault("RSI_OVERBOUGHT", 70.0),
		BBPeriod:       getEnvIntWithDefault("BB_PERIOD", 20),
		BBStdDev:       getEnvFloatWithDefault("BB_STD_DEV", 2.0),

		MinSignalStrength:    getEnvFloatWithDefault("MIN_SIGNAL_STRENGTH", 0.6),
		CooldownMinutes:      getEnvIntWithDefault("COOLDOWN_MINUTES", 5),
		MaxConsecutiveLosses: getEnvIntWithDefault("MAX_CONSECUTIVE_LOSSES", 3),

		MaxPositionSize:   getEnvFloatWithDefault("MAX_POSITION_SIZE", 1000.0),
		StopLossPct:       getEnvFloatWithDefault("STOP_LOSS_PERCENTAGE", 2.0),
		TakeProfitPct:     getEnvFloatWithDefault("TAKE_PROFIT_PERCENTAGE", 3.0),
		MaxDailyLoss:      getEnvFloatWithDefault("MAX_DAILY_LOSS", 100.0),
		RiskPct:           getEnvFloatWithDefault("RISK_PERCENTAGE", 1.0),
		MaxLeverage:       getEnvFloatWithDefault("MAX_LEVERAGE", 10),
		DrawdownLimit:     getEnvFloatWithDefault("DRAWDOWN_LIMIT", 10.0),
		MaxOpenPositions:  getEnvIntWithDefault("MAX_OPEN_POSITIONS", 5),
		MinAccountBalance: getEnvFloatWithDefault("MIN_ACCOUNT_BALANCE", 50.0),

		TickIntervalSeconds: getEnvIntWithDefault("TICK_INTERVAL_SECONDS", 5),
		ErrorBackoffAfter:   getEnvIntWithDefault("ERROR_BACKOFF_AFTER", 5),

		PaperBalance: getEnvFloatWithDefault("PAPER_TRADING_BALANCE", 10000.0),

		OrdersPerSecond: getEnvFloatWithDefault("ORDERS_PER_SECOND", 1.0),

		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		MetricsAddr:   getEnvWithDefault("METRICS_ADDR", ":8000"),
		EnableMetrics: getEnvBoolWithDefault("ENABLE_METRICS", true),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces cross-field constraints before anything is wired up.
func (c *Config) Validate() error {
	if c.SMALongPeriod <= c.SMAShortPeriod {
		return fmt.Errorf("SMA long period (%d) must be greater than short period (%d)",
			c.SMALongPeriod, c.SMAShortPeriod)
	}
	if c.RSIOverbought <= c.RSIOversold {
		return fmt.Errorf("RSI overbought (%.1f) must be greater than oversold (%.1f)",
			c.RSIOverbought, c.RSIOversold)
	}
	if c.TakeProfitPct <= c.StopLossPct {
		return fmt.Errorf("take profit (%.1f%%) must be greater than stop loss (%.1f%%)",
			c.TakeProfitPct, c.StopLossPct)
	}
	if c.RiskPct <= 0 || c.RiskPct > 10 {
		return fmt.Errorf("risk percentage must be in (0, 10], got %.2f", c.RiskPct)
	}
	if c.TickIntervalSeconds < 1 {
		return fmt.Errorf("tick interval must be at least 1 second, got %d", c.TickIntervalSeconds)
	}
	return nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
