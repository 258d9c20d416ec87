package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/config"
	"example.com/deltabot/internal/bot"
	"example.com/deltabot/internal/exchange"
	"example.com/deltabot/internal/monitoring"
	"example.com/deltabot/internal/notify"
	"example.com/deltabot/internal/risk"
	"example.com/deltabot/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("strategy", cfg.Strategy).
		Str("interval", cfg.Interval).
		Float64("paper_balance", cfg.PaperBalance).
		Msg("starting trading bot")

	// Paper exchange fills all three provider roles; the history length
	// covers the longest indicator window from the first tick.
	paper := exchange.NewPaper(cfg.Symbol, cfg.PaperBalance, 50000, cfg.CandleCount, 1)

	riskManager := risk.NewManager(cfg, paper)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := riskManager.InitializeDailyTracking(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize risk tracking")
	}

	var metrics *monitoring.Metrics
	if cfg.EnableMetrics {
		metrics = monitoring.New()
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier = tg
		}
	}

	b := bot.New(cfg, bot.Deps{
		Candles:    paper,
		Account:    paper,
		Orders:     paper,
		Risk:       riskManager,
		Strategies: []strategy.Strategy{strategy.New(cfg, cfg.Symbol)},
		Metrics:    metrics,
		Notifier:   notifier,
	})

	b.Run(ctx)
	log.Info().Msg("trading bot stopped")
}
