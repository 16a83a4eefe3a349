package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Terminal
	PageURL        string // origin the terminal pretends to be served from; drives the stream URL
	APIBase        string
	RequestTimeout time.Duration // zero means requests never time out

	// Bridge
	BridgeHost      string
	BridgePort      int
	InstrumentsPath string
	JournalPath     string
	TickInterval    time.Duration
	OrderRatePerSec int
	PaperCash       float64
	JournalMaxBytes int64
	DiscordWebhook  string // fills and ticker status are posted here when set
	BarPeriod       time.Duration

	// Strategy (bridge)
	StrategyEnabled         bool
	StrategySymbol          string
	StrategyTradePct        float64 // fraction of equity per entry
	StrategyMaxDailyLossPct float64 // fraction of equity lost in a day that halts entries

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		PageURL:        envStr("PAGE_URL", "http://localhost:3000"),
		APIBase:        envStr("API_BASE", "http://localhost:8000"),
		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SEC", 0)) * time.Second,

		BridgeHost:      envStr("BRIDGE_HOST", "0.0.0.0"),
		BridgePort:      envInt("BRIDGE_PORT", 8000),
		InstrumentsPath: envStr("INSTRUMENTS_PATH", ""),
		JournalPath:     envStr("JOURNAL_PATH", "data/journal.db"),
		TickInterval:    time.Duration(envInt("TICK_INTERVAL_MS", 200)) * time.Millisecond,
		OrderRatePerSec: envInt("ORDER_RATE_PER_SEC", 5),
		PaperCash:       envFloat("PAPER_CASH", 10000),
		JournalMaxBytes: int64(envInt("JOURNAL_MAX_MB", 256)) << 20,
		DiscordWebhook:  envStr("DISCORD_WEBHOOK_URL", ""),
		BarPeriod:       time.Duration(envInt("BAR_SECONDS", 1)) * time.Second,

		StrategyEnabled:         envBool("STRATEGY_ENABLED", false),
		StrategySymbol:          envStr("STRATEGY_SYMBOL", "NIFTY 50"),
		StrategyTradePct:        envFloat("STRATEGY_TRADE_PCT", 0.005),
		StrategyMaxDailyLossPct: envFloat("STRATEGY_MAX_DAILY_LOSS_PCT", 0.02),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
