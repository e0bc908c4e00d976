package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the copy-trade service.
type Config struct {
	// Telegram
	TelegramAPIID     int64
	TelegramAPIHash   string
	PollFrequency     time.Duration // channel poll interval
	TelegramBaseURL   string        // override for tests; empty means api.telegram.org

	// Storage
	PostgresDSN   string
	ClickhouseDSN string // optional attempt audit sink; empty disables it

	// Trading
	TradeOn          bool    // master switch; false records signals without executing
	PositionSize     float64 // SOL spent per buy
	SlippageBPS      int
	StrategyFilterOn bool
	FilterStrategies []string // allowlist, only used when StrategyFilterOn
	TradeCooldown    time.Duration

	// Solana
	SolanaRPCURL     string
	SolanaWSURL      string
	SolanaPrivateKey string // base58-encoded keypair
	JupiterBaseURL   string

	// Execution
	PriorityFeeBase uint64  // micro-lamports per compute unit, first attempt
	PriorityFeeMult float64 // escalation factor per retry
	PriorityFeeMax  uint64  // escalation cap
	MaxAttempts     int
	ConfirmTimeout  time.Duration
	ExecQueueSize   int
	ExecWorkers     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramAPIID:   getEnvInt64("TG_API_ID", 0),
		TelegramAPIHash: getEnv("TG_API_HASH", ""),
		PollFrequency:   time.Duration(getEnvInt("TG_POLL_FREQUENCY", 5)) * time.Second,
		TelegramBaseURL: getEnv("TG_BASE_URL", ""),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		TradeOn:          getEnvBool("TRADE_ON", false),
		PositionSize:     getEnvFloat("POSITION_SIZE", 0.05),
		SlippageBPS:      getEnvInt("SLIPPAGE_BPS", 250),
		StrategyFilterOn: getEnvBool("STRATEGY_FILTER_ON", false),
		FilterStrategies: splitList(getEnv("FILTER_STRATEGIES", "")),
		TradeCooldown:    time.Duration(getEnvInt("TRADE_COOLDOWN_SECONDS", 300)) * time.Second,

		SolanaRPCURL:     getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		SolanaWSURL:      getEnv("SOLANA_WS_URL", "wss://api.mainnet-beta.solana.com"),
		SolanaPrivateKey: getEnv("SOLANA_PRIVATE_KEY", ""),
		JupiterBaseURL:   getEnv("JUPITER_BASE_URL", "https://quote-api.jup.ag"),

		PriorityFeeBase: getEnvUint64("PRIORITY_FEE_BASE", 10_000),
		PriorityFeeMult: getEnvFloat("PRIORITY_FEE_MULT", 2.0),
		PriorityFeeMax:  getEnvUint64("PRIORITY_FEE_MAX", 1_000_000),
		MaxAttempts:     getEnvInt("MAX_ATTEMPTS", 4),
		ConfirmTimeout:  time.Duration(getEnvInt("CONFIRM_TIMEOUT_SECONDS", 45)) * time.Second,
		ExecQueueSize:   getEnvInt("EXEC_QUEUE_SIZE", 64),
		ExecWorkers:     getEnvInt("EXEC_WORKERS", 4),
	}

	if cfg.TelegramAPIID == 0 {
		return nil, fmt.Errorf("TG_API_ID is required")
	}
	if cfg.TelegramAPIHash == "" {
		return nil, fmt.Errorf("TG_API_HASH is required")
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.TradeOn {
		if cfg.SolanaPrivateKey == "" {
			return nil, fmt.Errorf("SOLANA_PRIVATE_KEY is required when TRADE_ON=true")
		}
		if cfg.PositionSize <= 0 {
			return nil, fmt.Errorf("POSITION_SIZE must be positive")
		}
	}
	if cfg.PriorityFeeMult < 1 {
		return nil, fmt.Errorf("PRIORITY_FEE_MULT must be >= 1")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be >= 1")
	}
	if cfg.ExecQueueSize < 1 {
		return nil, fmt.Errorf("EXEC_QUEUE_SIZE must be >= 1")
	}
	if cfg.ExecWorkers < 1 {
		return nil, fmt.Errorf("EXEC_WORKERS must be >= 1")
	}

	return cfg, nil
}

// BotToken assembles the Telegram Bot API token from its two parts.
func (c *Config) BotToken() string {
	return fmt.Sprintf("%d:%s", c.TelegramAPIID, c.TelegramAPIHash)
}

// StrategyAllowed reports whether a strategy passes the configured filter.
func (c *Config) StrategyAllowed(strategy string) bool {
	if !c.StrategyFilterOn {
		return true
	}
	for _, s := range c.FilterStrategies {
		if strings.EqualFold(s, strategy) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
