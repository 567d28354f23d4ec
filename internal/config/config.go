package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the market backend
type Config struct {
	// Server settings
	ServerPort     string
	LogLevel       string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Persistence; the journal is kept in memory when DatabaseURL is empty.
	DatabaseURL string

	// Trading settings
	MinTrade           uint64 // currency base units, 0 = no minimum
	MaxTrade           uint64 // currency base units, 0 = no maximum
	RequireSignatures  bool
	SignatureMaxAge    time.Duration // accepted clock skew of signed requests
	EnableFaucet       bool
	FaucetAmount       uint64 // whole units per faucet call
	ResolveAfterExpiry bool
	LifecycleInterval  time.Duration

	// Defaults applied to new markets
	MarketDefaultsFile string
	Defaults           MarketDefaults
}

// MarketDefaults are applied to market creation requests that leave a field
// unset. They can be overridden by the YAML file named in
// MARKET_DEFAULTS_FILE.
type MarketDefaults struct {
	Curve         string        `yaml:"curve"`
	FeeBps        uint32        `yaml:"fee_bps"`
	LMSRB         uint64        `yaml:"lmsr_b"`
	Duration      time.Duration `yaml:"duration"`
	CurrencyScale uint64        `yaml:"currency_scale"`
	ClaimDecimals uint8         `yaml:"claim_decimals"`
}

// Load reads configuration from a .env file if present, then from
// environment variables, then from the market defaults file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("failed to read .env: %v", err)
	}

	// Narrow fields are parsed at their width so out-of-range values fail
	// instead of wrapping.
	feeBps, err := getEnvUintBits("DEFAULT_FEE_BPS", 0, 32)
	if err != nil {
		return nil, err
	}
	claimDecimals, err := getEnvUintBits("CLAIM_DECIMALS", 6, 8)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		MinTrade:           getEnvUint("MIN_TRADE", 0),
		MaxTrade:           getEnvUint("MAX_TRADE", 0),
		RequireSignatures:  getEnvBool("REQUIRE_SIGNATURES", true),
		SignatureMaxAge:    getEnvDuration("SIGNATURE_MAX_AGE", 5*time.Minute),
		EnableFaucet:       getEnvBool("ENABLE_FAUCET", false),
		FaucetAmount:       getEnvUint("FAUCET_AMOUNT", 1_000),
		ResolveAfterExpiry: getEnvBool("RESOLVE_AFTER_EXPIRY", false),
		LifecycleInterval:  getEnvDuration("LIFECYCLE_INTERVAL", 10*time.Second),

		MarketDefaultsFile: getEnv("MARKET_DEFAULTS_FILE", ""),
		Defaults: MarketDefaults{
			Curve:         getEnv("DEFAULT_CURVE", "constant_product"),
			FeeBps:        uint32(feeBps),
			LMSRB:         getEnvUint("DEFAULT_LMSR_B", 100),
			Duration:      getEnvDuration("DEFAULT_MARKET_DURATION", 7*24*time.Hour),
			CurrencyScale: getEnvUint("CURRENCY_SCALE", 1_000_000),
			ClaimDecimals: uint8(claimDecimals),
		},
	}

	if cfg.MarketDefaultsFile != "" {
		if err := cfg.loadDefaults(cfg.MarketDefaultsFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDefaults overlays the fields present in the YAML file onto Defaults.
func (c *Config) loadDefaults(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read market defaults %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c.Defaults); err != nil {
		return fmt.Errorf("decode market defaults %q: %w", path, err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Defaults.CurrencyScale == 0 {
		return errors.New("CURRENCY_SCALE must be positive")
	}
	if c.Defaults.ClaimDecimals > 18 {
		return errors.New("CLAIM_DECIMALS must be at most 18")
	}
	if c.Defaults.FeeBps > 10_000 {
		return errors.New("DEFAULT_FEE_BPS must be at most 10000")
	}
	if c.SignatureMaxAge <= 0 {
		return errors.New("SIGNATURE_MAX_AGE must be positive")
	}
	if c.MaxTrade > 0 && c.MinTrade > c.MaxTrade {
		return errors.New("MIN_TRADE exceeds MAX_TRADE")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUintBits(key string, defaultValue uint64, bitSize int) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.ParseUint(value, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
