// Package config loads environment-driven settings and the YAML execution
// profile (resubmission policy plus venue declarations).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port string

	// Execution
	ProfilePath string // YAML profile with policy and venues
	Workers     int    // async executor worker count

	// Auth
	JWTSecret     string
	AdminUser     string
	AdminPassword string

	// Credential encryption
	CredentialKey string // base64 master key; empty disables decryption

	// Localization
	Language string // "en" or "zh"

	// Logging
	LogLevel string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		ProfilePath:   getEnv("EXECUTION_PROFILE", "./config/execution.yaml"),
		Workers:       getEnvInt("EXECUTION_WORKERS", 4),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		CredentialKey: os.Getenv("CREDENTIAL_KEY"),
		Language:      getEnv("LANGUAGE", "en"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}, nil
}

// Profile is the parsed YAML execution profile.
type Profile struct {
	Policy PolicySettings  `yaml:"policy"`
	Venues []VenueSettings `yaml:"venues"`
}

// PolicySettings mirrors the policy block of the profile. Fractions are
// strings so they survive the trip through YAML without float rounding.
type PolicySettings struct {
	PriceCancellation          bool   `yaml:"price_cancellation"`
	PriceCancellationAmplitude string `yaml:"price_cancellation_amplitude"`
	TimeCancellation           bool   `yaml:"time_cancellation"`
	TimeCancellationSeconds    int    `yaml:"time_cancellation_seconds"`
	AutomaticCancellation      bool   `yaml:"automatic_cancellation"`
	ReissueOrder               string `yaml:"reissue_order"`
	MaxAttempts                int    `yaml:"max_attempts"`
	DeadlineSeconds            int    `yaml:"deadline_seconds"`
}

// Amplitude parses the price-cancellation amplitude; empty means zero.
func (p PolicySettings) Amplitude() (decimal.Decimal, error) {
	return parseFraction("price_cancellation_amplitude", p.PriceCancellationAmplitude)
}

// Offset parses the reissue offset; empty means zero.
func (p PolicySettings) Offset() (decimal.Decimal, error) {
	return parseFraction("reissue_order", p.ReissueOrder)
}

// Wait returns the time-cancellation wait as a duration.
func (p PolicySettings) Wait() time.Duration {
	return time.Duration(p.TimeCancellationSeconds) * time.Second
}

// Deadline returns the per-execution deadline; zero means unbounded.
func (p PolicySettings) Deadline() time.Duration {
	return time.Duration(p.DeadlineSeconds) * time.Second
}

// VenueSettings declares one venue connection. Credentials may be plaintext
// or encrypted (the *_encrypted variants win when both are set).
type VenueSettings struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // okex, binance, huobi, bybit, bitmex, mxc, bitcoke, paper

	Symbol       string `yaml:"symbol"`
	InstrumentID string `yaml:"instrument_id"` // okex
	ContractType string `yaml:"contract_type"` // huobi
	MarketSymbol string `yaml:"market_symbol"` // huobi ticker alias
	Currency     string `yaml:"currency"`      // bitcoke margin currency
	LeverRate    int    `yaml:"lever_rate"`

	APIKey             string `yaml:"api_key"`
	APISecret          string `yaml:"api_secret"`
	Passphrase         string `yaml:"passphrase"`
	APIKeyEncrypted    string `yaml:"api_key_encrypted"`
	APISecretEncrypted string `yaml:"api_secret_encrypted"`

	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// StartPrice seeds the simulated market for paper venues.
	StartPrice string `yaml:"start_price"`
}

// Timeout returns the per-request venue timeout; zero lets the transport
// default apply.
func (v VenueSettings) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// LoadProfile parses the YAML execution profile at path.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(raw)
}

// ParseProfile parses profile bytes and validates venue declarations.
func ParseProfile(raw []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	seen := make(map[string]bool, len(p.Venues))
	for i, v := range p.Venues {
		if v.Name == "" {
			return nil, fmt.Errorf("venue %d: name is required", i)
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("venue %q declared twice", v.Name)
		}
		seen[v.Name] = true
		if v.Type == "" {
			return nil, fmt.Errorf("venue %q: type is required", v.Name)
		}
	}
	if _, err := p.Policy.Amplitude(); err != nil {
		return nil, err
	}
	if _, err := p.Policy.Offset(); err != nil {
		return nil, err
	}
	return &p, nil
}

func parseFraction(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
