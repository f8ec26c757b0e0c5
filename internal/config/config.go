package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"steward-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKeyHash  string // bcrypt hash; empty disables admin routes
	LogLevel            string
	LogPretty           bool

	StewardAddress  string // account that holds the token while foreclosed
	Artist          string
	Beneficiary     string
	Platform        string
	InitialPriceWei string
	PatronagePct    uint64
	TokenID         uint64
	TokenURI        string
	KeeperInterval  time.Duration
	PayoutAutoSweep bool
	LoginNonceTTL   time.Duration
	LoginDomain     string
}

const defaultInitialPriceWei = "100000000000000000" // 0.1 ETH

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STEWARD_INITIAL_PRICE_WEI", defaultInitialPriceWei)
	viper.SetDefault("STEWARD_PATRONAGE_PCT", 5)
	viper.SetDefault("STEWARD_TOKEN_ID", 42)
	viper.SetDefault("KEEPER_INTERVAL", time.Minute)
	viper.SetDefault("LOGIN_NONCE_TTL", 5*time.Minute)
	viper.SetDefault("LOGIN_DOMAIN", "steward")

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKeyHash:  viper.GetString("HEALTH_ADMIN_KEY_HASH"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		LogPretty:           viper.GetBool("LOG_PRETTY"),

		StewardAddress:  viper.GetString("STEWARD_ADDRESS"),
		Artist:          viper.GetString("STEWARD_ARTIST"),
		Beneficiary:     viper.GetString("STEWARD_BENEFICIARY"),
		Platform:        viper.GetString("STEWARD_PLATFORM"),
		InitialPriceWei: viper.GetString("STEWARD_INITIAL_PRICE_WEI"),
		PatronagePct:    viper.GetUint64("STEWARD_PATRONAGE_PCT"),
		TokenID:         viper.GetUint64("STEWARD_TOKEN_ID"),
		TokenURI:        viper.GetString("STEWARD_TOKEN_URI"),
		KeeperInterval:  viper.GetDuration("KEEPER_INTERVAL"),
		PayoutAutoSweep: viper.GetBool("PAYOUT_AUTO_SWEEP"),
		LoginNonceTTL:   viper.GetDuration("LOGIN_NONCE_TTL"),
		LoginDomain:     viper.GetString("LOGIN_DOMAIN"),
	}, nil
}

// Validate rejects malformed addresses and amounts before anything is
// persisted with them.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct{ key, value string }{
		{"STEWARD_ADDRESS", c.StewardAddress},
		{"STEWARD_ARTIST", c.Artist},
		{"STEWARD_BENEFICIARY", c.Beneficiary},
		{"STEWARD_PLATFORM", c.Platform},
	} {
		addr, err := validation.ParseAddress(f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
			continue
		}
		if addr == (common.Address{}) {
			errs = append(errs, fmt.Errorf("%s: zero address", f.key))
		}
	}
	if _, err := validation.ParseWei(c.InitialPriceWei); err != nil {
		errs = append(errs, fmt.Errorf("STEWARD_INITIAL_PRICE_WEI: %w", err))
	}
	if c.PatronagePct == 0 || c.PatronagePct > 100 {
		errs = append(errs, fmt.Errorf("STEWARD_PATRONAGE_PCT: %d not in 1..100", c.PatronagePct))
	}
	if c.Env == "production" && c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET: required in production"))
	}
	if c.KeeperInterval < 0 {
		errs = append(errs, errors.New("KEEPER_INTERVAL: must not be negative"))
	}
	return errors.Join(errs...)
}

// InitialPrice is the parsed STEWARD_INITIAL_PRICE_WEI. Call Validate first.
func (c *Config) InitialPrice() *uint256.Int {
	v, err := validation.ParseWei(c.InitialPriceWei)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}
