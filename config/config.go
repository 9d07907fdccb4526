// Package config loads and validates the application configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required|in:development,production"`
}

type MembershipConfig struct {
	// RecheckInterval is the enforcement loop period: the staleness
	// floor on entitlement checks when no push arrives.
	RecheckInterval time.Duration `mapstructure:"recheckInterval" validate:"required|min:1"`
}

type FeatureConfig struct {
	LiveVoice   bool `mapstructure:"liveVoice"`
	UltraVoices bool `mapstructure:"ultraVoices"`
	OfflineMode bool `mapstructure:"offlineMode"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type OIDCConfig struct {
	ClientID     string `mapstructure:"clientId" validate:"required"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURL  string `mapstructure:"redirectUrl" validate:"required|fullUrl"`
}

type CheckoutConfig struct {
	WebhookSecret string            `mapstructure:"webhookSecret" validate:"required"`
	Tolerance     time.Duration     `mapstructure:"tolerance"`
	Links         map[string]string `mapstructure:"links"`
}

type OfflineConfig struct {
	// VaultKeyHex is the hex-encoded 32-byte key sealing offline voice
	// bundles at rest.
	VaultKeyHex string `mapstructure:"vaultKey" validate:"required"`
}

type CatalogConfig struct {
	BaseURL         string        `mapstructure:"baseUrl"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"in:trace,debug,info,warn,error"`
}

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Membership MembershipConfig `mapstructure:"membership"`
	Features   FeatureConfig    `mapstructure:"features"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OIDC       OIDCConfig       `mapstructure:"oidc"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Offline    OfflineConfig    `mapstructure:"offline"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// VaultKey decodes the offline vault key.
func (c *Config) VaultKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Offline.VaultKeyHex)
	if err != nil {
		return nil, fmt.Errorf("offline.vaultKey: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("offline.vaultKey: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Load reads the YAML config at path, applies env overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	filename := filepath.Base(path)
	v.AddConfigPath(filepath.Dir(path))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "Free Voice")
	v.SetDefault("app.environment", "production")
	v.SetDefault("membership.recheckInterval", 5*time.Second)
	v.SetDefault("features.liveVoice", true)
	v.SetDefault("features.ultraVoices", true)
	v.SetDefault("features.offlineMode", true)
	v.SetDefault("checkout.tolerance", 5*time.Minute)
	v.SetDefault("catalog.refreshInterval", time.Minute)
	v.SetDefault("logger.level", "info")

	_ = v.BindEnv("logger.level", "FREEVOICE_LOG_LEVEL")
	_ = v.BindEnv("membership.recheckInterval", "FREEVOICE_RECHECK_INTERVAL")
	_ = v.BindEnv("postgres.dsn", "FREEVOICE_POSTGRES_DSN")
	_ = v.BindEnv("redis.addr", "FREEVOICE_REDIS_ADDR")
	_ = v.BindEnv("oidc.clientId", "FREEVOICE_OIDC_CLIENT_ID")
	_ = v.BindEnv("oidc.clientSecret", "FREEVOICE_OIDC_CLIENT_SECRET")
	_ = v.BindEnv("checkout.webhookSecret", "FREEVOICE_WEBHOOK_SECRET")
	_ = v.BindEnv("offline.vaultKey", "FREEVOICE_VAULT_KEY")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	vd := validate.Struct(&conf)
	if !vd.Validate() {
		return nil, fmt.Errorf("invalid config: %s", vd.Errors.One())
	}
	if _, err := conf.VaultKey(); err != nil {
		return nil, err
	}
	return &conf, nil
}
