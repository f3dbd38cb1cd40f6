package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the cache and score store sections.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultWalletAddress is the tracked wallet when neither the config file nor the environment names one.
const DefaultWalletAddress = "AM84n1iLdxgVTAyENBcLdjXoyvjentTbu5Q6EpKV1PeG"

// Config holds the overall configuration for the application.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Wallet      WalletConfig       `yaml:"wallet"`
	Solana      SolanaConfig       `yaml:"solana"`
	DEXScreener DEXScreenerConfig  `yaml:"dexScreener"`
	ScoreSvc    ScoreServiceConfig `yaml:"scoreService"`
	Cache       CacheConfig        `yaml:"cache"`
	ScoreStore  ScoreStoreConfig   `yaml:"scoreStore"`
	Redis       RedisConfig        `yaml:"redis"`
	Postgres    PostgresConfig     `yaml:"postgres"`
	Refresh     RefreshConfig      `yaml:"refresh"`
}

// ServerConfig holds the server-specific configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port         string   `yaml:"port"`
	ReadTimeout  int      `yaml:"readTimeout"`
	WriteTimeout int      `yaml:"writeTimeout"`
	IdleTimeout  int      `yaml:"idleTimeout"`
	AllowOrigins []string `yaml:"allowOrigins"`
	EnablePprof  bool     `yaml:"enablePprof"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

type WalletConfig struct {
	Address string `yaml:"address"`
}

// SolanaConfig holds the RPC node settings used by the balance fetcher.
type SolanaConfig struct {
	RPCEndpoint          string `yaml:"rpcEndpoint"`
	Commitment           string `yaml:"commitment"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	MaxAttempts          int    `yaml:"maxAttempts"`
	RetryDelayMillis     int64  `yaml:"retryDelayMillis"`
}

// DEXScreenerConfig holds the configuration for the DEX Screener client.
type DEXScreenerConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	APIKey                   string `yaml:"apiKey"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	BatchSpacingMillis       int64  `yaml:"batchSpacingMillis"`
	MaxConcurrentRequests    int    `yaml:"maxConcurrentRequests"`
}

// ScoreServiceConfig holds the configuration for the trust-score API client.
type ScoreServiceConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	APIKey                   string `yaml:"apiKey"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	BatchDelayMillis         int64  `yaml:"batchDelayMillis"`
	FailureBackoffMillis     int64  `yaml:"failureBackoffMillis"`
	ScoreTTLMinutes          int    `yaml:"scoreTTLMinutes"` // 0 keeps scores forever
}

// CacheConfig selects the holdings snapshot backend. The snapshot TTL itself is fixed.
type CacheConfig struct {
	Backend  string `yaml:"backend"`
	FilePath string `yaml:"filePath"`
	RedisKey string `yaml:"redisKey"`
}

type ScoreStoreConfig struct {
	Backend        string `yaml:"backend"`
	FilePath       string `yaml:"filePath"`
	RedisKeyPrefix string `yaml:"redisKeyPrefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RefreshConfig bounds synchronous and background refresh cycles. Values are in seconds.
type RefreshConfig struct {
	TimeoutSeconds            int `yaml:"timeoutSeconds"`
	BackgroundDeadlineSeconds int `yaml:"backgroundDeadlineSeconds"`
}

// LoadConfig loads configuration from a YAML file, applies environment overrides and defaults.
// A missing file is not an error: the service can run from environment variables alone.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logrus.Warnf("Config file %s not found, using environment and defaults", path)
	default:
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Solana.RPCEndpoint, "SOLANA_RPC_ENDPOINT")
	overrideString(&c.Wallet.Address, "WALLET_ADDRESS")
	overrideString(&c.DEXScreener.APIKey, "DEXSCREENER_API_KEY")
	overrideString(&c.ScoreSvc.APIKey, "SCORE_API_KEY")
	overrideString(&c.Redis.Addr, "REDIS_ADDR")
	overrideString(&c.Redis.Password, "REDIS_PASSWORD")
	overrideString(&c.Postgres.DSN, "POSTGRES_DSN")
	overrideString(&c.Logging.Level, "LOG_LEVEL")
	overrideString(&c.Cache.Backend, "CACHE_BACKEND")
	overrideString(&c.ScoreStore.Backend, "SCORE_STORE_BACKEND")
	overrideString(&c.Server.Port, "SERVER_PORT")

	if v, ok := os.LookupEnv("REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			logrus.Warnf("Ignoring REDIS_DB=%q: %v", v, err)
		} else {
			c.Redis.DB = db
		}
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		logrus.Debugf("%s set from environment", key)
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	// Synchronous refreshes may take up to the refresh timeout.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 45
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Wallet.Address == "" {
		c.Wallet.Address = DefaultWalletAddress
		logrus.Infof("Wallet.Address not set, defaulting to %s", c.Wallet.Address)
	}

	if c.Solana.RPCEndpoint == "" {
		c.Solana.RPCEndpoint = "https://api.mainnet-beta.solana.com"
		logrus.Infof("Solana.RPCEndpoint not set, defaulting to %s", c.Solana.RPCEndpoint)
	}
	if c.Solana.Commitment == "" {
		c.Solana.Commitment = "confirmed"
	}
	if c.Solana.RequestTimeoutMillis == 0 {
		c.Solana.RequestTimeoutMillis = 15000
	}
	if c.Solana.MaxAttempts == 0 {
		c.Solana.MaxAttempts = 3
	}
	if c.Solana.RetryDelayMillis == 0 {
		c.Solana.RetryDelayMillis = 500
	}

	if c.DEXScreener.BaseURL == "" {
		c.DEXScreener.BaseURL = "https://api.dexscreener.com/latest/dex"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", c.DEXScreener.BaseURL)
	}
	if c.DEXScreener.RequestTimeoutMillis == 0 {
		c.DEXScreener.RequestTimeoutMillis = 10000
		logrus.Infof("DEXScreener.RequestTimeoutMillis not set, defaulting to %d ms", c.DEXScreener.RequestTimeoutMillis)
	}
	if c.DEXScreener.MaxTokensPerBatchRequest == 0 {
		c.DEXScreener.MaxTokensPerBatchRequest = 30
		logrus.Infof("DEXScreener.MaxTokensPerBatchRequest not set, defaulting to %d", c.DEXScreener.MaxTokensPerBatchRequest)
	}
	if c.DEXScreener.BatchSpacingMillis == 0 {
		c.DEXScreener.BatchSpacingMillis = 200
	}
	if c.DEXScreener.MaxConcurrentRequests == 0 {
		c.DEXScreener.MaxConcurrentRequests = 4
	}

	if c.ScoreSvc.BaseURL == "" {
		c.ScoreSvc.BaseURL = "https://solsniffer.com/api/v2"
		logrus.Infof("ScoreService.BaseURL not set, defaulting to %s", c.ScoreSvc.BaseURL)
	}
	if c.ScoreSvc.RequestTimeoutMillis == 0 {
		c.ScoreSvc.RequestTimeoutMillis = 10000
	}
	if c.ScoreSvc.MaxTokensPerBatchRequest == 0 {
		c.ScoreSvc.MaxTokensPerBatchRequest = 20
	}
	if c.ScoreSvc.BatchDelayMillis == 0 {
		c.ScoreSvc.BatchDelayMillis = 1000
	}
	if c.ScoreSvc.FailureBackoffMillis == 0 {
		c.ScoreSvc.FailureBackoffMillis = 2000
	}
	if c.ScoreSvc.APIKey == "" {
		logrus.Warn("ScoreService.APIKey not set, trust score requests will likely be rejected")
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendFile
	}
	if c.Cache.FilePath == "" {
		c.Cache.FilePath = "data/cache.json"
	}
	if c.Cache.RedisKey == "" {
		c.Cache.RedisKey = "holdings:snapshot"
	}
	c.ScoreStore.Backend = strings.ToLower(strings.TrimSpace(c.ScoreStore.Backend))
	if c.ScoreStore.Backend == "" {
		c.ScoreStore.Backend = BackendFile
	}
	if c.ScoreStore.FilePath == "" {
		c.ScoreStore.FilePath = "data/token-scores.json"
	}
	if c.ScoreStore.RedisKeyPrefix == "" {
		c.ScoreStore.RedisKeyPrefix = "scores:"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Refresh.TimeoutSeconds == 0 {
		c.Refresh.TimeoutSeconds = 30
	}
	if c.Refresh.BackgroundDeadlineSeconds == 0 {
		c.Refresh.BackgroundDeadlineSeconds = 120
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.ScoreStore.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown score store backend %q", c.ScoreStore.Backend)
	}
	if c.ScoreStore.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("score store backend %q requires postgres.dsn or POSTGRES_DSN", BackendPostgres)
	}
	if strings.TrimSpace(c.Wallet.Address) == "" {
		return fmt.Errorf("wallet address is required")
	}
	if c.Refresh.BackgroundDeadlineSeconds < c.Refresh.TimeoutSeconds {
		return fmt.Errorf("refresh.backgroundDeadlineSeconds (%d) must not be shorter than refresh.timeoutSeconds (%d)",
			c.Refresh.BackgroundDeadlineSeconds, c.Refresh.TimeoutSeconds)
	}
	return nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second setting to a duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// ScoreTTL is the configured expiry for stored trust scores; zero means never.
func (c *Config) ScoreTTL() time.Duration {
	return time.Duration(c.ScoreSvc.ScoreTTLMinutes) * time.Minute
}
