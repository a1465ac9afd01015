package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"

	"github.com/spf13/viper"
)

// Flags
var (
	modeFlag = flag.String("mode", "", "application mode: gateway, matcher or all")
)

// Errors
var (
	ErrInvalidMode             = errors.New("invalid mode")
	ErrInvalidLogLevel         = errors.New("invalid log level")
	ErrNoSecret                = errors.New("JWT_SECRET is required")
	ErrLockShorterThanProposal = errors.New("DRIVER_LOCK_TTL must exceed PROPOSAL_TIMEOUT")
	ErrRetryDelayTooShort      = errors.New("RETRY_DELAY must be at least 1s")
	ErrInvalidGridSize         = errors.New("grid dimensions must be positive")
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode

		HTTP     HTTPConfig
		Grid     GridConfig
		Matching MatchingConfig
		Fare     FareConfig
		Redis    RedisConfig
		Database DatabaseConfig
		Auth     AuthConfig

		LogLevel string
	}

	HTTPConfig struct {
		Port         int           `mapstructure:"HTTP_PORT"`
		ReadTimeout  time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
		WSSendBuffer int           `mapstructure:"WS_SEND_BUFFER"`
	}

	GridConfig struct {
		SizeX int `mapstructure:"GRID_SIZE_X"`
		SizeY int `mapstructure:"GRID_SIZE_Y"`
	}

	MatchingConfig struct {
		MaxSearchRadius int           `mapstructure:"MAX_SEARCH_RADIUS"`
		ProposalTimeout time.Duration `mapstructure:"PROPOSAL_TIMEOUT"`
		DriverLockTTL   time.Duration `mapstructure:"DRIVER_LOCK_TTL"`
		RetryDelay      time.Duration `mapstructure:"RETRY_DELAY"`
		ReaperInterval  time.Duration `mapstructure:"REAPER_INTERVAL"`
		SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
		HeartbeatTTL    time.Duration `mapstructure:"HEARTBEAT_TTL"`
		Workers         int           `mapstructure:"MATCHING_WORKERS"`
		ReadBlock       time.Duration `mapstructure:"READ_BLOCK"`
		ClaimMinIdle    time.Duration `mapstructure:"CLAIM_MIN_IDLE"`
	}

	FareConfig struct {
		BaseFare     int64         `mapstructure:"BASE_FARE"`
		PricePerCell int64         `mapstructure:"PRICE_PER_CELL"`
		MinFare      int64         `mapstructure:"MIN_FARE"`
		TimePerCell  time.Duration `mapstructure:"TIME_PER_CELL"`
	}

	RedisConfig struct {
		Host         string `mapstructure:"REDIS_HOST"`
		Port         int    `mapstructure:"REDIS_PORT"`
		Password     string `mapstructure:"REDIS_PASSWORD"`
		DB           int    `mapstructure:"REDIS_DB"`
		PoolSize     int    `mapstructure:"REDIS_POOL_SIZE"`
		MinIdleConns int    `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	}

	DatabaseConfig struct {
		Host     string `mapstructure:"POSTGRES_HOST"`
		Port     int    `mapstructure:"POSTGRES_PORT"`
		User     string `mapstructure:"POSTGRES_USER"`
		Password string `mapstructure:"POSTGRES_PASSWORD"`
		Database string `mapstructure:"POSTGRES_DB"`
		SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`

		MaxConns        int32         `mapstructure:"POSTGRES_MAX_CONNS"`     // максимум открытых соединений
		MinConns        int32         `mapstructure:"POSTGRES_MIN_CONNS"`     // минимум соединений в пуле
		MaxConnLifetime time.Duration `mapstructure:"POSTGRES_CONN_LIFETIME"` // макс. "время жизни" соединения
		MaxConnIdleTime time.Duration `mapstructure:"POSTGRES_CONN_IDLETIME"` // макс. "время простоя" соединения
	}

	AuthConfig struct {
		JWTSecret string `mapstructure:"JWT_SECRET"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// RedisAddr returns the substrate address in host:port form.
func (c RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func NewConfig(filepath string) (*Config, error) {
	cfg, err := load(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Parsing flags. The -mode flag wins over the MODE key.
	parseFlags(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func load(filepath string) (*Config, error) {
	setDefaults()
	viper.AutomaticEnv()

	// Optional YAML file. Environment variables injected by docker-compose
	// are used when the file is absent.
	if filepath != "" {
		viper.SetConfigFile(filepath)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Mode:     types.ServiceMode(viper.GetString("MODE")),
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	cfg.HTTP = HTTPConfig{
		Port:         viper.GetInt("HTTP_PORT"),
		ReadTimeout:  viper.GetDuration("HTTP_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("HTTP_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("HTTP_IDLE_TIMEOUT"),
		WSSendBuffer: viper.GetInt("WS_SEND_BUFFER"),
	}

	cfg.Grid = GridConfig{
		SizeX: viper.GetInt("GRID_SIZE_X"),
		SizeY: viper.GetInt("GRID_SIZE_Y"),
	}

	cfg.Matching = MatchingConfig{
		MaxSearchRadius: viper.GetInt("MAX_SEARCH_RADIUS"),
		ProposalTimeout: viper.GetDuration("PROPOSAL_TIMEOUT"),
		DriverLockTTL:   viper.GetDuration("DRIVER_LOCK_TTL"),
		RetryDelay:      viper.GetDuration("RETRY_DELAY"),
		ReaperInterval:  viper.GetDuration("REAPER_INTERVAL"),
		SweepInterval:   viper.GetDuration("SWEEP_INTERVAL"),
		HeartbeatTTL:    viper.GetDuration("HEARTBEAT_TTL"),
		Workers:         viper.GetInt("MATCHING_WORKERS"),
		ReadBlock:       viper.GetDuration("READ_BLOCK"),
		ClaimMinIdle:    viper.GetDuration("CLAIM_MIN_IDLE"),
	}

	cfg.Fare = FareConfig{
		BaseFare:     viper.GetInt64("BASE_FARE"),
		PricePerCell: viper.GetInt64("PRICE_PER_CELL"),
		MinFare:      viper.GetInt64("MIN_FARE"),
		TimePerCell:  viper.GetDuration("TIME_PER_CELL"),
	}

	cfg.Redis = RedisConfig{
		Host:         viper.GetString("REDIS_HOST"),
		Port:         viper.GetInt("REDIS_PORT"),
		Password:     viper.GetString("REDIS_PASSWORD"),
		DB:           viper.GetInt("REDIS_DB"),
		PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
		MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
	}

	cfg.Database = DatabaseConfig{
		Host:            viper.GetString("POSTGRES_HOST"),
		Port:            viper.GetInt("POSTGRES_PORT"),
		User:            viper.GetString("POSTGRES_USER"),
		Password:        viper.GetString("POSTGRES_PASSWORD"),
		Database:        viper.GetString("POSTGRES_DB"),
		SSLMode:         viper.GetString("POSTGRES_SSLMODE"),
		MaxConns:        viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns:        viper.GetInt32("POSTGRES_MIN_CONNS"),
		MaxConnLifetime: viper.GetDuration("POSTGRES_CONN_LIFETIME"),
		MaxConnIdleTime: viper.GetDuration("POSTGRES_CONN_IDLETIME"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: viper.GetString("JWT_SECRET"),
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("MODE", string(types.AllInOne))
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("HTTP_PORT", 8080)
	viper.SetDefault("HTTP_READ_TIMEOUT", "5s")
	viper.SetDefault("HTTP_WRITE_TIMEOUT", "10s")
	viper.SetDefault("HTTP_IDLE_TIMEOUT", "120s")
	viper.SetDefault("WS_SEND_BUFFER", 32)

	viper.SetDefault("GRID_SIZE_X", 100)
	viper.SetDefault("GRID_SIZE_Y", 100)

	viper.SetDefault("MAX_SEARCH_RADIUS", 20)
	viper.SetDefault("PROPOSAL_TIMEOUT", "25s")
	viper.SetDefault("DRIVER_LOCK_TTL", "30s")
	viper.SetDefault("RETRY_DELAY", "2s")
	viper.SetDefault("REAPER_INTERVAL", "1s")
	viper.SetDefault("SWEEP_INTERVAL", "5s")
	viper.SetDefault("HEARTBEAT_TTL", "10s")
	viper.SetDefault("MATCHING_WORKERS", 2)
	viper.SetDefault("READ_BLOCK", "5s")
	viper.SetDefault("CLAIM_MIN_IDLE", "60s")

	viper.SetDefault("BASE_FARE", 100)
	viper.SetDefault("PRICE_PER_CELL", 15)
	viper.SetDefault("MIN_FARE", 150)
	viper.SetDefault("TIME_PER_CELL", "30s")

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 50)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.SetDefault("POSTGRES_DB", "dispatch")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 20)
	viper.SetDefault("POSTGRES_MIN_CONNS", 2)
	viper.SetDefault("POSTGRES_CONN_LIFETIME", "30m")
	viper.SetDefault("POSTGRES_CONN_IDLETIME", "5m")
}

func parseFlags(cfg *Config) {
	if modeFlag != nil && *modeFlag != "" {
		cfg.Mode = types.ServiceMode(*modeFlag)
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case types.GatewayService, types.MatcherService, types.AllInOne:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	if !logger.ValidateLogLevel(c.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Auth.JWTSecret == "" {
		return ErrNoSecret
	}
	if c.Grid.SizeX < 1 || c.Grid.SizeY < 1 {
		return ErrInvalidGridSize
	}
	if c.Matching.DriverLockTTL <= c.Matching.ProposalTimeout {
		return ErrLockShorterThanProposal
	}
	if c.Matching.RetryDelay < time.Second {
		return ErrRetryDelayTooShort
	}

	return nil
}
