package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/bilitade/hubbo/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	defaultLoginPerMinute   = 5
	defaultLoginPerHour     = 30
	defaultRefreshPerMinute = 10
	defaultRefreshPerHour   = 120
	defaultGeneralPerMinute = 120
	defaultGeneralPerHour   = 3000
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the hubbo service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis address for the shared rate limit counters
	// When empty the limiter keeps exact in-process sliding windows instead
	RedisAddr string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Rate limit thresholds per operation class
	LoginPerMinute   int
	LoginPerHour     int
	RefreshPerMinute int
	RefreshPerHour   int
	GeneralPerMinute int
	GeneralPerHour   int

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		Environment:      defaultEnvironment,
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		LoginPerMinute:   defaultLoginPerMinute,
		LoginPerHour:     defaultLoginPerHour,
		RefreshPerMinute: defaultRefreshPerMinute,
		RefreshPerHour:   defaultRefreshPerHour,
		GeneralPerMinute: defaultGeneralPerMinute,
		GeneralPerHour:   defaultGeneralPerHour,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":      setString(&c.RedisAddr),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":  setDuration(&c.RefreshTTL),
		"LOGIN_PER_MINUTE":   setInt(&c.LoginPerMinute),
		"LOGIN_PER_HOUR":     setInt(&c.LoginPerHour),
		"REFRESH_PER_MINUTE": setInt(&c.RefreshPerMinute),
		"REFRESH_PER_HOUR":   setInt(&c.RefreshPerHour),
		"GENERAL_PER_MINUTE": setInt(&c.GeneralPerMinute),
		"GENERAL_PER_HOUR":   setInt(&c.GeneralPerHour),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("hubbo", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for shared rate limit counters")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.IntVar(&c.LoginPerMinute, "login-per-minute", c.LoginPerMinute, "Login attempts allowed per origin per minute")
	fs.IntVar(&c.LoginPerHour, "login-per-hour", c.LoginPerHour, "Login attempts allowed per origin per hour")
	fs.IntVar(&c.RefreshPerMinute, "refresh-per-minute", c.RefreshPerMinute, "Refresh attempts allowed per origin per minute")
	fs.IntVar(&c.RefreshPerHour, "refresh-per-hour", c.RefreshPerHour, "Refresh attempts allowed per origin per hour")
	fs.IntVar(&c.GeneralPerMinute, "general-per-minute", c.GeneralPerMinute, "Authenticated requests allowed per user per minute")
	fs.IntVar(&c.GeneralPerHour, "general-per-hour", c.GeneralPerHour, "Authenticated requests allowed per user per hour")

	return fs.Parse(args)
}
