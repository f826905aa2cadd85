package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Reporting ReportingConfig
	Logger    LoggerConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects where orders are read from. Driver "csv" reads
// CSVFile; "postgres" and "sqlite3" query Table through DSN.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	Table           string
	CSVFile         string
	ReadTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type CacheConfig struct {
	Backend       string
	Dir           string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	Version       string
}

type AuthConfig struct {
	CredentialsFile string
	SessionSecret   string
	SessionTTL      time.Duration
	CookieSecure    bool
	LoginRPS        float64
	LoginBurst      int
}

type ReportingConfig struct {
	TrendMethod     string
	PowerBIEmbedURL string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableCSRF      bool
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

var (
	validDrivers       = []string{"csv", "postgres", "sqlite3"}
	validCacheBackends = []string{"none", "file", "redis"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"json", "text"}
)

// Load reads configuration from the environment. A .env file (or the file
// named by ENV_FILE) is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnvString("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8501),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "csv"),
			DSN:             getEnvString("DB_DSN", ""),
			Table:           getEnvString("DB_TABLE", "CleanedAmazonData"),
			CSVFile:         getEnvString("CSV_FILE", "data/CleanedAmazonData.csv"),
			ReadTimeout:     getEnvDuration("DB_READ_TIMEOUT", 15*time.Second),
			MaxRetries:      getEnvInt("DB_MAX_RETRIES", 2),
			RetryBackoff:    getEnvDuration("DB_RETRY_BACKOFF", 500*time.Millisecond),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			Backend:       getEnvString("CACHE_BACKEND", "file"),
			Dir:           getEnvString("CACHE_DIR", ".cache"),
			RedisAddress:  getEnvString("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("CACHE_TTL", 10*time.Minute),
			Version:       getEnvString("CACHE_VERSION", "v2"),
		},
		Auth: AuthConfig{
			CredentialsFile: getEnvString("AUTH_CREDENTIALS_FILE", "credentials.yaml"),
			SessionSecret:   getEnvString("AUTH_SESSION_SECRET", ""),
			SessionTTL:      getEnvDuration("AUTH_SESSION_TTL", 8*time.Hour),
			CookieSecure:    getEnvBool("AUTH_COOKIE_SECURE", false),
			LoginRPS:        getEnvFloat("AUTH_LOGIN_RPS", 0.5),
			LoginBurst:      getEnvInt("AUTH_LOGIN_BURST", 5),
		},
		Reporting: ReportingConfig{
			TrendMethod:     getEnvString("REPORT_TREND", "ols"),
			PowerBIEmbedURL: getEnvString("POWERBI_EMBED_URL", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableCSRF:      getEnvBool("SECURITY_CSRF_ENABLED", true),
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8501"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate reports every invalid setting at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(name, value string, valid []string) {
		check(slices.Contains(valid, value), "invalid %s %q, must be one of: %s", name, value, strings.Join(valid, ", "))
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Server.ReadTimeout > 0 && c.Server.WriteTimeout > 0, "server read and write timeouts must be positive")

	db := c.Database
	oneOf("database driver", db.Driver, validDrivers)
	check(db.Driver != "csv" || db.CSVFile != "", "CSV file path cannot be empty")
	check(db.Driver == "csv" || db.DSN != "", "database DSN is required for driver %q", db.Driver)
	check(db.Table != "", "database table cannot be empty")
	check(db.ReadTimeout > 0, "database read timeout must be positive")
	check(db.MaxRetries >= 0, "database max retries cannot be negative")

	oneOf("cache backend", c.Cache.Backend, validCacheBackends)
	check(c.Cache.Backend != "redis" || c.Cache.RedisAddress != "", "redis address is required for the redis cache backend")
	check(c.Cache.Backend == "none" || c.Cache.TTL > 0, "cache TTL must be positive")

	check(c.Auth.SessionSecret == "" || len(c.Auth.SessionSecret) >= 32, "session secret must be at least 32 bytes")
	check(c.Auth.SessionTTL > 0, "session TTL must be positive")
	check(c.Auth.LoginRPS > 0 && c.Auth.LoginBurst > 0, "login rate limit must be positive")

	oneOf("log level", c.Logger.Level, validLogLevels)
	oneOf("log format", c.Logger.Format, validLogFormats)

	check(c.Security.RateLimitRPS > 0 && c.Security.RateLimitBurst > 0, "rate limit RPS and burst must be positive")

	return errors.Join(errs...)
}

// lookup parses the variable key, falling back to def when it is unset or
// does not parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvString(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, def int) int { return lookup(key, def, strconv.Atoi) }

func getEnvBool(key string, def bool) bool { return lookup(key, def, strconv.ParseBool) }

func getEnvDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

func getEnvFloat(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getEnvStringSlice(key string, def []string) []string {
	return lookup(key, def, func(s string) ([]string, error) {
		parts := strings.Split(s, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts, nil
	})
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// CacheKey identifies one cached snapshot of the order table.
func (c *Config) CacheKey() string {
	source := c.Database.Table
	if c.Database.Driver == "csv" {
		source = c.Database.CSVFile
	}
	return fmt.Sprintf("orders:%s:%s:%s", c.Database.Driver, source, c.Cache.Version)
}
