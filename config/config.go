package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Environment string            `json:"environment"`
	Database    DatabaseConfig    `json:"database"`
	Redis       RedisConfig       `json:"redis"`
	Server      ServerConfig      `json:"server"`
	Stripe      StripeConfig      `json:"stripe"`
	Xendit      XenditConfig      `json:"xendit"`
	Reservation ReservationConfig `json:"reservation"`
	Resilience  ResilienceConfig  `json:"resilience"`
	Refunds     []RefundTier      `json:"refunds"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
}

type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	SSLMode      string        `json:"sslmode"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
	MaxIdleTime  time.Duration `json:"max_idle_time"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	MinIdle  int    `json:"min_idle"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type StripeConfig struct {
	Secret        string `json:"secret"`
	WebhookSecret string `json:"webhook_secret"`
}

type XenditConfig struct {
	Secret        string `json:"secret"`
	WebhookSecret string `json:"webhook_secret"`
}

// ReservationConfig tunes the reservation engine: how long the submission
// lock shields a slot combination and how far back the duplicate lookup
// reaches, plus the sweeps that retire stale state.
type ReservationConfig struct {
	LockTTL             time.Duration `json:"lock_ttl"`
	DedupWindow         time.Duration `json:"dedup_window"`
	PendingTimeout      time.Duration `json:"pending_timeout"`
	SweepInterval       time.Duration `json:"sweep_interval"`
	WebhookRetention    time.Duration `json:"webhook_retention"`
	AvailabilityCacheOn bool          `json:"availability_cache_on"`
}

type ResilienceConfig struct {
	MaxRetries         int           `json:"max_retries"`
	BaseDelay          time.Duration `json:"base_delay"`
	MaxDelay           time.Duration `json:"max_delay"`
	Multiplier         float64       `json:"multiplier"`
	JitterFactor       float64       `json:"jitter_factor"`
	BreakerMaxFailures int           `json:"breaker_max_failures"`
	BreakerCooldown    time.Duration `json:"breaker_cooldown"`
	BreakerHalfOpenMax int           `json:"breaker_half_open_max"`
}

// RefundTier mirrors services.RefundTier so deployments can override the
// cancellation refund schedule from config.
type RefundTier struct {
	MinHoursBefore float64 `json:"min_hours_before"`
	Percent        int64   `json:"percent"`
}

type RateLimitConfig struct {
	Enabled bool    `json:"enabled"`
	RPS     float64 `json:"rps"`
	Burst   int     `json:"burst"`
}

func LoadConfig() (*Config, error) {
	config := &Config{}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	config.Environment = env

	configDir, err := filepath.Abs("config")
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.json")

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}

		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}

	config.loadFromEnv()
	config.setDefaults()

	return config, nil
}

func (c *Config) loadFromEnv() {
	if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Database.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		c.Database.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		c.Database.SSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Redis.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}

	if stripeSecret := os.Getenv("STRIPE_SECRET"); stripeSecret != "" {
		c.Stripe.Secret = stripeSecret
	}
	if stripeWebhook := os.Getenv("STRIPE_WEBHOOK_SECRET"); stripeWebhook != "" {
		c.Stripe.WebhookSecret = stripeWebhook
	}

	if xenditSecret := os.Getenv("XENDIT_SECRET"); xenditSecret != "" {
		c.Xendit.Secret = xenditSecret
	}
	if xenditWebhook := os.Getenv("XENDIT_WEBHOOK_SECRET"); xenditWebhook != "" {
		c.Xendit.WebhookSecret = xenditWebhook
	}

	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		c.Server.Port = serverPort
	}
}

func (c *Config) setDefaults() {
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxLifetime == 0 {
		c.Database.MaxLifetime = time.Hour
	}
	if c.Database.MaxIdleTime == 0 {
		c.Database.MaxIdleTime = 10 * time.Minute
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Reservation.LockTTL == 0 {
		c.Reservation.LockTTL = 15 * time.Second
	}
	if c.Reservation.DedupWindow == 0 {
		c.Reservation.DedupWindow = 30 * time.Second
	}
	if c.Reservation.PendingTimeout == 0 {
		c.Reservation.PendingTimeout = 30 * time.Minute
	}
	if c.Reservation.SweepInterval == 0 {
		c.Reservation.SweepInterval = time.Minute
	}
	if c.Reservation.WebhookRetention == 0 {
		c.Reservation.WebhookRetention = 7 * 24 * time.Hour
	}

	if c.Resilience.MaxRetries == 0 {
		c.Resilience.MaxRetries = 3
	}
	if c.Resilience.BaseDelay == 0 {
		c.Resilience.BaseDelay = 100 * time.Millisecond
	}
	if c.Resilience.MaxDelay == 0 {
		c.Resilience.MaxDelay = 5 * time.Second
	}
	if c.Resilience.Multiplier == 0 {
		c.Resilience.Multiplier = 2.0
	}
	if c.Resilience.JitterFactor == 0 {
		c.Resilience.JitterFactor = 0.2
	}
	if c.Resilience.BreakerMaxFailures == 0 {
		c.Resilience.BreakerMaxFailures = 5
	}
	if c.Resilience.BreakerCooldown == 0 {
		c.Resilience.BreakerCooldown = 30 * time.Second
	}
	if c.Resilience.BreakerHalfOpenMax == 0 {
		c.Resilience.BreakerHalfOpenMax = 3
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 100.0
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 200
	}
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
