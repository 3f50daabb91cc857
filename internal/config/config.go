package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
)

// Config конфигурация сервиса
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Logs        LogsConfig        `toml:"logs"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Tracing     TracingConfig     `toml:"tracing"`
	Booking     BookingConfig     `toml:"booking"`
	Idempotency IdempotencyConfig `toml:"idempotency"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Sweeper     SweeperConfig     `toml:"sweeper"`
	Security    SecurityConfig    `toml:"security"`
	Kafka       KafkaConfig       `toml:"kafka"`
	SMS         SMSConfig         `toml:"sms"`
}

// ServerConfig настройки HTTP сервера (таймауты в секундах)
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// DatabaseConfig настройки хранилища
type DatabaseConfig struct {
	// Driver "postgres" или "sqlite3"
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
	// Path файл SQLite; ":memory:" для in-memory базы
	Path string `toml:"path"`

	MaxOpenConns    int `toml:"max_open_conns"`
	MaxIdleConns    int `toml:"max_idle_conns"`
	ConnMaxLifetime int `toml:"conn_max_lifetime"`

	// Isolation "repeatable_read" или "serializable"
	Isolation     string `toml:"isolation"`
	TxMaxAttempts int    `toml:"tx_max_attempts"`
	AutoMigrate   bool   `toml:"auto_migrate"`
}

type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MinIdleConns int    `toml:"min_idle_conns"`
	DialTimeout  int    `toml:"dial_timeout_ms"`
	ReadTimeout  int    `toml:"read_timeout_ms"`
	WriteTimeout int    `toml:"write_timeout_ms"`
	KeyPrefix    string `toml:"key_prefix"`
}

type LogsConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

type TracingConfig struct {
	Enabled        bool    `toml:"enabled"`
	Endpoint       string  `toml:"endpoint"`
	URLPath        string  `toml:"url_path"`
	Insecure       bool    `toml:"insecure"`
	SampleRatio    float64 `toml:"sample_ratio"`
	ServiceVersion string  `toml:"service_version"`
}

// BookingConfig параметры жизненного цикла брони
type BookingConfig struct {
	HoldTTLMinutes     int `toml:"hold_ttl_minutes"`
	MaxSeatsPerBooking int `toml:"max_seats_per_booking"`
}

type IdempotencyConfig struct {
	LockTTLSeconds   int `toml:"lock_ttl_seconds"`
	ResultTTLMinutes int `toml:"result_ttl_minutes"`
}

type RateLimitConfig struct {
	Enabled       bool `toml:"enabled"`
	Limit         int  `toml:"limit"`
	WindowSeconds int  `toml:"window_seconds"`
	// FailOpen пропускать запросы, когда Redis недоступен
	FailOpen bool `toml:"fail_open"`
}

type SweeperConfig struct {
	// IntervalSeconds период встроенного свипера; 0 - только внешний вызов
	IntervalSeconds int `toml:"interval_seconds"`
	BatchSize       int `toml:"batch_size"`
}

type SecurityConfig struct {
	// PublicOrigin origin публичного сайта; пустой отключает проверку
	PublicOrigin  string `toml:"public_origin"`
	SweeperSecret string `toml:"sweeper_secret"`
}

type KafkaConfig struct {
	Enabled      bool     `toml:"enabled"`
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	WriteTimeout int      `toml:"write_timeout"`
}

type SMSConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Sender  string `toml:"sender"`
	Timeout int    `toml:"timeout"`
}

// Default конфигурация со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     10,
			WriteTimeout:    10,
			IdleTimeout:     60,
			ShutdownTimeout: 15,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			Path:            "tours.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			Isolation:       "repeatable_read",
			TxMaxAttempts:   10,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  2000,
			ReadTimeout:  500,
			WriteTimeout: 500,
			KeyPrefix:    "tours",
		},
		Logs: LogsConfig{Level: "info"},
		Metrics: MetricsConfig{
			Path:        "/metrics",
			ServiceName: "tour_booking_service",
		},
		Tracing: TracingConfig{
			URLPath:        "/v1/traces",
			SampleRatio:    1,
			ServiceVersion: "dev",
		},
		Booking: BookingConfig{
			HoldTTLMinutes:     30,
			MaxSeatsPerBooking: 20,
		},
		Idempotency: IdempotencyConfig{
			LockTTLSeconds:   10,
			ResultTTLMinutes: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Limit:         60,
			WindowSeconds: 60,
			FailOpen:      true,
		},
		Sweeper: SweeperConfig{BatchSize: 100},
		Kafka: KafkaConfig{
			Topic:        "booking-events",
			WriteTimeout: 5,
		},
		SMS: SMSConfig{Timeout: 5},
	}
}

// Load читает конфигурацию из TOML-файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort))
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, errors.New("database.host and database.dbname are required for postgres"))
		}
	case "sqlite3":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite3"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite3, got %q", c.Database.Driver))
	}
	if c.Database.Isolation != "repeatable_read" && c.Database.Isolation != "serializable" {
		errs = append(errs, fmt.Errorf("database.isolation must be repeatable_read or serializable, got %q", c.Database.Isolation))
	}
	if c.Database.TxMaxAttempts < 1 {
		errs = append(errs, errors.New("database.tx_max_attempts must be at least 1"))
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		errs = append(errs, errors.New("booking.hold_ttl_minutes must be positive"))
	}
	if c.Booking.MaxSeatsPerBooking <= 0 {
		errs = append(errs, errors.New("booking.max_seats_per_booking must be positive"))
	}
	if c.Idempotency.LockTTLSeconds <= 0 || c.Idempotency.ResultTTLMinutes <= 0 {
		errs = append(errs, errors.New("idempotency ttl values must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.WindowSeconds <= 0) {
		errs = append(errs, errors.New("rate_limit.limit and rate_limit.window_seconds must be positive"))
	}
	if c.Sweeper.IntervalSeconds < 0 || c.Sweeper.BatchSize <= 0 {
		errs = append(errs, errors.New("sweeper.interval_seconds must be >= 0 and sweeper.batch_size positive"))
	}
	if c.Security.PublicOrigin != "" {
		if u, err := url.Parse(c.Security.PublicOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("security.public_origin is not an origin: %q", c.Security.PublicOrigin))
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required when kafka is enabled"))
	}
	if c.SMS.Enabled && c.SMS.URL == "" {
		errs = append(errs, errors.New("sms.url is required when sms is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DSN строка подключения для выбранного драйвера
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite3" {
		return SQLiteDSN(d.Path)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// SQLiteDSN DSN для go-sqlite3: BEGIN IMMEDIATE, ожидание блокировки, внешние ключи
func SQLiteDSN(path string) string {
	const params = "_txlock=immediate&_busy_timeout=5000&_foreign_keys=1"
	if path == ":memory:" {
		return "file::memory:?cache=shared&" + params
	}
	return "file:" + path + "?" + params
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (i IdempotencyConfig) LockTTL() time.Duration {
	return time.Duration(i.LockTTLSeconds) * time.Second
}

func (i IdempotencyConfig) ResultTTL() time.Duration {
	return time.Duration(i.ResultTTLMinutes) * time.Minute
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func (s SweeperConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (r RedisConfig) DialTimeoutDuration() time.Duration {
	return time.Duration(r.DialTimeout) * time.Millisecond
}

func (r RedisConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(r.ReadTimeout) * time.Millisecond
}

func (r RedisConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(r.WriteTimeout) * time.Millisecond
}
