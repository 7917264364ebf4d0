package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Log          LogConfig
	DB           DBConfig
	Tx           TxConfig
	Redis        RedisConfig
	Booking      BookingConfig
	Notification NotificationConfig
}

type AppConfig struct {
	Port     string
	Env      string
	Timezone string
}

type LogConfig struct {
	Level string
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxIdleConns int
	MaxOpenConns int
}

// TxConfig bounds the serializable booking transactions.
type TxConfig struct {
	LockTimeout time.Duration
	Timeout     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type BookingConfig struct {
	SlotLockEnabled    bool
	SlotLockTTL        time.Duration
	MinLeadMinutes     int
	DefaultHorizonDays int
	MaxHorizonDays     int
	NextSlotScanDays   int
}

type NotificationConfig struct {
	Driver      string
	QueueKey    string
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

const (
	NotificationDriverLog   = "log"
	NotificationDriverRedis = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)

	v.SetDefault("TX_LOCK_TIMEOUT", "5s")
	v.SetDefault("TX_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("BOOKING_SLOT_LOCK_ENABLED", true)
	v.SetDefault("BOOKING_SLOT_LOCK_TTL", "15s")
	v.SetDefault("BOOKING_MIN_LEAD_MINUTES", 0)
	v.SetDefault("BOOKING_DEFAULT_HORIZON_DAYS", 14)
	v.SetDefault("BOOKING_MAX_HORIZON_DAYS", 90)
	v.SetDefault("BOOKING_NEXT_SLOT_SCAN_DAYS", 30)

	v.SetDefault("NOTIFICATION_DRIVER", NotificationDriverLog)
	v.SetDefault("NOTIFICATION_QUEUE_KEY", "clinic:notifications")
	v.SetDefault("NOTIFICATION_WORKERS", 4)
	v.SetDefault("NOTIFICATION_BUFFER_SIZE", 256)
	v.SetDefault("NOTIFICATION_SEND_TIMEOUT", "5s")
}

// LoadConfig reads .env from the working directory when present and lets
// environment variables override it.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	config := &Config{
		App: AppConfig{
			Port:     v.GetString("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			Timezone: v.GetString("APP_TIMEZONE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Tx: TxConfig{
			LockTimeout: v.GetDuration("TX_LOCK_TIMEOUT"),
			Timeout:     v.GetDuration("TX_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Booking: BookingConfig{
			SlotLockEnabled:    v.GetBool("BOOKING_SLOT_LOCK_ENABLED"),
			SlotLockTTL:        v.GetDuration("BOOKING_SLOT_LOCK_TTL"),
			MinLeadMinutes:     v.GetInt("BOOKING_MIN_LEAD_MINUTES"),
			DefaultHorizonDays: v.GetInt("BOOKING_DEFAULT_HORIZON_DAYS"),
			MaxHorizonDays:     v.GetInt("BOOKING_MAX_HORIZON_DAYS"),
			NextSlotScanDays:   v.GetInt("BOOKING_NEXT_SLOT_SCAN_DAYS"),
		},
		Notification: NotificationConfig{
			Driver:      strings.ToLower(v.GetString("NOTIFICATION_DRIVER")),
			QueueKey:    v.GetString("NOTIFICATION_QUEUE_KEY"),
			Workers:     v.GetInt("NOTIFICATION_WORKERS"),
			BufferSize:  v.GetInt("NOTIFICATION_BUFFER_SIZE"),
			SendTimeout: v.GetDuration("NOTIFICATION_SEND_TIMEOUT"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the booking engine cannot run with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	if c.Tx.Timeout <= 0 || c.Tx.LockTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT and TX_LOCK_TIMEOUT must be positive")
	}
	if c.Tx.LockTimeout > c.Tx.Timeout {
		return fmt.Errorf("TX_LOCK_TIMEOUT (%s) must not exceed TX_TIMEOUT (%s)", c.Tx.LockTimeout, c.Tx.Timeout)
	}
	if c.Booking.NextSlotScanDays <= 0 || c.Booking.MaxHorizonDays <= 0 {
		return fmt.Errorf("BOOKING_NEXT_SLOT_SCAN_DAYS and BOOKING_MAX_HORIZON_DAYS must be positive")
	}
	switch c.Notification.Driver {
	case NotificationDriverLog, NotificationDriverRedis:
	default:
		return fmt.Errorf("unknown NOTIFICATION_DRIVER %q", c.Notification.Driver)
	}
	return nil
}

// Location returns the fallback timezone for clinics without one.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
