package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"scams/internal/booking"
	"scams/internal/models"

	"github.com/joho/godotenv"
	yamlv2 "gopkg.in/yaml.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Security   SecurityConfig   `yaml:"security"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
	Admins     []string         `yaml:"admins"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Session   APISessionConfig   `yaml:"session"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
}

type APISessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Secure     bool   `yaml:"secure"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	MinDurationMinutes int    `yaml:"min_duration_minutes"`
	MaxDurationMinutes int    `yaml:"max_duration_minutes"`
	MaxAdvanceDays     int    `yaml:"max_advance_days"`
	WorkdayMinutes     int    `yaml:"workday_minutes"`
	DayStart           string `yaml:"day_start"`
	DayEnd             string `yaml:"day_end"`
	SlotMinutes        int    `yaml:"slot_minutes"`
	AlternativesLimit  int    `yaml:"alternatives_limit"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	Timezone           string `yaml:"timezone"`
}

// Rules converts the booking section into validator limits.
func (b BookingConfig) Rules() booking.Rules {
	return booking.Rules{
		MinDuration:    b.MinDurationMinutes,
		MaxDuration:    b.MaxDurationMinutes,
		MaxAdvanceDays: b.MaxAdvanceDays,
		WorkdayMinutes: b.WorkdayMinutes,
	}
}

// Location resolves the booking timezone, falling back to the server zone.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(b.Timezone)
}

type SecurityConfig struct {
	AESKey     string `yaml:"aes_key"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// Key decodes the base64url AES key. An empty key yields nil.
func (s SecurityConfig) Key() ([]byte, error) {
	if s.AESKey == "" {
		return nil, nil
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s.AESKey, "="))
	if err != nil {
		return nil, fmt.Errorf("decode aes key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("aes key must be 16, 24 or 32 bytes, got %d", len(key))
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether booking events should be published to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type WorkerConfig struct {
	Workers          int    `yaml:"workers"`
	MaxRetries       int    `yaml:"max_retries"`
	SweepIntervalSec int    `yaml:"sweep_interval_sec"`
	ReminderTime     string `yaml:"reminder_time"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	b := c.Booking
	if b.MinDurationMinutes <= 0 || b.MaxDurationMinutes < b.MinDurationMinutes {
		return fmt.Errorf("invalid booking durations: min %d, max %d", b.MinDurationMinutes, b.MaxDurationMinutes)
	}
	if b.MaxAdvanceDays < 0 {
		return errors.New("booking max_advance_days must not be negative")
	}
	if _, err := booking.ParseInterval(b.DayStart, b.DayEnd); err != nil {
		return fmt.Errorf("invalid booking day bounds: %w", err)
	}
	if _, err := b.Location(); err != nil {
		return fmt.Errorf("invalid booking timezone: %w", err)
	}
	if _, err := booking.ParseClock(c.Worker.ReminderTime); err != nil {
		return fmt.Errorf("invalid worker reminder_time: %w", err)
	}
	if _, err := c.Security.Key(); err != nil {
		return err
	}

	return nil
}

// IsAdmin reports whether email is listed as a bootstrap administrator.
func (c *Config) IsAdmin(email string) bool {
	for _, a := range c.Admins {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeoutSec == 0 {
		c.API.HTTP.ReadTimeoutSec = 10
	}
	if c.API.HTTP.WriteTimeoutSec == 0 {
		c.API.HTTP.WriteTimeoutSec = 30
	}
	if c.API.Session.CookieName == "" {
		c.API.Session.CookieName = "access_token"
	}
	if c.API.Session.TTLSeconds == 0 {
		c.API.Session.TTLSeconds = models.DefaultSessionTTL
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 20
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 40
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Правила бронирования
	if c.Booking.MinDurationMinutes == 0 {
		c.Booking.MinDurationMinutes = models.DefaultMinDurationMinutes
	}
	if c.Booking.MaxDurationMinutes == 0 {
		c.Booking.MaxDurationMinutes = models.DefaultMaxDurationMinutes
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if c.Booking.WorkdayMinutes == 0 {
		c.Booking.WorkdayMinutes = models.DefaultWorkdayMinutes
	}
	if c.Booking.DayStart == "" {
		c.Booking.DayStart = "08:00"
	}
	if c.Booking.DayEnd == "" {
		c.Booking.DayEnd = "18:00"
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = 60
	}
	if c.Booking.AlternativesLimit == 0 {
		c.Booking.AlternativesLimit = models.DefaultAlternativesLimit
	}
	if c.Booking.LockTTLSeconds == 0 {
		c.Booking.LockTTLSeconds = 10
	}

	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 10
	}

	if c.Worker.Workers == 0 {
		c.Worker.Workers = 2
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.SweepIntervalSec == 0 {
		c.Worker.SweepIntervalSec = 60
	}
	if c.Worker.ReminderTime == "" {
		c.Worker.ReminderTime = "17:00"
	}

	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// LoadRooms reads the room fixture file used to seed an empty database.
func LoadRooms(path string) ([]models.Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var roomsConfig struct {
		Rooms []models.Room `yaml:"rooms"`
	}
	if err := yamlv2.Unmarshal(data, &roomsConfig); err != nil {
		return nil, fmt.Errorf("parse rooms %s: %w", path, err)
	}

	if err := ValidateRooms(roomsConfig.Rooms); err != nil {
		return nil, err
	}
	return roomsConfig.Rooms, nil
}

func ValidateRooms(rooms []models.Room) error {
	names := make(map[string]bool)
	for _, room := range rooms {
		if strings.TrimSpace(room.Name) == "" {
			return errors.New("room with empty name")
		}
		if room.Capacity <= 0 {
			return fmt.Errorf("room '%s' has invalid capacity %d", room.Name, room.Capacity)
		}
		key := strings.ToLower(room.Name)
		if names[key] {
			return fmt.Errorf("duplicate room name found: %s", room.Name)
		}
		names[key] = true
	}
	return nil
}
