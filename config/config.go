package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Slack      SlackConfig      `yaml:"slack"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Env          string        `yaml:"env"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // mysql | postgres | sqlite
	DSN             string        `yaml:"dsn"`
	DSNParameter    string        `yaml:"dsn_parameter"` // SSM parameter name holding the DSN
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SeedCompany     string        `yaml:"seed_company"`
	SeedAdminEmail  string        `yaml:"seed_admin_email"`
	SeedAdminPass   string        `yaml:"seed_admin_password"`
}

type JWTConfig struct {
	AccessSecret string        `yaml:"access_secret"`
	AccessExpiry time.Duration `yaml:"access_expiry"`
	Issuer       string        `yaml:"issuer"`
}

type OAuthConfig struct {
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURL  string `yaml:"google_redirect_url"`
	// GoogleCompanyID is the tenant assigned to SSO users that have no
	// account yet.
	GoogleCompanyID uint `yaml:"google_company_id"`
}

// AttendanceConfig holds the reconciliation policy. Boundary and cap
// encode the maximum working day and are expected to change per customer.
type AttendanceConfig struct {
	Timezone      string        `yaml:"timezone"`
	Boundary      string        `yaml:"boundary"` // HH:MM, business time
	MaxHours      float64       `yaml:"max_hours"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepCutoff   time.Duration `yaml:"sweep_cutoff"`
	ShiftMode     string        `yaml:"shift_mode"` // latest | accumulate
}

type RealtimeConfig struct {
	Backplane     string `yaml:"backplane"` // local | redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ChannelPrefix string `yaml:"channel_prefix"`
	SendBuffer    int    `yaml:"send_buffer"`
}

type SlackConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8099",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "workday:workday@tcp(localhost:3306)/workday?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			SeedCompany:     "Default Company",
			SeedAdminEmail:  "admin@workday.local",
			SeedAdminPass:   "change-me-admin",
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 12 * time.Hour,
			Issuer:       "workday",
		},
		Attendance: AttendanceConfig{
			Timezone:      "Local",
			Boundary:      "18:00",
			MaxHours:      12,
			SweepInterval: 30 * time.Minute,
			SweepCutoff:   12 * time.Hour,
			ShiftMode:     "latest",
		},
		Realtime: RealtimeConfig{
			Backplane:     "local",
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "workday",
			SendBuffer:    256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (ATTENDANCE_CONFIG_PATH) and ATTENDANCE_* environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("ATTENDANCE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "ATTENDANCE_PORT")
	setString(&cfg.Server.Env, "ATTENDANCE_ENV")
	setString(&cfg.Database.Driver, "ATTENDANCE_DB_DRIVER")
	setString(&cfg.Database.DSN, "ATTENDANCE_DB_DSN")
	setString(&cfg.Database.DSNParameter, "ATTENDANCE_DB_DSN_SSM_PARAM")
	setString(&cfg.Database.SeedAdminEmail, "ATTENDANCE_SEED_ADMIN_EMAIL")
	setString(&cfg.Database.SeedAdminPass, "ATTENDANCE_SEED_ADMIN_PASSWORD")
	setString(&cfg.JWT.AccessSecret, "ATTENDANCE_JWT_SECRET")
	setString(&cfg.OAuth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.OAuth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.OAuth.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&cfg.Attendance.Timezone, "ATTENDANCE_TIMEZONE")
	setString(&cfg.Attendance.Boundary, "ATTENDANCE_BOUNDARY")
	setString(&cfg.Attendance.ShiftMode, "ATTENDANCE_SHIFT_MODE")
	setString(&cfg.Realtime.Backplane, "ATTENDANCE_BACKPLANE")
	setString(&cfg.Realtime.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Realtime.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Slack.Token, "SLACK_BOT_TOKEN")
	setString(&cfg.Slack.ChannelID, "SLACK_ATTENDANCE_CHANNEL")
	setString(&cfg.Log.Level, "ATTENDANCE_LOG_LEVEL")
	setString(&cfg.Log.Format, "ATTENDANCE_LOG_FORMAT")

	if v := os.Getenv("ATTENDANCE_MAX_HOURS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ATTENDANCE_MAX_HOURS: %w", err)
		}
		cfg.Attendance.MaxHours = f
	}
	if v := os.Getenv("ATTENDANCE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ATTENDANCE_SWEEP_INTERVAL: %w", err)
		}
		cfg.Attendance.SweepInterval = d
	}
	if v := os.Getenv("ATTENDANCE_SWEEP_CUTOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ATTENDANCE_SWEEP_CUTOFF: %w", err)
		}
		cfg.Attendance.SweepCutoff = d
	}
	if v := os.Getenv("GOOGLE_COMPANY_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GOOGLE_COMPANY_ID: %w", err)
		}
		cfg.OAuth.GoogleCompanyID = uint(id)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if _, err := c.Attendance.Location(); err != nil {
		return fmt.Errorf("invalid attendance timezone %q: %w", c.Attendance.Timezone, err)
	}
	if _, _, err := c.Attendance.BoundaryClock(); err != nil {
		return err
	}
	if c.Attendance.MaxHours <= 0 {
		return fmt.Errorf("attendance max_hours must be positive")
	}
	if c.Attendance.SweepInterval <= 0 || c.Attendance.SweepCutoff <= 0 {
		return fmt.Errorf("attendance sweep interval and cutoff must be positive")
	}
	switch c.Attendance.ShiftMode {
	case "latest", "accumulate":
	default:
		return fmt.Errorf("unknown attendance shift_mode %q", c.Attendance.ShiftMode)
	}
	switch c.Realtime.Backplane {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown realtime backplane %q", c.Realtime.Backplane)
	}
	return nil
}

// Location resolves the business time zone used for attendance dates.
func (a AttendanceConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// BoundaryClock parses Boundary into hour and minute.
func (a AttendanceConfig) BoundaryClock() (int, int, error) {
	t, err := time.Parse("15:04", a.Boundary)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid attendance boundary %q (use HH:MM): %w", a.Boundary, err)
	}
	return t.Hour(), t.Minute(), nil
}
