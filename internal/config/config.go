package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	AWS           AWSConfig           `yaml:"aws"`
	JWT           JWTConfig           `yaml:"jwt"`
	Log           LogConfig           `yaml:"log"`
	Places        PlacesConfig        `yaml:"places"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	APNs          APNsConfig          `yaml:"apns"`
	Notifications NotificationsConfig `yaml:"notifications"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration.
// URL wins over the discrete fields when set.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AWSConfig holds object storage configuration for avatars
type AWSConfig struct {
	Region        string `yaml:"region"`
	S3Bucket      string `yaml:"s3_bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// PlacesConfig holds places provider configuration
type PlacesConfig struct {
	APIKey               string        `yaml:"api_key"`
	BaseURL              string        `yaml:"base_url"`
	RegionCode           string        `yaml:"region_code"`
	Timeout              time.Duration `yaml:"timeout"`
	MapRadiusMeters      int           `yaml:"map_radius_meters"`
	ProposalRadiusMeters int           `yaml:"proposal_radius_meters"`
	MaxResults           int           `yaml:"max_results"`
	AutocompleteResults  int           `yaml:"autocomplete_results"`
	AutocompleteDebounce time.Duration `yaml:"autocomplete_debounce"`
	DetailsCacheTTL      time.Duration `yaml:"details_cache_ttl"`
	PhotoMaxWidth        int           `yaml:"photo_max_width"`
}

// DiscoveryConfig holds defaults for partner discovery
type DiscoveryConfig struct {
	MaxDistanceKM      float64       `yaml:"max_distance_km"`
	MinAge             int           `yaml:"min_age"`
	MaxAge             int           `yaml:"max_age"`
	AvailabilityWindow time.Duration `yaml:"availability_window"`
	UseFixturePartners bool          `yaml:"use_fixture_partners"`
}

// APNsConfig holds push notification configuration.
// Push is disabled when KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// NotificationsConfig holds reminder configuration
type NotificationsConfig struct {
	ReminderLead time.Duration `yaml:"reminder_lead"`
}

// RateLimitConfig holds per-user limits for place search endpoints
type RateLimitConfig struct {
	PlacesPerSecond float64 `yaml:"places_per_second"`
	PlacesBurst     int     `yaml:"places_burst"`
}

// Default returns a configuration usable for local development
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "lunchly",
			DBName:  "lunchly",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		AWS: AWSConfig{
			Region:   "eu-central-1",
			S3Bucket: "avatars",
		},
		JWT: JWTConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Places: PlacesConfig{
			BaseURL:              "https://places.googleapis.com",
			RegionCode:           "PL",
			Timeout:              10 * time.Second,
			MapRadiusMeters:      10000,
			ProposalRadiusMeters: 5000,
			MaxResults:           20,
			AutocompleteResults:  5,
			AutocompleteDebounce: 300 * time.Millisecond,
			DetailsCacheTTL:      time.Hour,
			PhotoMaxWidth:        400,
		},
		Discovery: DiscoveryConfig{
			MaxDistanceKM:      5,
			MinAge:             18,
			MaxAge:             65,
			AvailabilityWindow: time.Hour,
		},
		Notifications: NotificationsConfig{
			ReminderLead: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PlacesPerSecond: 5,
			PlacesBurst:     10,
		},
	}
}

// Load reads configuration from a YAML file on top of Default.
// A missing file is not an error; environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUNCHLY_DATABASE_DSN"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LUNCHLY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LUNCHLY_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("LUNCHLY_PLACES_API_KEY"); v != "" {
		cfg.Places.APIKey = v
	}
	if v := os.Getenv("LUNCHLY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Discovery.MinAge > c.Discovery.MaxAge {
		return fmt.Errorf("discovery.min_age %d exceeds max_age %d", c.Discovery.MinAge, c.Discovery.MaxAge)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
