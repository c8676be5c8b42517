package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	AWS      AWSConfig      `yaml:"aws"`
	Local    LocalConfig    `yaml:"local"`
	JWT      JWTConfig      `yaml:"jwt"`
	APNs     APNsConfig     `yaml:"apns"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// StoreConfig selects the backend of the hierarchical store
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, postgres or redis
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
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

// StorageConfig selects the blob storage
type StorageConfig struct {
	Driver    string        `yaml:"driver"` // local or s3
	URLExpiry time.Duration `yaml:"url_expiry"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region       string `yaml:"region"`
	S3Bucket     string `yaml:"s3_bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Endpoint     string `yaml:"endpoint"` // S3-compatible providers
	UsePathStyle bool   `yaml:"use_path_style"`
	PublicURL    string `yaml:"public_url"`
}

// LocalConfig holds local blob storage configuration
type LocalConfig struct {
	BasePath string `yaml:"base_path"`
	BaseURL  string `yaml:"base_url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// APNsConfig holds push notification configuration. Push is off when
// KeyPath is empty.
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, fills defaults and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.URLExpiry == 0 {
		c.Storage.URLExpiry = 7 * 24 * time.Hour
	}
	if c.Local.BasePath == "" {
		c.Local.BasePath = "./data/media"
	}
	if c.Local.BaseURL == "" {
		c.Local.BaseURL = fmt.Sprintf("http://localhost:%d/media", c.Server.Port)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the selected drivers are known and configured
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("aws.s3_bucket is required for the s3 storage driver")
		}
		// Media URLs are stored in message records, so they must not expire.
		if c.AWS.PublicURL == "" {
			return fmt.Errorf("aws.public_url is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}

	if c.APNs.KeyPath != "" && (c.APNs.KeyID == "" || c.APNs.TeamID == "" || c.APNs.Topic == "") {
		return fmt.Errorf("apns.key_id, apns.team_id and apns.topic are required with apns.key_path")
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
