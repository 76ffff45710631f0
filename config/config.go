package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Source    SourceConfig    `yaml:"source"`
	Filter    FilterConfig    `yaml:"filter"`
	Extract   ExtractConfig   `yaml:"extract"`
	Store     StoreConfig     `yaml:"store"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Minio     MinioConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SourceConfig points at the published berthing schedule
type SourceConfig struct {
	PDFURL         string `yaml:"pdf_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxSizeMB      int    `yaml:"max_size_mb"`
}

type FilterConfig struct {
	ValidPorts      []string `yaml:"valid_ports"`
	CategoryKeyword string   `yaml:"category_keyword"`
	// ETAWindowDays restricts rows to an ETA within ±N days of today. 0 disables it.
	ETAWindowDays int `yaml:"eta_window_days"`
	// FoldPortCase lower-cases the last port after its first letter, so
	// "MUNDRA" reads as "Mundra". Off keeps the rest of the name as printed.
	FoldPortCase bool `yaml:"fold_port_case"`
}

type ExtractConfig struct {
	HeaderRows   int   `yaml:"header_rows"`
	StrictHeader *bool `yaml:"strict_header"`
	MinColumns   int   `yaml:"min_columns"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"` // memory, mongo, postgres
	KeepBatches int    `yaml:"keep_batches"`
}

type MongoConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type MinioConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

type AuthConfig struct {
	Enabled          bool   `yaml:"enabled"`
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Load reads a YAML config file. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 32
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Source.PDFURL == "" {
		c.Source.PDFURL = "http://ezport.hipg.lk/Localfolder/Berthing/CQYB.pdf"
	}
	if c.Source.TimeoutSeconds == 0 {
		c.Source.TimeoutSeconds = 30
	}
	if c.Source.MaxSizeMB == 0 {
		c.Source.MaxSizeMB = 32
	}
	if len(c.Filter.ValidPorts) == 0 {
		c.Filter.ValidPorts = []string{"Mundra", "Deendayal", "Mumbai", "Pipavav"}
	}
	if c.Filter.CategoryKeyword == "" {
		c.Filter.CategoryKeyword = "roro"
	}
	if c.Extract.HeaderRows == 0 {
		c.Extract.HeaderRows = 2
	}
	if c.Extract.StrictHeader == nil {
		strict := true
		c.Extract.StrictHeader = &strict
	}
	if c.Extract.MinColumns == 0 {
		c.Extract.MinColumns = 19
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "berthwatch"
	}
	if c.Mongo.TimeoutSeconds == 0 {
		c.Mongo.TimeoutSeconds = 10
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.Prefix == "" {
		c.Minio.Prefix = "schedules"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}

// Validate checks settings that have no sensible default
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required for store driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for store driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.Bucket == "") {
		return fmt.Errorf("minio.endpoint and minio.bucket are required when minio is enabled")
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
