package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/zoom"
)

// Config holds the server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	TLS      TLSConfig      `yaml:"tls"`
	Database DatabaseConfig `yaml:"database"`
	Data     DataConfig     `yaml:"data"`
	Reader   ReaderConfig   `yaml:"reader"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the listen address
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// TLSConfig holds HTTPS settings
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"certFile"`
	KeyFile    string `yaml:"keyFile"`
	MinVersion string `yaml:"minVersion"`
}

// DatabaseConfig holds the sqlite location and optional seed file
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	SeedFile string `yaml:"seedFile"`
}

// DataConfig holds file locations for progress and page images
type DataConfig struct {
	Path       string `yaml:"path"`
	AssetsPath string `yaml:"assetsPath"`
}

// ReaderConfig tunes the reading surface
type ReaderConfig struct {
	ZoomMin          float64       `yaml:"zoomMin"`
	ZoomMax          float64       `yaml:"zoomMax"`
	ZoomStep         float64       `yaml:"zoomStep"`
	FlipDuration     time.Duration `yaml:"flipDuration"`
	BoundaryDuration time.Duration `yaml:"boundaryDuration"`
}

// LogConfig selects the zap preset
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "8080"},
		TLS:    TLSConfig{MinVersion: "1.2"},
		Database: DatabaseConfig{
			Path: "./data/reader.db",
		},
		Data: DataConfig{
			Path:       "./data",
			AssetsPath: "./data/assets",
		},
		Reader: ReaderConfig{
			ZoomMin:          zoom.DefaultMin,
			ZoomMax:          zoom.DefaultMax,
			ZoomStep:         zoom.DefaultStep,
			FlipDuration:     600 * time.Millisecond,
			BoundaryDuration: 2 * time.Second,
		},
		Log: LogConfig{Mode: "development"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment overrides, in that order
func LoadConfig(log *logger.Logger) (*Config, error) {
	cfg := Default()

	if path := GetEnv("CONFIG_FILE", "", log); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Server.Host = GetEnv("SERVER_HOST", cfg.Server.Host, log)
	cfg.Server.Port = GetEnv("SERVER_PORT", cfg.Server.Port, log)
	cfg.TLS.Enabled = GetEnvAsBool("TLS_ENABLED", cfg.TLS.Enabled, log)
	cfg.TLS.CertFile = GetEnv("TLS_CERT_FILE", cfg.TLS.CertFile, log)
	cfg.TLS.KeyFile = GetEnv("TLS_KEY_FILE", cfg.TLS.KeyFile, log)
	cfg.TLS.MinVersion = GetEnv("TLS_MIN_VERSION", cfg.TLS.MinVersion, log)
	cfg.Database.Path = GetEnv("DB_PATH", cfg.Database.Path, log)
	cfg.Database.SeedFile = GetEnv("SEED_FILE", cfg.Database.SeedFile, log)
	cfg.Data.Path = GetEnv("DATA_PATH", cfg.Data.Path, log)
	cfg.Data.AssetsPath = GetEnv("ASSETS_PATH", cfg.Data.AssetsPath, log)
	cfg.Reader.ZoomMin = GetEnvAsFloat("ZOOM_MIN", cfg.Reader.ZoomMin, log)
	cfg.Reader.ZoomMax = GetEnvAsFloat("ZOOM_MAX", cfg.Reader.ZoomMax, log)
	cfg.Reader.ZoomStep = GetEnvAsFloat("ZOOM_STEP", cfg.Reader.ZoomStep, log)
	cfg.Reader.FlipDuration = GetEnvAsMillis("FLIP_DURATION_MS", cfg.Reader.FlipDuration, log)
	cfg.Reader.BoundaryDuration = GetEnvAsMillis("BOUNDARY_DURATION_MS", cfg.Reader.BoundaryDuration, log)
	cfg.Log.Mode = GetEnv("LOG_MODE", cfg.Log.Mode, log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the reader cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server port is required")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS is enabled but cert or key file is missing")
	}
	if err := zoom.ValidateRange(c.Reader.ZoomMin, c.Reader.ZoomMax); err != nil {
		return fmt.Errorf("reader zoom: %w", err)
	}
	if c.Reader.ZoomStep <= 0 {
		return fmt.Errorf("reader zoom step must be positive, got %v", c.Reader.ZoomStep)
	}
	if c.Reader.FlipDuration < 0 || c.Reader.BoundaryDuration <= 0 {
		return fmt.Errorf("reader durations must be positive")
	}
	return nil
}

// GetEnv returns the environment value for key or defaultVal when unset
func GetEnv(key, defaultVal string, log *logger.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	if log != nil {
		log.Debug("Environment variable found, using environment", "env_var", key)
	}
	return val
}

// GetEnvAsFloat parses a float environment value, falling back to defaultVal
func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as float, using default", "env_var", key, "providedVal", valStr, "defaultVal", defaultVal)
		}
		return defaultVal
	}
	return f
}

// GetEnvAsBool parses a boolean environment value, falling back to defaultVal
func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as bool, using default", "env_var", key, "providedVal", valStr, "defaultVal", defaultVal)
		}
		return defaultVal
	}
	return b
}

// GetEnvAsMillis reads a whole number of milliseconds
func GetEnvAsMillis(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	ms, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default", "env_var", key, "providedVal", valStr, "defaultVal", defaultVal)
		}
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}
