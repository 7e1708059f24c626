// Package cfg loads and validates service configuration. Configuration comes
// from a YAML file selected by CONFIG_FILE, with environment variables
// overriding individual values, or from environment variables alone.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	ListenAddr    string
	ModelsDir     string
	DataPath      string // empty disables prediction history
	JWTSecret     string // empty disables identity extraction
	LogLevel      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxImageBytes int64
}

type ConfigFile struct {
	Server struct {
		ListenAddr   string `yaml:"listenAddr"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`

	Models struct {
		Dir           string `yaml:"dir"`
		MaxImageBytes int64  `yaml:"maxImageBytes"`
	} `yaml:"models"`

	History struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"history"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = 10 * time.Second
	}
	writeTimeout, err := time.ParseDuration(config.Server.WriteTimeout)
	if err != nil {
		writeTimeout = 10 * time.Second
	}

	settings := Settings{
		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", orDefault(config.Server.ListenAddr, ":8080")),
		ModelsDir:     getEnvOrDefault("MODELS_DIR", orDefault(config.Models.Dir, "models")),
		DataPath:      getEnvOrDefault("DATA_PATH", config.History.DataPath),
		JWTSecret:     getEnvOrDefault("JWT_SECRET", config.Auth.JWTSecret),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", orDefault(config.Logging.Level, "info")),
		ReadTimeout:   getDurationOrDefault("READ_TIMEOUT", readTimeout),
		WriteTimeout:  getDurationOrDefault("WRITE_TIMEOUT", writeTimeout),
		MaxImageBytes: getInt64OrDefault("MAX_IMAGE_BYTES", orDefaultInt64(config.Models.MaxImageBytes, 10<<20)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ListenAddr:    getEnvOrDefault("LISTEN_ADDR", ":8080"),
		ModelsDir:     getEnvOrDefault("MODELS_DIR", "models"),
		DataPath:      os.Getenv("DATA_PATH"), // optional
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		ReadTimeout:   getDurationOrDefault("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:  getDurationOrDefault("WRITE_TIMEOUT", 10*time.Second),
		MaxImageBytes: getInt64OrDefault("MAX_IMAGE_BYTES", 10<<20),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDefaultInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}

func validateSettings(settings *Settings) error {
	if settings.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got %q", settings.LogLevel)
	}

	if settings.ReadTimeout < time.Second || settings.ReadTimeout > time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 1m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 1m, got %v", settings.WriteTimeout)
	}

	if settings.MaxImageBytes < 1<<10 || settings.MaxImageBytes > 100<<20 {
		return fmt.Errorf("max image size must be between 1KiB and 100MiB, got %d", settings.MaxImageBytes)
	}

	return nil
}
