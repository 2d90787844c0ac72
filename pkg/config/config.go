// Package config loads the streamform server configuration from YAML
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Upload  UploadConfig  `yaml:"upload" json:"upload"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds the demo upload server settings.
type ServerConfig struct {
	Address string        `yaml:"address" json:"address"`
	Port    int           `yaml:"port" json:"port"`
	Mode    string        `yaml:"mode" json:"mode"` // gin mode: debug, release, test
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// UploadConfig holds the streaming policy handed to each request's
// streamer. The embedding server owns these limits; the parser core only
// receives them per request.
type UploadConfig struct {
	// TempDir receives streamed part files. Empty means the system
	// temp directory.
	TempDir string `yaml:"tempDir" json:"tempDir"`

	// MaxUploadSize rejects requests declaring a larger Content-Length.
	MaxUploadSize int64 `yaml:"maxUploadSize" json:"maxUploadSize"`

	// SizeSlack is the tolerated overrun factor beyond the declared
	// request size before a stream is failed as malformed.
	SizeSlack float64 `yaml:"sizeSlack" json:"sizeSlack"`

	// MaxHeaderBytes bounds one part's header block.
	MaxHeaderBytes int `yaml:"maxHeaderBytes" json:"maxHeaderBytes"`

	// MemoryPartLimit routes form values up to this size into memory;
	// anything declared as a file goes to disk regardless.
	MemoryPartLimit int64 `yaml:"memoryPartLimit" json:"memoryPartLimit"`

	// Compression optionally compresses streamed part files:
	// "" (off), "gzip" or "lz4".
	Compression string `yaml:"compression" json:"compression"`

	// ChunkSize is the read size used when draining a request body.
	ChunkSize int `yaml:"chunkSize" json:"chunkSize"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig is the built-in configuration used when no file or
// environment override applies.
var DefaultConfig = Config{
	Server: ServerConfig{
		Address: "0.0.0.0",
		Port:    8888,
		Mode:    "release",
		Timeout: 30 * time.Second,
	},
	Upload: UploadConfig{
		TempDir:         "",
		MaxUploadSize:   1 << 40, // 1 TiB streamed, never buffered
		SizeSlack:       1.25,
		MaxHeaderBytes:  16 * 1024,
		MemoryPartLimit: 64 * 1024,
		Compression:     "",
		ChunkSize:       64 * 1024,
	},
	Logging: LoggingConfig{
		Level: "info",
	},
}

// LoadConfig resolves the configuration from defaults, then an optional
// YAML file, then environment variables. It returns the config and a
// description of where the file came from.
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if e := loadFromEnv(&config); e != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", e)
	}

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from the first YAML file found.
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("STREAMFORM_CONFIG_PATH"),
		"./streamform.yaml",
		"./config/streamform.yaml",
		"/etc/streamform/config.yaml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// loadFromEnv applies environment variable overrides.
func loadFromEnv(config *Config) error {
	if val := os.Getenv("STREAMFORM_SERVER_ADDRESS"); val != "" {
		config.Server.Address = val
	}
	if val := os.Getenv("STREAMFORM_SERVER_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid STREAMFORM_SERVER_PORT %q: %w", val, err)
		}
		config.Server.Port = port
	}
	if val := os.Getenv("STREAMFORM_SERVER_MODE"); val != "" {
		config.Server.Mode = val
	}
	if val := os.Getenv("STREAMFORM_TEMP_DIR"); val != "" {
		config.Upload.TempDir = val
	}
	if val := os.Getenv("STREAMFORM_MAX_UPLOAD_SIZE"); val != "" {
		size, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STREAMFORM_MAX_UPLOAD_SIZE %q: %w", val, err)
		}
		config.Upload.MaxUploadSize = size
	}
	if val := os.Getenv("STREAMFORM_COMPRESSION"); val != "" {
		config.Upload.Compression = val
	}
	if val := os.Getenv("STREAMFORM_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	return nil
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upload.MaxUploadSize <= 0 {
		return fmt.Errorf("maxUploadSize must be positive, got %d", c.Upload.MaxUploadSize)
	}
	if c.Upload.SizeSlack < 0 {
		return fmt.Errorf("sizeSlack must not be negative, got %f", c.Upload.SizeSlack)
	}
	if c.Upload.MaxHeaderBytes <= 0 {
		return fmt.Errorf("maxHeaderBytes must be positive, got %d", c.Upload.MaxHeaderBytes)
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.Upload.ChunkSize)
	}
	switch c.Upload.Compression {
	case "", "gzip", "lz4":
	default:
		return fmt.Errorf("unsupported compression %q", c.Upload.Compression)
	}
	if c.Upload.TempDir != "" {
		if st, err := os.Stat(c.Upload.TempDir); err != nil || !st.IsDir() {
			return fmt.Errorf("tempDir %q is not an existing directory", c.Upload.TempDir)
		}
	}
	return nil
}

// ToYAML renders the configuration for logging and `config show`.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
