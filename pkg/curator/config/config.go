package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// ScanConfig configures the filesystem scan pass.
type ScanConfig struct {
	LargeFileSize string `mapstructure:"large_file_size"`
	TranscodeSize string `mapstructure:"transcode_size"`
	Transcode     bool   `mapstructure:"transcode"`
}

// UploadConfig configures the transfer pool.
type UploadConfig struct {
	Workers         int    `mapstructure:"workers"`
	Mode            string `mapstructure:"mode"` // "api" or "exec"
	TransferBinary  string `mapstructure:"transfer_binary"`
	CredentialsFile string `mapstructure:"credentials_file"`
	StorageClass    string `mapstructure:"storage_class"`
}

// Config represents the application configuration.
type Config struct {
	Bucket  string        `mapstructure:"bucket"`
	Prefix  string        `mapstructure:"prefix"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/curator/config.yaml
//   - $HOME/.config/curator/config.yaml
//
// Environment variables are prefixed with CURATOR_ (e.g., CURATOR_BUCKET).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "curator"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "curator"))

	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bucket", "")
	v.SetDefault("prefix", "")

	v.SetDefault("scan.large_file_size", DefaultLargeFileSize)
	v.SetDefault("scan.transcode_size", DefaultTranscodeSize)
	v.SetDefault("scan.transcode", true)

	v.SetDefault("upload.workers", DefaultWorkers)
	v.SetDefault("upload.mode", DefaultTransferMode)
	v.SetDefault("upload.transfer_binary", DefaultTransferBinary)
	v.SetDefault("upload.credentials_file", "")
	v.SetDefault("upload.storage_class", DefaultStorageClass)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scan":    "info",
		"remote":  "info",
		"upload":  "info",
		"archive": "info",
	})
}

// Validate checks invariants that viper cannot express.
func (c *Config) Validate() error {
	switch c.Upload.Mode {
	case "api", "exec":
	default:
		return fmt.Errorf("upload.mode must be \"api\" or \"exec\", got %q", c.Upload.Mode)
	}
	if c.Upload.Workers < 1 {
		return fmt.Errorf("upload.workers must be positive, got %d", c.Upload.Workers)
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "curator"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "curator"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Curator Configuration

# Destination bucket for uploads
bucket: ""

# Key prefix within the bucket (usually the project name)
prefix: ""

# Scan settings
scan:
  # Files past this size are flagged for operator review
  large_file_size: %s
  # Uncompressed sequence files past this size are recompressed in place
  transcode_size: %s
  transcode: true

# Upload settings
upload:
  workers: %d
  # Transfer mode: "api" uses the storage API, "exec" shells out
  mode: %s
  transfer_binary: %s
  # Service account key file (empty uses application default credentials)
  credentials_file: ""
  storage_class: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/curator/curator.log)
  path: ""
  # Log rotation settings
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    scan: info
    remote: info
    upload: info
    archive: info
`, DefaultLargeFileSize, DefaultTranscodeSize, DefaultWorkers,
		DefaultTransferMode, DefaultTransferBinary, DefaultStorageClass)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/curator/ for the catalog database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "curator")
}

// StateDir returns $XDG_STATE_HOME/curator/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "curator")
}

// DefaultCatalogPath returns the default catalog database path.
func DefaultCatalogPath() string {
	return filepath.Join(DataDir(), "catalog.db")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "curator.log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}
