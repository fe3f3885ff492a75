package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Library LibraryConfig `mapstructure:"library"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	Player  PlayerConfig  `mapstructure:"player"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LibraryConfig holds library storage configuration
type LibraryConfig struct {
	DataDir string `mapstructure:"data_dir"` // Books, covers, and the database live here
}

// SpeechConfig holds speech synthesis configuration
type SpeechConfig struct {
	Voice    string  `mapstructure:"voice"`     // Polly voice id, e.g. "Joanna"
	Rate     float64 `mapstructure:"rate"`      // Normalized 0..1
	CacheDir string  `mapstructure:"cache_dir"` // Synthesized audio cache
}

// PlayerConfig holds audio player configuration
type PlayerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			DataDir: defaultDataPath(),
		},
		Speech: SpeechConfig{
			Voice:    "Joanna",
			Rate:     0.5,
			CacheDir: filepath.Join(defaultDataPath(), "audio"),
		},
		Player: PlayerConfig{
			Command: "mpg123",
			Args:    []string{"-q"},
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory path for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "lector")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lector")
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lector", "lector.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "lector", "lector.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "lector")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lector")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("LECTOR")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("library.data_dir", cfg.Library.DataDir)

	viper.Set("speech.voice", cfg.Speech.Voice)
	viper.Set("speech.rate", cfg.Speech.Rate)
	viper.Set("speech.cache_dir", cfg.Speech.CacheDir)

	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WatchConfig reloads the configuration whenever the config file changes
// and reports the fresh value through onChange.
func WatchConfig(onChange func(*Config)) {
	viper.OnConfigChange(func(in fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}
