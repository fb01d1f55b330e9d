package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSongsEndpoint is the public song-list API
const DefaultSongsEndpoint = "https://spotgpt-backend.onrender.com/api/song/list"

// Config holds application configuration
type Config struct {
	SongsEndpoint    string   `json:"songs_endpoint"`
	RequestTimeout   Duration `json:"request_timeout"`
	MusicDirectories []string `json:"music_directories"`
	DataDir          string   `json:"data_dir"`
	LogLevel         string   `json:"log_level"`
	LogFile          string   `json:"log_file"`
	KeyBindings      KeyMap   `json:"key_bindings"`
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	PlayPause   string `json:"play_pause"`
	Next        string `json:"next"`
	Previous    string `json:"previous"`
	Loop        string `json:"loop"`
	SeekForward string `json:"seek_forward"`
	SeekBack    string `json:"seek_back"`
	VolumeUp    string `json:"volume_up"`
	VolumeDown  string `json:"volume_down"`
	Quit        string `json:"quit"`
}

// Duration is a time.Duration that reads and writes as "30s" in JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		SongsEndpoint:    DefaultSongsEndpoint,
		RequestTimeout:   Duration(30 * time.Second),
		MusicDirectories: []string{},
		DataDir:          "./data",
		LogLevel:         "info",
		LogFile:          "player.log",
		KeyBindings: KeyMap{
			PlayPause:   " ",
			Next:        "n",
			Previous:    "p",
			Loop:        "l",
			SeekForward: "right",
			SeekBack:    "left",
			VolumeUp:    "+",
			VolumeDown:  "-",
			Quit:        "q",
		},
	}
}

// LoadConfig reads and unmarshals configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so missing keys keep sane values
	config := GetDefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists,
// then applies environment overrides
func LoadOrCreate(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	// Save default config if file didn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	// A missing .env is normal; godotenv never overrides variables already set
	_ = godotenv.Load()
	ApplyEnv(config)

	return config, nil
}

// ApplyEnv overrides file values with environment variables
func ApplyEnv(config *Config) {
	if v := os.Getenv("SONGS_ENDPOINT"); v != "" {
		config.SongsEndpoint = v
	}
	if v := os.Getenv("MUSIC_PLAYER_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.RequestTimeout = Duration(d)
		}
	}
}

// LogPath returns the log file location inside the data directory
func (c *Config) LogPath() string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("MUSIC_PLAYER_CONFIG"); path != "" {
		return path
	}

	// Use XDG config directory if available
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "spotgpt", "config.json")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(home, ".config", "spotgpt", "config.json")
}
