package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ticmd/log"
)

const (
	ConfigFileName = "config.json"

	DefaultSession      = "claude-dev"
	DefaultShell        = "/bin/bash"
	DefaultCaptureLines = 100
	DefaultWaitTimeout  = 30 * time.Second
	DefaultQuietFor     = 2 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// GetConfigDir returns the path to the application's configuration directory.
// TICMD_HOME overrides the default of ~/.ticmd.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("TICMD_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ticmd"), nil
}

// Duration is a time.Duration that reads and writes as a string ("2s").
// Bare numbers are accepted on read and taken as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// ParseDuration accepts Go duration syntax ("1m30s") or a bare number of
// seconds ("2", "0.1").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Config represents the application configuration
type Config struct {
	// DefaultSession is the tmux session used when --session is not given.
	DefaultSession string `json:"default_session"`
	// Shell is typed into every new window before the user's command.
	Shell string `json:"shell"`
	// CaptureLines is the default number of trailing lines returned by capture-pane.
	CaptureLines int `json:"capture_lines"`
	// WaitTimeout is the default overall budget for wait-idle.
	WaitTimeout Duration `json:"wait_timeout"`
	// QuietFor is the default stability window for wait-idle.
	QuietFor Duration `json:"quiet_for"`
	// PollInterval is the default sampling cadence for wait-idle.
	PollInterval Duration `json:"poll_interval"`
	// TmuxPath overrides the tmux binary looked up in PATH.
	TmuxPath string `json:"tmux_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = DefaultShell
	}
	return &Config{
		DefaultSession: DefaultSession,
		Shell:          shell,
		CaptureLines:   DefaultCaptureLines,
		WaitTimeout:    Duration(DefaultWaitTimeout),
		QuietFor:       Duration(DefaultQuietFor),
		PollInterval:   Duration(DefaultPollInterval),
		TmuxPath:       "tmux",
	}
}

// withDefaults fills zero fields left by a partial config file.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c.DefaultSession == "" {
		c.DefaultSession = d.DefaultSession
	}
	if c.Shell == "" {
		c.Shell = d.Shell
	}
	if c.CaptureLines <= 0 {
		c.CaptureLines = d.CaptureLines
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	if c.QuietFor <= 0 {
		c.QuietFor = d.QuietFor
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.TmuxPath == "" {
		c.TmuxPath = d.TmuxPath
	}
	return c
}

func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := readConfigFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create and save default config if file doesn't exist
			defaultCfg := DefaultConfig()
			if saveErr := saveConfig(defaultCfg); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}

		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		log.ErrorLog.Printf("failed to parse config file at %s: %v\nConfig content preview: %s", configPath, err, preview)

		// Backup the corrupted config before falling back to defaults
		backupPath := configPath + ".corrupt." + time.Now().Format("20060102-150405")
		if backupErr := os.WriteFile(backupPath, data, 0644); backupErr == nil {
			log.InfoLog.Printf("Backed up corrupted config to: %s", backupPath)
		}

		return DefaultConfig()
	}

	return config.withDefaults()
}

// readConfigFile reads the config under a shared lock. A lock failure is
// logged and the read goes ahead; stale data beats no data.
func readConfigFile(path string) ([]byte, error) {
	lock := NewFileLock(path)
	if err := lock.RLock(); err != nil {
		log.WarningLog.Printf("failed to acquire read lock: %v", err)
	} else {
		defer lock.Unlock()
	}
	return os.ReadFile(path)
}

// saveConfig saves the configuration to disk under an exclusive lock.
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	lock := NewFileLock(configPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveConfig exports the saveConfig function for use by other packages
func SaveConfig(config *Config) error {
	return saveConfig(config)
}
