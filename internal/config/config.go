package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port    int  `yaml:"port"`
		Verbose bool `yaml:"verbose"`
	} `yaml:"server"`

	StandaloneMode bool `yaml:"standalone_mode"`

	Settlement struct {
		ProductionURL string `yaml:"production_url"`
		TestURL       string `yaml:"test_url"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"settlement"`

	Broker struct {
		ProductionURL string `yaml:"production_url"`
		TestURL       string `yaml:"test_url"`
		ListenWindow  string `yaml:"listen_window"`
	} `yaml:"broker"`

	CABundles struct {
		ProductionPath string `yaml:"production_path"`
		TestPath       string `yaml:"test_path"`
	} `yaml:"ca_bundles"`

	RateLimit struct {
		Requests      int    `yaml:"requests"`
		Window        string `yaml:"window"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"rate_limit"`

	Credentials struct {
		BaseDir string `yaml:"base_dir"` // empty means the system temp dir
	} `yaml:"credentials"`

	Postgres struct {
		DSN string `yaml:"dsn"` // empty means in-memory storage
	} `yaml:"postgres"`
}

// ParsedConfig contains parsed time.Duration values for easier use
type ParsedConfig struct {
	Config
	RemoteTimeout   time.Duration
	ListenWindow    time.Duration
	RateLimitWindow time.Duration
	RateLimitSweep  time.Duration
}

// Load loads configuration from a YAML file
func Load(filepath string) (*ParsedConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	remoteTimeout, err := time.ParseDuration(cfg.Settlement.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement timeout: %v", err)
	}

	listenWindow, err := time.ParseDuration(cfg.Broker.ListenWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid broker listen_window: %v", err)
	}

	rlWindow, err := time.ParseDuration(cfg.RateLimit.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit window: %v", err)
	}

	rlSweep, err := time.ParseDuration(cfg.RateLimit.SweepInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit sweep_interval: %v", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	return &ParsedConfig{
		Config:          cfg,
		RemoteTimeout:   remoteTimeout,
		ListenWindow:    listenWindow,
		RateLimitWindow: rlWindow,
		RateLimitSweep:  rlSweep,
	}, nil
}

// validateConfig validates the configuration values
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit requests must be positive")
	}

	if !cfg.StandaloneMode {
		if cfg.Settlement.ProductionURL == "" || cfg.Settlement.TestURL == "" {
			return fmt.Errorf("settlement production_url and test_url are required")
		}
		if cfg.Broker.ProductionURL == "" || cfg.Broker.TestURL == "" {
			return fmt.Errorf("broker production_url and test_url are required")
		}
	}

	return nil
}
