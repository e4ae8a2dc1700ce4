package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models gigline.yml.
type Config struct {
	Incentives struct {
		PostingCredit   int64 `yaml:"posting_credit"`
		HireRatePercent int64 `yaml:"hire_rate_percent"`
		MismatchPenalty int64 `yaml:"mismatch_penalty"`
	} `yaml:"incentives"`
	Trust struct {
		SuccessDelta float64 `yaml:"success_delta"`
		FailureDelta float64 `yaml:"failure_delta"`
	} `yaml:"trust"`
	Limits struct {
		MaxAccepted int `yaml:"max_accepted"`
	} `yaml:"limits"`
	Classifier struct {
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"classifier"`
}

// ClassifierTimeout returns the configured classifier timeout as a duration.
func (c *Config) ClassifierTimeout() time.Duration {
	secs := c.Classifier.TimeoutSeconds
	if secs <= 0 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Incentives.PostingCredit < 0 {
		return fmt.Errorf("config.incentives.posting_credit must not be negative")
	}
	if c.Incentives.HireRatePercent < 0 || c.Incentives.HireRatePercent > 100 {
		return fmt.Errorf("config.incentives.hire_rate_percent must be within 0..100")
	}
	if c.Incentives.MismatchPenalty < 0 {
		return fmt.Errorf("config.incentives.mismatch_penalty must not be negative")
	}
	if c.Limits.MaxAccepted <= 0 {
		return fmt.Errorf("config.limits.max_accepted must be positive")
	}
	if c.Trust.SuccessDelta < 0 {
		return fmt.Errorf("config.trust.success_delta must not be negative")
	}
	if c.Trust.FailureDelta > 0 {
		return fmt.Errorf("config.trust.failure_delta must not be positive")
	}
	if c.Classifier.TimeoutSeconds < 0 {
		return fmt.Errorf("config.classifier.timeout_seconds must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// Load reads and validates config from workspace, falling back to defaults
// when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Omitted sections
// inherit defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `incentives:
  # Promotional credit granted to the creator on every post, distinct from
  # the mission's own reward budget.
  posting_credit: 25
  # Percentage of the agreed price credited to the poster when they hire.
  hire_rate_percent: 10
  # Flat debit applied when submitted work fails verification.
  mismatch_penalty: 50

trust:
  success_delta: 5
  failure_delta: -15

limits:
  # Hard cap on an actor's simultaneously accepted missions.
  max_accepted: 3

classifier:
  endpoint: ""
  timeout_seconds: 10
`
