// Package config provides Viper-based hierarchical configuration for
// the ingestion pipeline: defaults, optional config.yaml, then
// CASHFLOW_* environment variables.
package config

import (
	"fmt"
	"strings"

	"cashflowd/cashflow-ingest/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Ingest struct {
		// MinAcceptRatio is the batch acceptance gate. 0 disables it.
		MinAcceptRatio float64 `mapstructure:"min_accept_ratio" yaml:"min_accept_ratio"`
		// AllowMissingWatermark permits substituting the maximum
		// observed event timestamp when a feed omits its watermark.
		AllowMissingWatermark bool `mapstructure:"allow_missing_watermark" yaml:"allow_missing_watermark"`
		// MaxRows caps the number of records accepted per upload.
		MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`
	} `mapstructure:"ingest" yaml:"ingest"`

	CCT struct {
		MinConfidence  float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
		AmbiguityDelta float64 `mapstructure:"ambiguity_delta" yaml:"ambiguity_delta"`
		// ThresholdOverrides maps a CCT label to its own minimum
		// confidence. Labels absent here fall back to MinConfidence.
		ThresholdOverrides map[string]float64 `mapstructure:"threshold_overrides" yaml:"threshold_overrides"`
		// RulesFile optionally points at a YAML keyword-rule file
		// replacing the built-in rule set.
		RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`
	} `mapstructure:"cct" yaml:"cct"`

	Storage struct {
		// Path of the SQLite database file.
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"storage" yaml:"storage"`
}

// Initialize loads configuration with hierarchical precedence:
// defaults, then an optional config file, then environment variables.
func Initialize() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.cashflow-ingest")
	v.AddConfigPath(".cashflow-ingest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CASHFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper lowercases config keys; CCT labels are uppercase.
	if len(config.CCT.ThresholdOverrides) > 0 {
		normalized := make(map[string]float64, len(config.CCT.ThresholdOverrides))
		for label, threshold := range config.CCT.ThresholdOverrides {
			normalized[strings.ToUpper(label)] = threshold
		}
		config.CCT.ThresholdOverrides = normalized
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the built-in configuration without touching files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("ingest.min_accept_ratio", 0.10)
	v.SetDefault("ingest.allow_missing_watermark", false)
	v.SetDefault("ingest.max_rows", 2_000_000)

	v.SetDefault("cct.min_confidence", 0.70)
	v.SetDefault("cct.ambiguity_delta", 0.05)
	v.SetDefault("cct.threshold_overrides", map[string]float64{})
	v.SetDefault("cct.rules_file", "")

	v.SetDefault("storage.path", "cashflow.db")
}

func validate(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Ingest.MinAcceptRatio < 0 || config.Ingest.MinAcceptRatio > 1 {
		return fmt.Errorf("ingest.min_accept_ratio must be between 0 and 1, got: %f", config.Ingest.MinAcceptRatio)
	}
	if config.Ingest.MaxRows < 1 {
		return fmt.Errorf("ingest.max_rows must be positive, got: %d", config.Ingest.MaxRows)
	}

	if config.CCT.MinConfidence < 0 || config.CCT.MinConfidence > 1 {
		return fmt.Errorf("cct.min_confidence must be between 0 and 1, got: %f", config.CCT.MinConfidence)
	}
	if config.CCT.AmbiguityDelta < 0 || config.CCT.AmbiguityDelta > 1 {
		return fmt.Errorf("cct.ambiguity_delta must be between 0 and 1, got: %f", config.CCT.AmbiguityDelta)
	}
	for label, threshold := range config.CCT.ThresholdOverrides {
		if !validCCTLabel(label) {
			return fmt.Errorf("cct.threshold_overrides[%s]: unknown CCT label", label)
		}
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("cct.threshold_overrides[%s] must be between 0 and 1, got: %f", label, threshold)
		}
	}

	return nil
}

func validCCTLabel(label string) bool {
	for _, cct := range models.AllCCTs {
		if label == string(cct) {
			return true
		}
	}
	return false
}
