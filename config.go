package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// FileConfig holds optional configuration loaded from a YAML file.
// Precedence is flags > environment > file > built-in defaults.
type FileConfig struct {
	Gemini struct {
		Model          string   `yaml:"model"`
		Temperature    *float64 `yaml:"temperature"`
		Endpoint       string   `yaml:"endpoint"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	} `yaml:"gemini"`

	HTTP struct {
		TimeoutSeconds int  `yaml:"timeout_seconds"`
		AllowInsecure  bool `yaml:"allow_insecure"`
	} `yaml:"http"`

	LogFile string `yaml:"log_file"`
}

// loadFileConfig reads and validates configuration from the provided path.
func loadFileConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Gemini.Temperature != nil {
		t := *cfg.Gemini.Temperature
		if t < 0 || t > 2 {
			return nil, fmt.Errorf("config: gemini.temperature %v out of range [0, 2]", t)
		}
	}
	if cfg.Gemini.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("config: gemini.timeout_seconds must not be negative")
	}
	if cfg.HTTP.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("config: http.timeout_seconds must not be negative")
	}

	return &cfg, nil
}

// applyConfigFile loads --config (when given) and fills in any value the
// user did not set explicitly on the command line.
func applyConfigFile(cmd *cobra.Command, config *Config) error {
	if config.ConfigFile == "" {
		return nil
	}

	fileCfg, err := loadFileConfig(config.ConfigFile)
	if err != nil {
		return err
	}

	flags := cmd.Root().PersistentFlags()

	if fileCfg.Gemini.Model != "" && !flags.Changed("model") {
		config.Model = fileCfg.Gemini.Model
	}
	if fileCfg.Gemini.Temperature != nil && !flags.Changed("temperature") {
		config.Temperature = *fileCfg.Gemini.Temperature
	}
	if fileCfg.Gemini.Endpoint != "" && !flags.Changed("api-endpoint") {
		config.GeminiEndpoint = fileCfg.Gemini.Endpoint
	}
	if fileCfg.HTTP.TimeoutSeconds > 0 && !flags.Changed("timeout") {
		config.HTTPTimeout = fileCfg.HTTP.TimeoutSeconds
	}
	if fileCfg.HTTP.AllowInsecure && !flags.Changed("insecure") {
		config.AllowInsecure = true
	}
	if fileCfg.LogFile != "" && !flags.Changed("log-file") && config.LogFile == "" {
		config.LogFile = fileCfg.LogFile
	}

	return nil
}
