// Package config holds all chipster configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chipster configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Pipeline settings
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Simulator (validator) settings
	Simulator SimulatorConfig `yaml:"simulator"`

	// Artifact export and run archive
	Store StoreConfig `yaml:"store"`

	// Local example corpus
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini generator.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// PipelineConfig configures the correction loop.
type PipelineConfig struct {
	RetryBudget     int    `yaml:"retry_budget"`
	GenerateTimeout string `yaml:"generate_timeout"`
}

// SimulatorConfig configures the iverilog/vvp validator.
type SimulatorConfig struct {
	Iverilog       string `yaml:"iverilog"`
	VVP            string `yaml:"vvp"`
	WorkDir        string `yaml:"work_dir"`
	CompileTimeout string `yaml:"compile_timeout"`
	RunTimeout     string `yaml:"run_timeout"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	OutputDir   string `yaml:"output_dir"`
	ArchivePath string `yaml:"archive_path"`
}

// RetrievalConfig configures the local example corpus.
type RetrievalConfig struct {
	CorpusDir   string `yaml:"corpus_dir"`
	MaxSnippets int    `yaml:"max_snippets"`
}

// LoggingConfig configures category-based logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Directory  string          `yaml:"directory"`
	Level      string          `yaml:"level"`
	Console    bool            `yaml:"console"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the default configuration. The retry budget and simulator
// timeouts match the values the pipeline was tuned with.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:       "gemini-2.5-pro",
			Temperature: 0.2,
			Timeout:     "5m",
		},
		Pipeline: PipelineConfig{
			RetryBudget:     10,
			GenerateTimeout: "5m",
		},
		Simulator: SimulatorConfig{
			Iverilog:       "iverilog",
			VVP:            "vvp",
			CompileTimeout: "30s",
			RunTimeout:     "30s",
		},
		Store: StoreConfig{
			OutputDir:   "generated",
			ArchivePath: "chipster.db",
		},
		Retrieval: RetrievalConfig{
			MaxSnippets: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, layered over defaults, then
// applies environment overrides. A missing file is not an error; defaults
// plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secrets from the environment. GEMINI_API_KEY wins over
// GOOGLE_API_KEY when both are set.
func (c *Config) applyEnv() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
}

// Duration parses a duration field, falling back when empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
