// Package config loads chaptercast configuration from file, environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jackzampolin/chaptercast/internal/batch"
	"github.com/jackzampolin/chaptercast/internal/chapters"
)

// EnvPrefix is prepended to environment overrides, e.g.
// CHAPTERCAST_AWS_BUCKET for aws.bucket.
const EnvPrefix = "CHAPTERCAST"

// Backend names.
const (
	BackendPolly  = "polly"
	BackendOpenAI = "openai"
)

// Config is the root configuration for a run.
type Config struct {
	InputFile string          `mapstructure:"input_file" json:"input_file"`
	OutputDir string          `mapstructure:"output_dir" json:"output_dir"`
	Backend   string          `mapstructure:"backend" json:"backend"`
	AWS       AWSConfig       `mapstructure:"aws" json:"aws"`
	Synthesis SynthesisConfig `mapstructure:"synthesis" json:"synthesis"`
	Polling   PollingConfig   `mapstructure:"polling" json:"polling"`
	Chapters  ChaptersConfig  `mapstructure:"chapters" json:"chapters"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" json:"openai"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Report    ReportConfig    `mapstructure:"report" json:"report"`
}

// AWSConfig locates the Polly output bucket.
type AWSConfig struct {
	Region    string `mapstructure:"region" json:"region"`
	Bucket    string `mapstructure:"bucket" json:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"` // must end in "/"
}

// SynthesisConfig holds the voice parameters sent with every task.
type SynthesisConfig struct {
	Voice             string `mapstructure:"voice" json:"voice"`
	Format            string `mapstructure:"format" json:"format"`     // mp3, ogg_vorbis, pcm, json
	Engine            string `mapstructure:"engine" json:"engine"`     // standard, neural, long-form, generative
	Language          string `mapstructure:"language" json:"language"` // BCP-47, e.g. ru-RU
	RequestsPerMinute int    `mapstructure:"requests_per_minute" json:"requests_per_minute"`
}

// PollingConfig controls the status loop.
type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval" json:"interval"`
	MaxWait  time.Duration `mapstructure:"max_wait" json:"max_wait"`
}

// ChaptersConfig controls splitting.
type ChaptersConfig struct {
	Marker     string `mapstructure:"marker" json:"marker"`
	Duplicates string `mapstructure:"duplicates" json:"duplicates"` // suffix or reject
}

// OpenAIConfig configures the OpenAI speech backend.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	Model      string `mapstructure:"model" json:"model"`
	Voice      string `mapstructure:"voice" json:"voice"`
	StagingDir string `mapstructure:"staging_dir" json:"staging_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
}

// ReportConfig controls the saved copy of the run report.
type ReportConfig struct {
	File string `mapstructure:"file" json:"file"` // .xlsx, .json or .yaml; empty disables
}

// Load reads the configuration from file, environment variables and
// defaults. If configFile is empty, chaptercast.yaml is searched for in the
// working directory and then $HOME/.chaptercast. A missing file is not an
// error; an explicitly named one is.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("chaptercast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.chaptercast")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.OpenAI.APIKey = ResolveEnvVars(cfg.OpenAI.APIKey)

	return &cfg, nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Normalize fixes recoverable problems in place, logging a warning for
// each: a key prefix without a trailing slash gets one.
func (c *Config) Normalize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.AWS.KeyPrefix != "" && !strings.HasSuffix(c.AWS.KeyPrefix, "/") {
		logger.Warn("key prefix does not end with '/', appending it", "key_prefix", c.AWS.KeyPrefix)
		c.AWS.KeyPrefix += "/"
	}
	if c.Backend == BackendOpenAI && c.AWS.Bucket == "" {
		c.AWS.Bucket = "chaptercast"
	}
}

// StagingDir returns the local object store root for the OpenAI backend.
func (c *Config) StagingDir(outputDir string) string {
	if c.OpenAI.StagingDir != "" {
		return c.OpenAI.StagingDir
	}
	return outputDir + ".staging"
}

// SplitterOptions converts the chapter settings.
func (c *Config) SplitterOptions(logger *slog.Logger) chapters.Options {
	return chapters.Options{
		Marker:     c.Chapters.Marker,
		Duplicates: chapters.DuplicatePolicy(c.Chapters.Duplicates),
		Logger:     logger,
	}
}

// BatchConfig converts the settings shared by the run phases.
func (c *Config) BatchConfig(logger *slog.Logger) batch.Config {
	return batch.Config{
		Bucket:       c.AWS.Bucket,
		KeyPrefix:    c.AWS.KeyPrefix,
		Voice:        c.Synthesis.Voice,
		Format:       c.Synthesis.Format,
		Engine:       c.Synthesis.Engine,
		Language:     c.Synthesis.Language,
		PollInterval: c.Polling.Interval,
		MaxWait:      c.Polling.MaxWait,
		Logger:       logger,
	}
}
