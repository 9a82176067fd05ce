package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/chaptercast/internal/chapters"
)

// Default values. input_file and aws.bucket have none.
const (
	DefaultBackend           = BackendPolly
	DefaultRegion            = "ca-central-1"
	DefaultKeyPrefix         = "polly-output/book-chapters/"
	DefaultVoice             = "Maxim"
	DefaultFormat            = "mp3"
	DefaultEngine            = "standard"
	DefaultLanguage          = "ru-RU"
	DefaultRequestsPerMinute = 120
	DefaultPollInterval      = 10 * time.Second
	DefaultMaxWait           = 30 * time.Minute
	DefaultOpenAIModel       = "tts-1-hd"
	DefaultOpenAIVoice       = "onyx"
	DefaultOpenAIKey         = "${OPENAI_API_KEY}"
)

// defaults lists every key in file order. Keys without a default still
// appear so environment overrides reach them through Unmarshal.
func defaults() yaml.MapSlice {
	return yaml.MapSlice{
		{Key: "input_file", Value: ""},
		{Key: "output_dir", Value: ""},
		{Key: "backend", Value: DefaultBackend},
		{Key: "aws", Value: yaml.MapSlice{
			{Key: "region", Value: DefaultRegion},
			{Key: "bucket", Value: ""},
			{Key: "key_prefix", Value: DefaultKeyPrefix},
		}},
		{Key: "synthesis", Value: yaml.MapSlice{
			{Key: "voice", Value: DefaultVoice},
			{Key: "format", Value: DefaultFormat},
			{Key: "engine", Value: DefaultEngine},
			{Key: "language", Value: DefaultLanguage},
			{Key: "requests_per_minute", Value: DefaultRequestsPerMinute},
		}},
		{Key: "polling", Value: yaml.MapSlice{
			{Key: "interval", Value: DefaultPollInterval.String()},
			{Key: "max_wait", Value: DefaultMaxWait.String()},
		}},
		{Key: "chapters", Value: yaml.MapSlice{
			{Key: "marker", Value: chapters.DefaultMarker},
			{Key: "duplicates", Value: string(chapters.DuplicateSuffix)},
		}},
		{Key: "openai", Value: yaml.MapSlice{
			{Key: "api_key", Value: DefaultOpenAIKey},
			{Key: "model", Value: DefaultOpenAIModel},
			{Key: "voice", Value: DefaultOpenAIVoice},
			{Key: "staging_dir", Value: ""},
		}},
		{Key: "logging", Value: yaml.MapSlice{
			{Key: "level", Value: "info"},
			{Key: "format", Value: "text"},
		}},
		{Key: "report", Value: yaml.MapSlice{
			{Key: "file", Value: ""},
		}},
	}
}

func setDefaults(v *viper.Viper) {
	var walk func(prefix string, items yaml.MapSlice)
	walk = func(prefix string, items yaml.MapSlice) {
		for _, item := range items {
			key := prefix + item.Key.(string)
			if nested, ok := item.Value.(yaml.MapSlice); ok {
				walk(key+".", nested)
				continue
			}
			v.SetDefault(key, item.Value)
		}
	}
	walk("", defaults())
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Backend: DefaultBackend,
		AWS: AWSConfig{
			Region:    DefaultRegion,
			KeyPrefix: DefaultKeyPrefix,
		},
		Synthesis: SynthesisConfig{
			Voice:             DefaultVoice,
			Format:            DefaultFormat,
			Engine:            DefaultEngine,
			Language:          DefaultLanguage,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Polling: PollingConfig{
			Interval: DefaultPollInterval,
			MaxWait:  DefaultMaxWait,
		},
		Chapters: ChaptersConfig{
			Marker:     chapters.DefaultMarker,
			Duplicates: string(chapters.DuplicateSuffix),
		},
		OpenAI: OpenAIConfig{
			APIKey: DefaultOpenAIKey,
			Model:  DefaultOpenAIModel,
			Voice:  DefaultOpenAIVoice,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(defaults())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# chaptercast configuration
# input_file and aws.bucket are required for a run.
# Every key can be overridden from the environment, e.g. CHAPTERCAST_AWS_BUCKET.
# openai.api_key uses ${ENV_VAR} syntax: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
