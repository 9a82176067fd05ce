package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.InputFile = "book.txt"
	cfg.AWS.Bucket = "my-bucket"
	return cfg
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "chaptercast.yaml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# chaptercast configuration") {
		t.Error("expected header comment")
	}
	if !strings.Contains(string(data), "interval: 10s") {
		t.Errorf("expected readable durations, got:\n%s", data)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := DefaultConfig()
	want.OpenAI.APIKey = "" // resolved from the unset variable
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chaptercast.yaml")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteDefault(path, false); err == nil {
		t.Fatal("expected error for existing file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Error("existing file was modified")
	}

	if err := WriteDefault(path, true); err != nil {
		t.Fatalf("forced write failed: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.InputFile = "" }},
		{"missing bucket", func(c *Config) { c.AWS.Bucket = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "espeak" }},
		{"prefix without slash", func(c *Config) { c.AWS.KeyPrefix = "audio" }},
		{"bad format", func(c *Config) { c.Synthesis.Format = "wav" }},
		{"bad engine", func(c *Config) { c.Synthesis.Engine = "turbo" }},
		{"bad language", func(c *Config) { c.Synthesis.Language = "Russian" }},
		{"negative rate", func(c *Config) { c.Synthesis.RequestsPerMinute = -1 }},
		{"zero interval", func(c *Config) { c.Polling.Interval = 0 }},
		{"zero max wait", func(c *Config) { c.Polling.MaxWait = 0 }},
		{"bad duplicate policy", func(c *Config) { c.Chapters.Duplicates = "merge" }},
		{"empty marker", func(c *Config) { c.Chapters.Marker = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad report file", func(c *Config) { c.Report.File = "report.csv" }},
		{"openai without key", func(c *Config) { c.Backend = BackendOpenAI; c.OpenAI.APIKey = "" }},
		{"openai speech marks", func(c *Config) {
			c.Backend = BackendOpenAI
			c.OpenAI.APIKey = "sk"
			c.Synthesis.Format = "json"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateOpenAI(t *testing.T) {
	cfg := validConfig()
	cfg.Backend = BackendOpenAI
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Synthesis.Format = "ogg_vorbis"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid openai config rejected: %v", err)
	}
}
