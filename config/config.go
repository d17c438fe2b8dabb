// Package config loads runtime configuration from an optional YAML
// file, environment variables, and flag-supplied overrides, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults match the container contract: PDFs are read from
// /app/input and JSON is written next to nothing else in /app/output.
const (
	DefaultInputDir  = "/app/input"
	DefaultOutputDir = "/app/output"
)

// Config is the full runtime configuration of the extractor.
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	// Workers caps concurrent file processing; zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// CachePath locates the result cache database; empty disables it.
	CachePath string `yaml:"cache_path"`
	// Watch keeps the process running and picks up files as they
	// appear in the input directory.
	Watch bool `yaml:"watch"`
	OCR   OCR  `yaml:"ocr"`
	// Language pins the document language instead of detecting it.
	Language string `yaml:"language"`
	// Debug switches the logger to debug level.
	Debug bool `yaml:"debug"`
}

// OCR controls recognition of scanned pages.
type OCR struct {
	Enabled bool `yaml:"enabled"`
	// Languages lists tessdata models to load, e.g. "eng", "jpn".
	Languages []string `yaml:"languages"`
}

func Default() Config {
	return Config{
		InputDir:  DefaultInputDir,
		OutputDir: DefaultOutputDir,
	}
}

// Load reads the YAML file at path when it is non-empty, then applies
// environment overrides. A missing file at the default path is fine;
// an explicit path that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Environment variables use the OUTLINE_ prefix.
func (c *Config) applyEnv() {
	if v := os.Getenv("OUTLINE_INPUT_DIR"); v != "" {
		c.InputDir = v
	}
	if v := os.Getenv("OUTLINE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("OUTLINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("OUTLINE_CACHE_PATH"); v != "" {
		c.CachePath = v
	}
	if v := os.Getenv("OUTLINE_WATCH"); v != "" {
		c.Watch = isTruthy(v)
	}
	if v := os.Getenv("OUTLINE_OCR"); v != "" {
		c.OCR.Enabled = isTruthy(v)
	}
	if v := os.Getenv("OUTLINE_OCR_LANGUAGES"); v != "" {
		c.OCR.Languages = splitList(v)
	}
	if v := os.Getenv("OUTLINE_LANGUAGE"); v != "" {
		c.Language = v
	}
	if v := os.Getenv("OUTLINE_DEBUG"); v != "" {
		c.Debug = isTruthy(v)
	}
}

func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must be set")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
