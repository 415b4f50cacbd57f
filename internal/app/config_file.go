package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags/env.
type FileConfig struct {
	Query   string `yaml:"query" json:"query"`
	Count   int    `yaml:"count" json:"count"`
	Skip    int    `yaml:"skip" json:"skip"`
	Output  string `yaml:"output" json:"output"`
	Format  string `yaml:"format" json:"format"`
	Order   string `yaml:"order" json:"order"`
	Reverse bool   `yaml:"reverse" json:"reverse"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
		UA  string `yaml:"ua" json:"ua"`
	} `yaml:"searx" json:"searx"`

	Bing struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"bing" json:"bing"`

	Search struct {
		File string `yaml:"file" json:"file"`
	} `yaml:"search" json:"search"`

	Rank struct {
		Parallelism int                `yaml:"parallelism" json:"parallelism"`
		Proxy       string             `yaml:"proxy" json:"proxy"`
		Timeout     string             `yaml:"timeout" json:"timeout"`
		Google      FileProviderConfig `yaml:"google" json:"google"`
		Alexa       FileProviderConfig `yaml:"alexa" json:"alexa"`
	} `yaml:"rank" json:"rank"`

	Metrics struct {
		Out string `yaml:"out" json:"out"`
	} `yaml:"metrics" json:"metrics"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// FileProviderConfig is the per-provider section of FileConfig. Enable is a
// pointer so an absent key leaves the provider on.
type FileProviderConfig struct {
	Enable  *bool  `yaml:"enable" json:"enable"`
	Host    string `yaml:"host" json:"host"`
	Proxy   string `yaml:"proxy" json:"proxy"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value present in fc onto cfg. Callers apply
// env and flags afterwards so those keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	setStr := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setStr(&cfg.Query, fc.Query)
	if fc.Count > 0 {
		cfg.Count = fc.Count
	}
	if fc.Skip > 0 {
		cfg.Skip = fc.Skip
	}
	setStr(&cfg.OutputPath, fc.Output)
	setStr(&cfg.Format, fc.Format)
	setStr(&cfg.Order, fc.Order)
	if fc.Reverse {
		cfg.Reverse = true
	}

	setStr(&cfg.SearxURL, fc.Searx.URL)
	setStr(&cfg.SearxKey, fc.Searx.Key)
	setStr(&cfg.SearxUA, fc.Searx.UA)
	setStr(&cfg.BingURL, fc.Bing.URL)
	setStr(&cfg.BingKey, fc.Bing.Key)
	setStr(&cfg.FileSearchPath, fc.Search.File)

	if fc.Rank.Parallelism > 0 {
		cfg.Parallelism = fc.Rank.Parallelism
	}
	setStr(&cfg.RankProxy, fc.Rank.Proxy)
	if err := setDuration(&cfg.RankTimeout, fc.Rank.Timeout, "rank.timeout"); err != nil {
		return err
	}
	if err := applyFileProvider(&cfg.Google, fc.Rank.Google, "rank.google"); err != nil {
		return err
	}
	if err := applyFileProvider(&cfg.Alexa, fc.Rank.Alexa, "rank.alexa"); err != nil {
		return err
	}

	setStr(&cfg.MetricsOut, fc.Metrics.Out)
	if fc.Verbose {
		cfg.Verbose = true
	}
	return nil
}

func applyFileProvider(dst *ProviderConfig, fp FileProviderConfig, section string) error {
	if fp.Enable != nil {
		dst.Disabled = !*fp.Enable
	}
	if fp.Host != "" {
		dst.Host = fp.Host
	}
	if fp.Proxy != "" {
		dst.Proxy = fp.Proxy
	}
	return setDuration(&dst.Timeout, fp.Timeout, section+".timeout")
}

func setDuration(dst *time.Duration, s, key string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if cfg.Count < 0 || cfg.Skip < 0 || cfg.Parallelism < 0 {
		return errors.New("config: negative count, skip or parallelism is not allowed")
	}
	if cfg.RankTimeout < 0 || cfg.Google.Timeout < 0 || cfg.Alexa.Timeout < 0 {
		return errors.New("config: negative rank timeout is not allowed")
	}
	switch cfg.Format {
	case FormatMarkdown, FormatJSON:
	default:
		return fmt.Errorf("config: unknown output format %q", cfg.Format)
	}
	if name := providerName(cfg.Order); name != "" {
		found := false
		for _, p := range cfg.enabledProviders() {
			if p == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("config: order %q names no enabled rank provider", cfg.Order)
		}
	}
	return nil
}
