package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"github.com/mergetools/mergecat/internal/archive"
)

type Config struct {
	Sentinel  string   `yaml:"sentinel"`
	Delimiter string   `yaml:"delimiter"`
	Encoding  string   `yaml:"encoding"` // IANA name for header text, empty means UTF-8
	Pattern   string   `yaml:"pattern"`
	Exclude   []string `yaml:"exclude"`
	FailFast  bool     `yaml:"fail_fast"` // assert inputs exist before merging
	// Suffixes used by the run command: <dir><merge_suffix> is the archive,
	// <path><split_suffix> is the extraction directory.
	MergeSuffix string `yaml:"merge_suffix"`
	SplitSuffix string `yaml:"split_suffix"`
}

func DefaultConfig() *Config {
	return &Config{
		Sentinel:  archive.DefaultSentinel,
		Delimiter: archive.DefaultDelimiter,
		Pattern:   "*",
		Exclude: []string{
			".git",
			".DS_Store",
		},
		FailFast:    true,
		MergeSuffix: ".txt",
		SplitSuffix: ".out",
	}
}

func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mergecat", "config.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Options resolves the config into codec options, mapping the encoding name
// through the IANA index.
func (c *Config) Options() (archive.Options, error) {
	opts := archive.Options{
		Sentinel:  c.Sentinel,
		Delimiter: c.Delimiter,
	}
	if c.Encoding == "" || strings.EqualFold(c.Encoding, "utf-8") {
		return opts, nil
	}
	enc, err := ianaindex.IANA.Encoding(c.Encoding)
	if err != nil {
		return opts, fmt.Errorf("unknown encoding %q: %w", c.Encoding, err)
	}
	if enc == nil {
		return opts, fmt.Errorf("unsupported encoding %q", c.Encoding)
	}
	opts.Encoding = enc
	return opts, nil
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unexpanded if home unavailable
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
