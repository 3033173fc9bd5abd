package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`
	Retries int    `yaml:"retries"`
	PaceMs  int    `yaml:"pace_ms"`
	Debug   bool   `yaml:"debug"`

	DefaultSerie int    `yaml:"default_serie"`
	DefaultType  string `yaml:"default_type"`

	User       string `yaml:"user"`
	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	SkipBroken bool `yaml:"skip_broken"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	Output       string
	Workers      int
	Retries      int
	PaceMs       int
	DefaultSerie int
	DefaultType  string
	User         string
	Cookie       string
	CookieFile   string
	UserAgent    string
	SkipBroken   bool
}

func DefaultConfig() *Config {
	return &Config{
		Output:      ".",
		Workers:     4,
		Retries:     3,
		PaceMs:      1000,
		Debug:       false,
		DefaultType: "episode",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadMerged resolves the effective configuration: flags beat the active
// profile, the profile beats the built-in defaults.
func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `piccomad config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.Retries != 0 {
		c.Retries = o.Retries
	}
	if o.PaceMs != 0 {
		c.PaceMs = o.PaceMs
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultSerie != 0 {
		c.DefaultSerie = o.DefaultSerie
	}
	if o.DefaultType != "" {
		c.DefaultType = o.DefaultType
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.SkipBroken {
		c.SkipBroken = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.PaceMs <= 0 {
		c.PaceMs = 1000
	}
	if c.DefaultType == "" {
		c.DefaultType = "episode"
	}
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	fmt.Printf(" -workers: %d\n", c.Workers)
	fmt.Printf(" -retries: %d\n", c.Retries)
	fmt.Printf(" -pace_ms: %d\n", c.PaceMs)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultSerie != 0 {
		fmt.Printf(" -default_serie: %d\n", c.DefaultSerie)
	}
	if c.DefaultType != "" {
		fmt.Printf(" -default_type: %s\n", c.DefaultType)
	}
	if c.User != "" {
		fmt.Printf(" -user: %s\n", c.User)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
	if c.SkipBroken {
		fmt.Printf(" -skip_broken: %t\n", c.SkipBroken)
	}
}
