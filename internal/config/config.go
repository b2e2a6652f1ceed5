// Package config resolves runwarden settings from defaults, an optional YAML
// file, RUNWARDEN_* environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/repository"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kyleking/gh-runwarden/internal/annotations"
	"github.com/kyleking/gh-runwarden/internal/checkpoint"
	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/governance"
	"github.com/kyleking/gh-runwarden/internal/policy"
	"github.com/kyleking/gh-runwarden/internal/scheduler"
)

// Sentinel validation errors.
var (
	ErrNoRules     = errors.New("no governance rules configured")
	ErrInvalidRepo = errors.New("invalid repository")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUNWARDEN"

// FileName is the config file looked up in the working and home directories.
const FileName = ".runwarden"

// Config is the validated configuration handed to each component.
type Config struct {
	Repo      string
	Host      string
	Token     string
	LogLevel  string
	LogFormat string

	HTTP        HTTPConfig
	Governance  GovernanceConfig
	Aggregation AggregationConfig
}

// HTTPConfig controls the provider client.
type HTTPConfig struct {
	Timeout time.Duration
	Retry   github.RetryConfig
}

// GovernanceConfig controls the watch loop.
type GovernanceConfig struct {
	Statuses      []github.RunStatus
	PerPage       int
	MaxPages      int
	Interval      time.Duration
	ActionTimeout time.Duration
	Rules         []policy.Rule
}

// AggregationConfig controls the failure-annotation pass.
type AggregationConfig struct {
	Workflow    string
	Status      github.RunStatus
	PerPage     int
	MaxPages    int
	PageDelay   time.Duration
	Concurrency int
	Output      string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("token", EnvPrefix+"_TOKEN", "GH_TOKEN", "GITHUB_TOKEN")
	SetDefaults(v)
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	retry := github.DefaultRetryConfig()
	gov := governance.DefaultOptions()
	agg := annotations.DefaultOptions()

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max-retries", retry.MaxRetries)
	v.SetDefault("http.initial-backoff", retry.InitialBackoff)
	v.SetDefault("http.max-backoff", retry.MaxBackoff)
	v.SetDefault("http.backoff-multiplier", retry.BackoffMultiplier)
	v.SetDefault("http.requests-per-second", retry.RequestsPerSecond)
	v.SetDefault("http.burst", retry.Burst)

	statuses := make([]string, len(gov.Statuses))
	for i, s := range gov.Statuses {
		statuses[i] = string(s)
	}
	v.SetDefault("governance.statuses", statuses)
	v.SetDefault("governance.per-page", gov.PerPage)
	v.SetDefault("governance.max-pages", gov.MaxPages)
	v.SetDefault("governance.interval", scheduler.DefaultInterval)
	v.SetDefault("governance.action-timeout", 30*time.Second)

	v.SetDefault("aggregation.workflow", agg.Workflow)
	v.SetDefault("aggregation.status", string(agg.Status))
	v.SetDefault("aggregation.per-page", agg.PerPage)
	v.SetDefault("aggregation.max-pages", agg.MaxPages)
	v.SetDefault("aggregation.page-delay", agg.PageDelay)
	v.SetDefault("aggregation.concurrency", agg.Concurrency)
	v.SetDefault("aggregation.output", checkpoint.DefaultPath)
}

// ReadFile loads path, or searches for .runwarden.yaml when path is empty.
// A missing searched-for file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	rules, err := decodeRules(v.Get("governance.rules"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Repo:      v.GetString("repo"),
		Host:      v.GetString("host"),
		Token:     v.GetString("token"),
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
		HTTP: HTTPConfig{
			Timeout: v.GetDuration("http.timeout"),
			Retry: github.RetryConfig{
				MaxRetries:        v.GetInt("http.max-retries"),
				InitialBackoff:    v.GetDuration("http.initial-backoff"),
				MaxBackoff:        v.GetDuration("http.max-backoff"),
				BackoffMultiplier: v.GetFloat64("http.backoff-multiplier"),
				RequestsPerSecond: v.GetFloat64("http.requests-per-second"),
				Burst:             v.GetInt("http.burst"),
			},
		},
		Governance: GovernanceConfig{
			PerPage:       v.GetInt("governance.per-page"),
			MaxPages:      v.GetInt("governance.max-pages"),
			Interval:      v.GetDuration("governance.interval"),
			ActionTimeout: v.GetDuration("governance.action-timeout"),
			Rules:         rules,
		},
		Aggregation: AggregationConfig{
			Workflow:    v.GetString("aggregation.workflow"),
			Status:      github.RunStatus(v.GetString("aggregation.status")),
			PerPage:     v.GetInt("aggregation.per-page"),
			MaxPages:    v.GetInt("aggregation.max-pages"),
			PageDelay:   v.GetDuration("aggregation.page-delay"),
			Concurrency: v.GetInt("aggregation.concurrency"),
			Output:      v.GetString("aggregation.output"),
		},
	}
	for _, s := range v.GetStringSlice("governance.statuses") {
		cfg.Governance.Statuses = append(cfg.Governance.Statuses, github.RunStatus(s))
	}

	if cfg.Repo == "" {
		if current, err := repository.Current(); err == nil {
			cfg.Repo = current.Owner + "/" + current.Name
			if cfg.Host == "" {
				cfg.Host = current.Host
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeRules re-encodes the raw viper value and parses it with the policy
// decoder so shorthand forms work from config files.
func decodeRules(raw any) ([]policy.Rule, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		return policy.ParseRules([]byte(s))
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("governance.rules: %w", err)
	}
	rules, err := policy.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("governance.rules: %w", err)
	}
	return rules, nil
}

// Validate checks the settings shared by every command. An empty Repo is
// allowed here; commands that talk to the provider call RequireRepo.
func (c *Config) Validate() error {
	if c.Repo != "" {
		if _, err := repository.Parse(c.Repo); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidRepo, c.Repo, err)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format %q (want text or json)", c.LogFormat)
	}
	if c.Governance.PerPage < 1 || c.Governance.PerPage > 100 {
		return fmt.Errorf("governance.per-page must be between 1 and 100, got %d", c.Governance.PerPage)
	}
	if c.Aggregation.PerPage < 1 || c.Aggregation.PerPage > 100 {
		return fmt.Errorf("aggregation.per-page must be between 1 and 100, got %d", c.Aggregation.PerPage)
	}
	if c.Governance.MaxPages < 0 || c.Aggregation.MaxPages < 0 {
		return errors.New("max-pages must not be negative")
	}
	for i, r := range c.Governance.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("governance.rules[%d]: %w", i, err)
		}
	}
	return nil
}

// RequireRepo fails when no repository could be resolved.
func (c *Config) RequireRepo() error {
	if c.Repo == "" {
		return fmt.Errorf("%w: set --repo or run inside a GitHub checkout", ErrInvalidRepo)
	}
	return nil
}

// ValidateGovernance additionally requires at least one rule.
func (c *Config) ValidateGovernance() error {
	if len(c.Governance.Rules) == 0 {
		return ErrNoRules
	}
	if len(c.Governance.Statuses) == 0 {
		return errors.New("governance.statuses must not be empty")
	}
	return nil
}

// ClientOptions maps the config onto the provider client.
func (c *Config) ClientOptions(logger *slog.Logger) github.ClientOptions {
	return github.ClientOptions{
		Repo:      c.Repo,
		Host:      c.Host,
		AuthToken: c.Token,
		Timeout:   c.HTTP.Timeout,
		Retry:     c.HTTP.Retry,
		Logger:    logger,
	}
}

// GovernanceOptions maps the config onto a governance pass.
func (c *Config) GovernanceOptions() governance.Options {
	return governance.Options{
		Statuses: c.Governance.Statuses,
		PerPage:  c.Governance.PerPage,
		MaxPages: c.Governance.MaxPages,
	}
}

// AggregationOptions maps the config onto an aggregation pass.
func (c *Config) AggregationOptions() annotations.Options {
	return annotations.Options{
		Workflow:    c.Aggregation.Workflow,
		Status:      c.Aggregation.Status,
		PerPage:     c.Aggregation.PerPage,
		MaxPages:    c.Aggregation.MaxPages,
		PageDelay:   c.Aggregation.PageDelay,
		Concurrency: c.Aggregation.Concurrency,
	}
}

// ParseLevel maps a level name onto slog.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log-level %q: %w", level, err)
	}
	return l, nil
}

// NewLogger builds the process logger writing to w.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
