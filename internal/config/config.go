package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"sambot/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for sambot.
type Config struct {
	// Testing enables test mode (join the test channel at startup). When
	// unset in the file the TEST_MODE environment variable decides.
	Testing *bool         `json:"testing,omitempty" yaml:"testing,omitempty"`
	Slack   SlackConfig   `json:"slack" yaml:"slack"`
	MISP    MISPConfig    `json:"misp" yaml:"misp"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Workers WorkersConfig `json:"workers" yaml:"workers"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type SlackConfig struct {
	BotToken      string `json:"botToken,omitempty" yaml:"botToken,omitempty" validate:"required"`
	SigningSecret string `json:"signingSecret,omitempty" yaml:"signingSecret,omitempty" validate:"required"`
	TestChannel   string `json:"testChannel" yaml:"testChannel"`

	// Key names used by older config.json files.
	LegacyBotToken      string `json:"SLACK_BOT_OAUTH_TOKEN,omitempty" yaml:"SLACK_BOT_OAUTH_TOKEN,omitempty" validate:"-"`
	LegacySigningSecret string `json:"SLACK_SIGNING_SECRET,omitempty" yaml:"SLACK_SIGNING_SECRET,omitempty" validate:"-"`
}

// MISPConfig locates the MISP instance snippets are sent to.
type MISPConfig struct {
	URL            string `json:"url" yaml:"url" validate:"required,url"`
	Key            string `json:"key" yaml:"key" validate:"required"`
	SSL            bool   `json:"ssl" yaml:"ssl"`
	Priority       int    `json:"priority" yaml:"priority"` // MISP distribution level
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type LoggingConfig struct {
	Level           string `json:"level" yaml:"level"`
	Format          string `json:"format" yaml:"format"` // "text" | "json"
	OutputFile      string `json:"output_file" yaml:"output_file"`
	OutputErrorFile string `json:"output_error_file" yaml:"output_error_file"`
	MaxSizeMB       int    `json:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups      int    `json:"maxBackups" yaml:"maxBackups"`
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`
}

type FetchConfig struct {
	TimeoutSeconds int   `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	MaxBytes       int64 `json:"maxBytes" yaml:"maxBytes"`
}

// WorkersConfig bounds concurrent snippet relays. 0 means unbounded.
type WorkersConfig struct {
	MaxConcurrent int `json:"maxConcurrent" yaml:"maxConcurrent"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// TestMode reports whether test mode is on.
func (c *Config) TestMode() bool {
	return c.Testing != nil && *c.Testing
}

// Addr returns the listen address of the webhook server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// envOverrides are read from the process environment after the file.
type envOverrides struct {
	TestMode           string `env:"TEST_MODE"`
	SlackBotToken      string `env:"SAMBOT_SLACK_BOT_TOKEN"`
	SlackSigningSecret string `env:"SAMBOT_SLACK_SIGNING_SECRET"`
	MISPURL            string `env:"SAMBOT_MISP_URL"`
	MISPKey            string `env:"SAMBOT_MISP_KEY"`
}

// DefaultConfigPath returns config.json next to the running binary.
func DefaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(filepath.Dir(exe), "config.json")
}

// Load reads, expands, overrides and validates the config at path. Every
// returned error is a *domain.ConfigError.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Cause: fmt.Errorf("cannot read config file %s: %w", path, err)}
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &domain.ConfigError{Cause: fmt.Errorf("couldn't parse %s: %w", filepath.Base(path), err)}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, &domain.ConfigError{Field: "env", Cause: err}
	}
	cfg.normalize()

	cfg.Logging.OutputFile = ExpandPath(cfg.Logging.OutputFile)
	cfg.Logging.OutputErrorFile = ExpandPath(cfg.Logging.OutputErrorFile)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}
	// A testing flag in the file wins over TEST_MODE.
	if cfg.Testing == nil && o.TestMode != "" {
		on, err := strconv.ParseBool(o.TestMode)
		if err != nil {
			on = true
		}
		cfg.Testing = &on
	}
	if o.SlackBotToken != "" {
		cfg.Slack.BotToken = o.SlackBotToken
	}
	if o.SlackSigningSecret != "" {
		cfg.Slack.SigningSecret = o.SlackSigningSecret
	}
	if o.MISPURL != "" {
		cfg.MISP.URL = o.MISPURL
	}
	if o.MISPKey != "" {
		cfg.MISP.Key = o.MISPKey
	}
	return nil
}

func (c *Config) normalize() {
	if c.Slack.BotToken == "" {
		c.Slack.BotToken = c.Slack.LegacyBotToken
	}
	if c.Slack.SigningSecret == "" {
		c.Slack.SigningSecret = c.Slack.LegacySigningSecret
	}
	c.Slack.LegacyBotToken = ""
	c.Slack.LegacySigningSecret = ""
	c.MISP.URL = strings.TrimRight(c.MISP.URL, "/")
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset VAR
// without a default is left as is.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		val, ok := os.LookupEnv(groups[1])
		if ok && val != "" {
			return val
		}
		if len(groups) >= 3 && groups[2] != "" {
			return groups[2]
		}
		return match
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config key, not the Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the config has usable values.
func Validate(cfg *Config) error {
	var errs []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &domain.ConfigError{Cause: err}
		}
		for _, fe := range verrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			switch fe.Tag() {
			case "required":
				errs = append(errs, field+" is required")
			case "url":
				errs = append(errs, field+" must be a URL")
			default:
				errs = append(errs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
			}
		}
	}

	if cfg.MISP.Priority < 0 || cfg.MISP.Priority > 5 {
		errs = append(errs, "misp.priority must be between 0 and 5")
	}
	if cfg.MISP.TimeoutSeconds < 1 {
		errs = append(errs, "misp.timeoutSeconds must be >= 1")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		errs = append(errs, "server.path must start with /")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, "logging.format must be one of: text, json")
	}
	if cfg.Fetch.TimeoutSeconds < 1 {
		errs = append(errs, "fetch.timeoutSeconds must be >= 1")
	}
	if cfg.Fetch.MaxBytes < 1 {
		errs = append(errs, "fetch.maxBytes must be >= 1")
	}
	if cfg.Workers.MaxConcurrent < 0 {
		errs = append(errs, "workers.maxConcurrent must be >= 0")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return &domain.ConfigError{Cause: fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))}
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Sanitize returns a copy of the config with credentials masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	if cfg.Testing != nil {
		t := *cfg.Testing
		c.Testing = &t
	}
	c.Slack.BotToken = maskString(c.Slack.BotToken)
	c.Slack.SigningSecret = maskString(c.Slack.SigningSecret)
	c.MISP.Key = maskString(c.MISP.Key)
	return &c
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// GetByPath retrieves a config value by dot-notation path (e.g. "server.port").
func GetByPath(cfg *Config, path string) (any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var current any
	if err := json.Unmarshal(data, &current); err != nil {
		return nil, err
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
		val, ok := m[key]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
		current = val
	}
	return current, nil
}
