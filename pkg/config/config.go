package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/dasmlab/pagetrans/pkg/translate"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. http_port is PAGETRANS_HTTP_PORT.
const EnvPrefix = "PAGETRANS"

// Config holds the server configuration.
type Config struct {
	HTTP   HTTPConfig
	GRPC   GRPCConfig
	MT     MTConfig
	PDF    PDFConfig
	Output OutputConfig
	Log    LogConfig
}

// HTTPConfig holds the form and JSON API listener settings.
type HTTPConfig struct {
	Host string
	Port int
	// AllowedOrigins lists cross-origin callers of the JSON API.
	// Empty means same-origin only.
	AllowedOrigins []string
}

// Addr is host:port.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GRPCConfig holds the gRPC listener settings.
type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// Addr is host:port.
func (c GRPCConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MTConfig selects and configures the translation backend.
type MTConfig struct {
	Engine     string
	URL        string
	APIKey     string
	SourceLang string
	Timeout    time.Duration
}

// PDFConfig controls PDF opening.
type PDFConfig struct {
	// Strict validates the whole file with pdfcpu before extracting text.
	Strict bool
}

// OutputConfig controls where literal-text translations are saved.
type OutputConfig struct {
	TextDir string
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string
	Format string
}

// Option customizes the Loader behaviour.
type Option func(*Loader)

// Loader loads and validates configuration from defaults, an optional
// config file, the environment and bound flags.
type Loader struct {
	v          *viper.Viper
	defaults   map[string]interface{}
	configFile string
	validators []func(*Config) error
}

// NewLoader creates a new loader with the built-in defaults.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		v: viper.New(),
		defaults: map[string]interface{}{
			"http_host":            "127.0.0.1",
			"http_port":            7860,
			"grpc_enabled":         true,
			"grpc_host":            "127.0.0.1",
			"grpc_port":            50051,
			"mt_engine":            string(translate.EngineLibreTranslate),
			"mt_url":               "http://localhost:5000",
			"mt_api_key":           "",
			"mt_source_lang":       translate.AutoDetect,
			"mt_timeout":           "5m",
			"pdf_strict":           false,
			"text_output_dir":      ".",
			"cors_allowed_origins": "",
			"log_level":            "info",
			"log_format":           "text",
		},
		validators: []func(*Config) error{validate},
	}

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	l.v.AutomaticEnv()

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithDefaults overrides or adds default values before loading configuration.
func WithDefaults(overrides map[string]interface{}) Option {
	return func(l *Loader) {
		for k, v := range overrides {
			l.defaults[k] = v
		}
	}
}

// WithValidator adds a custom validator to the loader.
func WithValidator(validator func(*Config) error) Option {
	return func(l *Loader) {
		l.validators = append(l.validators, validator)
	}
}

// WithConfigFile reads the given file (yaml, json or toml) before the
// environment is applied. An empty path is ignored.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.configFile = path
	}
}

// Viper returns the underlying viper instance, e.g. to bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads configuration values, applies defaults and validators.
func (l *Loader) Load() (*Config, error) {
	for k, v := range l.defaults {
		l.v.SetDefault(k, v)
	}

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configFile, err)
		}
	}

	timeout, err := time.ParseDuration(l.v.GetString("mt_timeout"))
	if err != nil {
		return nil, fmt.Errorf("mt_timeout: %w", err)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Host:           l.v.GetString("http_host"),
			Port:           l.v.GetInt("http_port"),
			AllowedOrigins: splitList(l.v.GetString("cors_allowed_origins")),
		},
		GRPC: GRPCConfig{
			Enabled: l.v.GetBool("grpc_enabled"),
			Host:    l.v.GetString("grpc_host"),
			Port:    l.v.GetInt("grpc_port"),
		},
		MT: MTConfig{
			Engine:     l.v.GetString("mt_engine"),
			URL:        l.v.GetString("mt_url"),
			APIKey:     l.v.GetString("mt_api_key"),
			SourceLang: l.v.GetString("mt_source_lang"),
			Timeout:    timeout,
		},
		PDF: PDFConfig{
			Strict: l.v.GetBool("pdf_strict"),
		},
		Output: OutputConfig{
			TextDir: l.v.GetString("text_output_dir"),
		},
		Log: LogConfig{
			Level:  l.v.GetString("log_level"),
			Format: l.v.GetString("log_format"),
		},
	}

	for _, validator := range l.validators {
		if err := validator(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// validate checks the built-in settings.
func validate(cfg *Config) error {
	if !validPort(cfg.HTTP.Port) {
		return fmt.Errorf("http_port out of range: %d", cfg.HTTP.Port)
	}
	if cfg.GRPC.Enabled {
		if !validPort(cfg.GRPC.Port) {
			return fmt.Errorf("grpc_port out of range: %d", cfg.GRPC.Port)
		}
		if cfg.GRPC.Port == cfg.HTTP.Port {
			return fmt.Errorf("grpc_port and http_port must differ (both %d)", cfg.HTTP.Port)
		}
	}
	if _, err := translate.ParseEngineType(cfg.MT.Engine); err != nil {
		return err
	}
	if cfg.MT.URL == "" {
		return fmt.Errorf("mt_url is required")
	}
	if cfg.MT.Timeout <= 0 {
		return fmt.Errorf("mt_timeout must be positive")
	}
	if cfg.Output.TextDir == "" {
		return fmt.Errorf("text_output_dir is required")
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log_format: %s", cfg.Log.Format)
	}
	return nil
}
