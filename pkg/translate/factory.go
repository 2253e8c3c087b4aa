package translate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineType represents the type of translation engine to use.
type EngineType string

const (
	// EngineLibreTranslate uses LibreTranslate as the backend.
	EngineLibreTranslate EngineType = "libretranslate"
	// EngineArgos uses Argos Translate as the backend.
	EngineArgos EngineType = "argos"
	// EngineMyMemory uses the public MyMemory API as the backend.
	EngineMyMemory EngineType = "mymemory"
)

// Config holds configuration for creating a Translator instance.
type Config struct {
	// Engine specifies which translation engine to use.
	Engine EngineType
	// BaseURL is the base URL for the translation engine API.
	// Each engine falls back to its own default when empty.
	BaseURL string
	// APIKey is sent to engines that accept one (LibreTranslate, MyMemory).
	APIKey string
	// Timeout bounds a single HTTP call. Zero keeps the engine default.
	Timeout time.Duration
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewTranslator creates a new Translator instance based on the configuration.
// The returned backend is wrapped so every call is recorded in Prometheus.
func NewTranslator(cfg Config) (Translator, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
	}).Info("Creating translator instance")

	var backend Translator
	switch cfg.Engine {
	case EngineLibreTranslate:
		c := NewLibreTranslateClient(cfg.BaseURL, cfg.APIKey, cfg.Logger)
		if cfg.Timeout > 0 {
			c.httpClient.Timeout = cfg.Timeout
		}
		backend = c
	case EngineArgos:
		c := NewArgosClient(cfg.BaseURL, cfg.Logger)
		if cfg.Timeout > 0 {
			c.httpClient.Timeout = cfg.Timeout
		}
		backend = c
	case EngineMyMemory:
		c := NewMyMemoryClient(cfg.BaseURL, cfg.APIKey, cfg.Logger)
		if cfg.Timeout > 0 {
			c.httpClient.Timeout = cfg.Timeout
		}
		backend = c
	default:
		cfg.Logger.WithFields(logrus.Fields{
			"engine": cfg.Engine,
		}).Error("Unknown translation engine")
		return nil, fmt.Errorf("unknown translation engine: %s", cfg.Engine)
	}

	return NewInstrumentedTranslator(backend, string(cfg.Engine)), nil
}

// ParseEngineType parses a string into an EngineType.
// Returns an error if the string is not a valid engine type.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "libretranslate":
		return EngineLibreTranslate, nil
	case "argos":
		return EngineArgos, nil
	case "mymemory":
		return EngineMyMemory, nil
	default:
		return "", fmt.Errorf("unknown engine type: %s (supported: libretranslate, argos, mymemory)", s)
	}
}
