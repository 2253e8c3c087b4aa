package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7860", cfg.HTTP.Addr())
	assert.Empty(t, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, "127.0.0.1:50051", cfg.GRPC.Addr())
	assert.Equal(t, "libretranslate", cfg.MT.Engine)
	assert.Equal(t, "http://localhost:5000", cfg.MT.URL)
	assert.Equal(t, "auto", cfg.MT.SourceLang)
	assert.Equal(t, 5*time.Minute, cfg.MT.Timeout)
	assert.False(t, cfg.PDF.Strict)
	assert.Equal(t, ".", cfg.Output.TextDir)
	assert.Equal(t, LogConfig{Level: "info", Format: "text"}, cfg.Log)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PAGETRANS_HTTP_PORT", "8080")
	t.Setenv("PAGETRANS_MT_ENGINE", "mymemory")
	t.Setenv("PAGETRANS_MT_TIMEOUT", "30s")
	t.Setenv("PAGETRANS_GRPC_ENABLED", "false")
	t.Setenv("PAGETRANS_CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "mymemory", cfg.MT.Engine)
	assert.Equal(t, 30*time.Second, cfg.MT.Timeout)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagetrans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mt_engine: argos\npdf_strict: true\ntext_output_dir: /srv/out\n"), 0o644))

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	require.NoError(t, err)

	assert.Equal(t, "argos", cfg.MT.Engine)
	assert.True(t, cfg.PDF.Strict)
	assert.Equal(t, "/srv/out", cfg.Output.TextDir)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))).Load()
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"unknown engine": {"mt_engine": "deepl"},
		"bad timeout":    {"mt_timeout": "soon"},
		"zero timeout":   {"mt_timeout": "0s"},
		"http port":      {"http_port": 70000},
		"grpc port":      {"grpc_port": 0},
		"same ports":     {"grpc_port": 7860},
		"empty mt url":   {"mt_url": ""},
		"empty text dir": {"text_output_dir": ""},
		"bad log level":  {"log_level": "loud"},
		"bad log format": {"log_format": "xml"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader(WithDefaults(overrides)).Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_GRPCDisabledSkipsPortChecks(t *testing.T) {
	_, err := NewLoader(WithDefaults(map[string]interface{}{
		"grpc_enabled": false,
		"grpc_port":    7860,
	})).Load()
	assert.NoError(t, err)
}

func TestLoad_CustomValidator(t *testing.T) {
	_, err := NewLoader(WithValidator(func(c *Config) error {
		if !c.PDF.Strict {
			return assert.AnError
		}
		return nil
	})).Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("k", "v").Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = NewLogger(LogConfig{Level: "nope", Format: "text"}, nil)
	assert.Error(t, err)
}
