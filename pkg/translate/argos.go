package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultArgosURL is the default base URL for the Argos Translate HTTP wrapper.
	DefaultArgosURL = "http://127.0.0.1:5000"
	// DefaultArgosTimeout is the default timeout for HTTP requests.
	DefaultArgosTimeout = 2 * time.Minute
)

// argosLanguages are the packages commonly installed with Argos Translate.
// The wrapper has no listing endpoint.
var argosLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko",
	"ar", "hi", "tr", "pl", "nl", "sv", "da", "fi", "cs", "el",
}

// ArgosClient implements the Translator interface using Argos Translate
// exposed behind a small HTTP wrapper (POST /translate, GET /health).
type ArgosClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewArgosClient creates a new Argos Translate client.
func NewArgosClient(baseURL string, logger *logrus.Logger) *ArgosClient {
	if baseURL == "" {
		baseURL = DefaultArgosURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ArgosClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultArgosTimeout,
		},
		logger: logger,
	}
}

type argosTranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type argosTranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate translates text from source language to target language.
// Argos has no language detection, so "auto" is sent as English.
func (c *ArgosClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == "" || sourceLang == AutoDetect {
		sourceLang = "en"
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"text_length": len(text),
	}).Debug("Translating text with Argos")

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&argosTranslateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": url,
		}).Error("Translation request failed")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("Translation request returned non-OK status")
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var argosResp argosTranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&argosResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Translation completed successfully")

	return argosResp.TranslatedText, nil
}

// CheckHealth verifies that the Argos wrapper answers on /health.
func (c *ArgosClient) CheckHealth(ctx context.Context) error {
	url := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.logger.Debug("Argos Translate health check passed")
	return nil
}

// SupportedLanguages returns the language codes usually available to Argos.
func (c *ArgosClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	out := make([]string, len(argosLanguages))
	copy(out, argosLanguages)
	return out, nil
}
