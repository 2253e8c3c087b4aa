package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMyMemoryURL is the public MyMemory endpoint.
	DefaultMyMemoryURL = "https://api.mymemory.translated.net"
	// DefaultMyMemoryTimeout is the default timeout for HTTP requests.
	DefaultMyMemoryTimeout = 30 * time.Second

	myMemoryAutoDetect = "autodetect"
)

// MyMemoryClient implements the Translator interface using the MyMemory API.
// It needs no local service, which makes it the zero-setup engine.
type MyMemoryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewMyMemoryClient creates a new MyMemory client. apiKey is optional.
func NewMyMemoryClient(baseURL, apiKey string, logger *logrus.Logger) *MyMemoryClient {
	if baseURL == "" {
		baseURL = DefaultMyMemoryURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &MyMemoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultMyMemoryTimeout,
		},
		logger: logger,
	}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// MyMemory sends the status as a number or as a quoted number.
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
}

func (r *myMemoryResponse) status() int {
	raw := strings.Trim(string(r.ResponseStatus), `"`)
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return code
}

// Translate translates text from source language to target language.
func (c *MyMemoryClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == "" || sourceLang == AutoDetect {
		sourceLang = myMemoryAutoDetect
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"text_length": len(text),
	}).Debug("Translating text with MyMemory")

	params := url.Values{}
	params.Set("q", text)
	params.Set("langpair", sourceLang+"|"+targetLang)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	endpoint := c.baseURL + "/get?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("Translation request failed")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var mmResp myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&mmResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	// Quota and language errors come back with HTTP 200 and a failing responseStatus
	if code := mmResp.status(); code != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"response_status": code,
			"details":         mmResp.ResponseDetails,
		}).Error("MyMemory rejected translation")
		details := mmResp.ResponseDetails
		if details == "" {
			details = mmResp.ResponseData.TranslatedText
		}
		return "", fmt.Errorf("mymemory status %d: %s", code, details)
	}

	c.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Translation completed successfully")

	return mmResp.ResponseData.TranslatedText, nil
}

// CheckHealth performs a tiny translation round trip.
func (c *MyMemoryClient) CheckHealth(ctx context.Context) error {
	if _, err := c.Translate(ctx, "hello", "en", "fr"); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// SupportedLanguages returns the codes of the language menu; MyMemory
// covers all of them and offers no listing endpoint.
func (c *MyMemoryClient) SupportedLanguages(ctx context.Context) ([]string, error) {
	codes := make([]string, 0, len(languageChoices))
	for _, l := range languageChoices {
		codes = append(codes, l.Code)
	}
	return codes, nil
}
