package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Translator defines the interface for machine translation backends.
// This abstraction allows us to switch between different MT engines
// (LibreTranslate, Argos, MyMemory) without changing the pipeline.
type Translator interface {
	// Translate translates text from source language to target language.
	// sourceLang and targetLang should be in ISO 639-1 format (e.g., "en", "fr").
	// sourceLang may be "auto" when the backend supports detection.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// CheckHealth verifies that the translation backend is ready and operational.
	CheckHealth(ctx context.Context) error

	// SupportedLanguages returns a list of language codes supported by this backend.
	// Returns ISO 639-1 codes (e.g., ["en", "fr", "es"]).
	SupportedLanguages(ctx context.Context) ([]string, error)
}

// AutoDetect is the source language used when the caller does not know it.
const AutoDetect = "auto"

// ErrUnsupportedLanguage is returned when a language name or code cannot be resolved.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is one entry of the language menu offered to users.
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// languageChoices is the fixed menu shown in the form, in display order.
var languageChoices = []Language{
	{Name: "english", Code: "en"},
	{Name: "french", Code: "fr"},
	{Name: "german", Code: "de"},
	{Name: "spanish", Code: "es"},
	{Name: "italian", Code: "it"},
	{Name: "chinese", Code: "zh"},
	{Name: "japanese", Code: "ja"},
	{Name: "hindi", Code: "hi"},
	{Name: "arabic", Code: "ar"},
}

// LanguageMapper handles conversion between the language names users pick
// and the ISO 639-1 codes backends expect.
type LanguageMapper struct {
	byName map[string]string
	byCode map[string]string
}

// NewLanguageMapper creates a new language mapper instance.
func NewLanguageMapper() *LanguageMapper {
	lm := &LanguageMapper{
		byName: make(map[string]string, len(languageChoices)),
		byCode: make(map[string]string, len(languageChoices)),
	}
	for _, l := range languageChoices {
		lm.byName[l.Name] = l.Code
		lm.byCode[l.Code] = l.Name
	}
	return lm
}

// Choices returns the language menu in display order.
func (lm *LanguageMapper) Choices() []Language {
	out := make([]Language, len(languageChoices))
	copy(out, languageChoices)
	return out
}

// Resolve turns a language name ("german") or code ("de", "de-AT", "DE")
// into a backend code. Unknown languages return ErrUnsupportedLanguage.
func (lm *LanguageMapper) Resolve(lang string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if code, ok := lm.byName[key]; ok {
		return code, nil
	}
	code := lm.ToBackendCode(key)
	if _, ok := lm.byCode[code]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
}

// ToBackendCode converts a language tag to backend format.
// Examples:
//   - "EN" -> "en"
//   - "fr-CA" -> "fr"
//   - "en_US" -> "en"
func (lm *LanguageMapper) ToBackendCode(tag string) string {
	lang := strings.ToLower(tag)

	// Extract base language (before any "-" or "_")
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}

	return lang
}
