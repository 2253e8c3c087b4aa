package translate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_translation_requests_total",
			Help: "Total number of translation backend requests",
		},
		[]string{"engine", "status"},
	)

	translationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_translation_request_duration_seconds",
			Help:    "Duration of translation backend requests in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"engine", "status"},
	)

	translationRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_translation_request_size_bytes",
			Help:    "Size of text sent for translation in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"engine"},
	)

	translationResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_translation_response_size_bytes",
			Help:    "Size of translated text in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"engine"},
	)

	translationBackendUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pagetrans_translation_backend_up",
			Help: "1 if the last health check of the backend passed, 0 otherwise",
		},
		[]string{"engine"},
	)
)

// InstrumentedTranslator records Prometheus metrics around another Translator.
type InstrumentedTranslator struct {
	next   Translator
	engine string
}

// NewInstrumentedTranslator wraps next; engine labels every metric.
func NewInstrumentedTranslator(next Translator, engine string) *InstrumentedTranslator {
	return &InstrumentedTranslator{next: next, engine: engine}
}

// Translate forwards to the wrapped backend and records the outcome.
func (t *InstrumentedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	start := time.Now()
	out, err := t.next.Translate(ctx, text, sourceLang, targetLang)
	t.record(time.Since(start), err == nil, len(text), len(out))
	return out, err
}

// CheckHealth forwards to the wrapped backend and updates the up gauge.
func (t *InstrumentedTranslator) CheckHealth(ctx context.Context) error {
	err := t.next.CheckHealth(ctx)
	up := 1.0
	if err != nil {
		up = 0
	}
	translationBackendUp.WithLabelValues(t.engine).Set(up)
	return err
}

// SupportedLanguages forwards to the wrapped backend.
func (t *InstrumentedTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return t.next.SupportedLanguages(ctx)
}

func (t *InstrumentedTranslator) record(duration time.Duration, success bool, requestSize, responseSize int) {
	status := "success"
	if !success {
		status = "error"
	}

	translationRequestsTotal.WithLabelValues(t.engine, status).Inc()
	translationRequestDuration.WithLabelValues(t.engine, status).Observe(duration.Seconds())
	translationRequestSize.WithLabelValues(t.engine).Observe(float64(requestSize))
	if success {
		translationResponseSize.WithLabelValues(t.engine).Observe(float64(responseSize))
	}
}
