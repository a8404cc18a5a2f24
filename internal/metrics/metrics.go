// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brewbook/pkg/types"
)

const namespace = "brewbook"

// Metrics groups every collector registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScrapesTotal       *prometheus.CounterVec
	ScrapeDuration     *prometheus.HistogramVec
	RobotsDeniedTotal  *prometheus.CounterVec
	GenerationsTotal   *prometheus.CounterVec
	GenerationTokens   prometheus.Counter
	ImagesTotal        *prometheus.CounterVec
	DrinkOfDayTotal    *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.initScrapeMetrics(factory)
	m.initGenerationMetrics(factory)

	m.HTTPRequestSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	return m
}

func (m *Metrics) initScrapeMetrics(factory promauto.Factory) {
	m.ScrapesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "urls_total",
			Help:      "Scraped URLs by content category and outcome",
		},
		[]string{"category", "outcome"},
	)
	m.ScrapeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "duration_seconds",
			Help:      "Time spent scraping one URL",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"category"},
	)
	m.RobotsDeniedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "robots_denied_total",
			Help:      "URLs disallowed by robots.txt, split by whether the denial was enforced",
		},
		[]string{"enforced"},
	)
}

func (m *Metrics) initGenerationMetrics(factory promauto.Factory) {
	m.GenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "generations_total",
			Help:      "Recipe generation calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	m.GenerationTokens = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "tokens_total",
			Help:      "Model tokens consumed by generation calls",
		},
	)
	m.ImagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "images_total",
			Help:      "Image generation calls by outcome",
		},
		[]string{"outcome"},
	)
	m.DrinkOfDayTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "drink_of_day_total",
			Help:      "Drink of the day lookups by source (cache, storage, generated)",
		},
		[]string{"source"},
	)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScrape records one scrape outcome.
func (m *Metrics) ObserveScrape(category types.ContentCategory, outcome string, elapsed time.Duration) {
	label := string(category)
	if label == "" {
		label = "unknown"
	}
	m.ScrapesTotal.WithLabelValues(label, outcome).Inc()
	m.ScrapeDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveRobotsDenied records a robots.txt denial.
func (m *Metrics) ObserveRobotsDenied(enforced bool) {
	label := "false"
	if enforced {
		label = "true"
	}
	m.RobotsDeniedTotal.WithLabelValues(label).Inc()
}

// ObserveGeneration records a generation call and the tokens it used.
func (m *Metrics) ObserveGeneration(kind string, err error, tokens int64) {
	m.GenerationsTotal.WithLabelValues(kind, outcomeOf(err)).Inc()
	if tokens > 0 {
		m.GenerationTokens.Add(float64(tokens))
	}
}

// ObserveImage records an image generation call.
func (m *Metrics) ObserveImage(err error) {
	m.ImagesTotal.WithLabelValues(outcomeOf(err)).Inc()
}

// ObserveDrinkOfDay records where the drink of the day came from.
func (m *Metrics) ObserveDrinkOfDay(source string) {
	m.DrinkOfDayTotal.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
