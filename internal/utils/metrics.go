package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics bundles the Prometheus collectors of a run. A nil *Metrics is a no-op.
type Metrics struct {
	Registry       *prometheus.Registry
	ItemsTotal     *prometheus.CounterVec // outcome: success|failure
	ItemDuration   prometheus.Histogram
	RetriesTotal   prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec // error_type: ErrorLabel
	PagesCommitted prometheus.Gauge
	BlockedTotal   prometheus.Counter
}

// NewMetrics registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poharvest_items_total",
			Help: "Extraction tasks finished, by outcome.",
		},
		[]string{"outcome"},
	)
	itemDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poharvest_item_duration_seconds",
			Help:    "Wall time of one detail extraction including retries.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poharvest_retries_total",
			Help: "Detail extraction attempts beyond the first.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poharvest_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)
	pages := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poharvest_pages_committed",
			Help: "Last list page persisted by the sink.",
		},
	)
	blocked := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poharvest_blocked_requests_total",
			Help: "Sub-resource requests aborted by the resource filter.",
		},
	)

	registry.MustRegister(items, itemDuration, retries, errorsTotal, pages, blocked)

	return &Metrics{
		Registry:       registry,
		ItemsTotal:     items,
		ItemDuration:   itemDuration,
		RetriesTotal:   retries,
		ErrorsTotal:    errorsTotal,
		PagesCommitted: pages,
		BlockedTotal:   blocked,
	}
}

// ObserveItem records the outcome and duration of one task.
func (m *Metrics) ObserveItem(failed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	m.ItemDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetPagesCommitted records the last committed page.
func (m *Metrics) SetPagesCommitted(k int) {
	if m == nil {
		return
	}
	m.PagesCommitted.Set(float64(k))
}

// IncBlocked counts a request denied by the resource filter.
func (m *Metrics) IncBlocked() {
	if m == nil {
		return
	}
	m.BlockedTotal.Inc()
}

// ServeMetrics exposes the registry on addr until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, m *Metrics, logger zerolog.Logger) {
	if addr == "" || m == nil {
		return
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("metrics server enabled")
}
