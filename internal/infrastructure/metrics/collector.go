package metrics

import (
	"errors"
	"net/http"
	"time"

	"akibot/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector は、プロンプト改善と画像生成の結果・所要時間を記録します
type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	busyRejections    prometheus.Counter

	logger *zap.Logger
}

// NewCollector は、独立したレジストリを持つCollectorを作成します
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of enhance/synthesize operations by result",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of enhance/synthesize operations in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"operation"},
		),
		busyRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "busy_rejections_total",
				Help:      "Requests rejected because another request was in flight in the channel",
			},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}

	registry.MustRegister(c.operationsTotal, c.operationDuration, c.busyRejections)
	return c
}

// RecordOperation は、操作の結果と所要時間を記録します
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.operationsTotal.WithLabelValues(operation, ResultLabel(err)).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBusyRejection は、処理中のため拒否したリクエストを記録します
func (c *Collector) RecordBusyRejection() {
	if c == nil {
		return
	}
	c.busyRejections.Inc()
}

// Handler は、/metrics 用のHTTPハンドラーを返します
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ResultLabel は、エラーを結果ラベルに変換します
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTransport):
		return "transport_error"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, domain.ErrImageConversion):
		return "image_conversion_error"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration_error"
	default:
		return "error"
	}
}
