// internal/metrics/collector.go
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rovshanmuradov/solana-router/internal/events"
)

const namespace = "solana_router"

// MetricType представляет тип метрики
type MetricType string

const (
	RouteCounterType      MetricType = "route_counter"
	RouteDurationType     MetricType = "route_duration"
	RouteComputeUnitsType MetricType = "route_compute_units"
	RouteLegsType         MetricType = "route_legs"
	FeesCollectedType     MetricType = "fees_collected"
	AdminActionType       MetricType = "admin_actions"
	InFlightType          MetricType = "routes_in_flight"
)

// Collector владеет собственным реестром, чтобы тесты и несколько
// симуляций в одном процессе не конфликтовали.
type Collector struct {
	registry *prometheus.Registry
	metrics  sync.Map

	routes        *prometheus.CounterVec
	routeDuration *prometheus.HistogramVec
	computeUnits  prometheus.Histogram
	legs          prometheus.Histogram
	fees          prometheus.Counter
	adminActions  *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// NewCollector создает коллектор и регистрирует метрики
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routes_total",
				Help:      "Routes submitted, by outcome and router error",
			},
			[]string{"status", "error"},
		),
		routeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_duration_seconds",
				Help:      "Route submission latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"status"},
		),
		computeUnits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_compute_units",
				Help:      "Compute units consumed by committed routes",
				Buckets:   prometheus.LinearBuckets(25_000, 25_000, 16),
			},
		),
		legs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_legs",
				Help:      "Number of legs per committed route",
				Buckets:   prometheus.LinearBuckets(0, 1, 11),
			},
		),
		fees: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fees_collected_total",
				Help:      "Fee base units transferred to the fee vault",
			},
		),
		adminActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_actions_total",
				Help:      "Admin instructions by action and outcome",
			},
			[]string{"action", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes_in_flight",
				Help:      "Routes submitted and not yet finished",
			},
		),
	}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		RouteCounterType:      c.routes,
		RouteDurationType:     c.routeDuration,
		RouteComputeUnitsType: c.computeUnits,
		RouteLegsType:         c.legs,
		FeesCollectedType:     c.fees,
		AdminActionType:       c.adminActions,
		InFlightType:          c.inFlight,
	}
	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry возвращает реестр коллектора
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Reset сбрасывает векторные метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// Handle переводит события маршрутизатора в метрики; реализует events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.RouteStartedEvent:
		c.inFlight.Inc()
	case events.RouteCompletedEvent:
		c.inFlight.Dec()
		c.routes.WithLabelValues("success", "").Inc()
		c.routeDuration.WithLabelValues("success").Observe(e.Duration.Seconds())
		c.computeUnits.Observe(float64(e.ComputeUnits))
		c.legs.Observe(float64(e.Legs))
		c.fees.Add(float64(e.Fee))
	case events.RouteFailedEvent:
		c.inFlight.Dec()
		c.routes.WithLabelValues("failed", e.ErrorName).Inc()
		c.routeDuration.WithLabelValues("failed").Observe(e.Duration.Seconds())
	case events.AdminActionEvent:
		status := "success"
		if e.Error != "" {
			status = "failed"
		}
		c.adminActions.WithLabelValues(e.Action, status).Inc()
	}
	return nil
}

// Subscribe подписывает коллектор на все события маршрутизатора
func (c *Collector) Subscribe(bus *events.Bus) []events.Subscription {
	return bus.SubscribeMany(c)
}
