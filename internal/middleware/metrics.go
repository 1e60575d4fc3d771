package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the gauge of currently open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tally_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// SyncRequestsTotal counts sync protocol requests by type and outcome.
	SyncRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_sync_requests_total",
		Help: "Total number of tab sync requests by type and outcome",
	}, []string{"type", "outcome"})

	// NotificationsPublished counts notification events handed to the dispatcher.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_notifications_published_total",
		Help: "Total number of notification events published",
	}, []string{"event"})
)

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the Prometheus HTTP middleware for the given service
// name. The underlying collectors live in the default registry, so the
// instance is created once and reused on subsequent calls.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.New(serviceName)
	})
	return promInstance
}

// MetricsMiddleware returns the request-instrumentation handler for the
// given Prometheus middleware instance.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
