package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RideOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "campusride", Name: "ride_operations_total", Help: "Ride lifecycle operations by result"},
		[]string{"operation", "result"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "campusride", Name: "notifications_total", Help: "Notifications persisted by type and result"},
		[]string{"type", "result"},
	)
	OrphanedNotificationsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campusride", Name: "orphaned_notifications_deleted_total", Help: "Notifications removed because their ride no longer exists",
	})
	MatchDuration      = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "campusride", Name: "match_duration_seconds", Help: "Matching computation latency"})
	MatchStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "campusride", Name: "match_streams_active", Help: "Open matching streams"})
	WSClients          = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "campusride", Name: "ws_clients", Help: "Connected websocket clients"})
)

func observeOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		var e *Error
		if errors.As(err, &e) {
			result = string(e.Kind)
		}
	}
	RideOperationsTotal.WithLabelValues(operation, result).Inc()
}
