package importing

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type metrics struct {
	sessionsTotal   *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	structuralTotal *prometheus.CounterVec

	executionDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		sessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabular_import",
			Name:      "sessions_total",
			Help:      "Total number of import session transitions.",
		}, []string{"entity_type", "event"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabular_import",
			Name:      "rows_total",
			Help:      "Total number of executed rows by outcome.",
		}, []string{"entity_type", "outcome"}),
		structuralTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabular_import",
			Name:      "structural_errors_total",
			Help:      "Total number of operations aborted before touching any row.",
		}, []string{"kind"}),
		executionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tabular_import",
			Name:      "execution_duration_seconds",
			Help:      "Wall time of import executions.",
			Buckets: []float64{
				0.01, 0.05, 0.1, 0.5,
				1, 2, 5, 10, 30,
				60, 120, 300,
			},
		}, []string{"entity_type"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func (m *metrics) sessionEvent(entityType domain.EntityType, event domain.Status) {
	m.sessionsTotal.WithLabelValues(string(entityType), string(event)).Inc()
}

func (m *metrics) structural(err error) {
	m.structuralTotal.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrSessionAlreadyExecuted):
		return "already_executed"
	case errors.Is(err, domain.ErrSessionNotMapped):
		return "not_mapped"
	case errors.Is(err, domain.ErrSessionForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrMalformedFile):
		return "malformed_file"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, domain.ErrInvalidMapping):
		return "invalid_mapping"
	case errors.Is(err, domain.ErrInvalidManualMatch):
		return "invalid_manual_match"
	case errors.Is(err, domain.ErrUnknownEntityType):
		return "unknown_entity_type"
	case errors.Is(err, ErrInvalidImportSource):
		return "invalid_source"
	case errors.Is(err, ErrLookupFailed):
		return "lookup_failed"
	default:
		return "internal"
	}
}
