package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики регистрируются в prometheus.DefaultRegisterer
// и отдаются через promhttp.Handler().
var (
	// LoadsTotal — завершённые попытки загрузки по режиму и результату.
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gcs2bq_loads_total",
		Help: "Total load attempts by mode (load, external) and status",
	}, []string{"mode", "status"})

	// LoadDuration — длительность попытки загрузки.
	LoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gcs2bq_load_duration_seconds",
		Help:    "Duration of a single load attempt",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"mode"})

	// TaskRetries — количество запланированных повторов.
	TaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gcs2bq_task_retries_total",
		Help: "Total load task retries scheduled by workers",
	})

	// HTTPRequests — обработанные HTTP запросы API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gcs2bq_http_requests_total",
		Help: "Total HTTP requests handled by gcs2bq-api",
	}, []string{"method", "status"})
)

// LoadMode возвращает значение метки mode для загрузки.
func LoadMode(external bool) string {
	if external {
		return "external"
	}
	return "load"
}
