package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

var (
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepublish_publish_total",
			Help: "Total number of finished publish pipelines by result",
		},
		[]string{"result"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitepublish_step_duration_seconds",
			Help:    "Duration of publish pipeline steps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"step", "status"},
	)

	DomainVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepublish_domain_verifications_total",
			Help: "Total number of custom domain DNS checks by result",
		},
		[]string{"result"},
	)

	SSLProvisioningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitepublish_ssl_provisioning_total",
			Help: "Total number of finished SSL provisioning runs by result",
		},
		[]string{"result"},
	)
)

// ObserveStep records how long a finished pipeline step took.
func ObserveStep(step, status string, started, finished *time.Time) {
	if started == nil || finished == nil {
		return
	}
	StepDuration.WithLabelValues(step, status).Observe(finished.Sub(*started).Seconds())
}
