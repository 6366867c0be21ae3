// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submit outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeUpstream = "upstream_error"
	OutcomeNetwork  = "network_error"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_sessions_created_total",
		Help: "Form sessions opened.",
	})

	Submits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_submits_total",
		Help: "Submit attempts by outcome.",
	}, []string{"outcome"})
)
