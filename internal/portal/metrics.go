package portal

import "github.com/prometheus/client_golang/prometheus"

var (
	loginCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bezoekersparkeren",
		Subsystem: "portal",
		Name:      "logins_total",
		Help:      "total number of portal logins",
	},
		[]string{"result"},
	)

	submissionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bezoekersparkeren",
		Subsystem: "portal",
		Name:      "submissions_total",
		Help:      "total number of portal form submissions",
	},
		[]string{"action", "result"},
	)
)

func init() {
	prometheus.MustRegister(loginCounter, submissionCounter)
}
