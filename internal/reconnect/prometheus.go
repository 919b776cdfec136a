package reconnect

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_reconnect_attempts_total",
			Help: "Total number of stream reopen attempts",
		},
	)
	exhaustedTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_reconnect_exhausted_total",
			Help: "Total number of reconnect sequences that ran out of attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(attemptTotals)
	prometheus.MustRegister(exhaustedTotals)
}

func countAttempt()   { attemptTotals.Inc() }
func countExhausted() { exhaustedTotals.Inc() }
