package source

import "github.com/prometheus/client_golang/prometheus"

var (
	readBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_source_read_bytes_total",
			Help: "Total number of logical stream bytes delivered to consumers",
		},
	)
	eventTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpsource_source_events_total",
			Help: "Total number of session transitions by event kind",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(readBytesTotal)
	prometheus.MustRegister(eventTotals)
}

func countReadBytes(n int) {
	if n > 0 {
		readBytesTotal.Add(float64(n))
	}
}

func countEvent(t EventType) { eventTotals.WithLabelValues(t.String()).Inc() }
