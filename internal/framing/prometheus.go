package framing

import "github.com/prometheus/client_golang/prometheus"

var (
	chunkTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_framing_chunks_total",
			Help: "Total number of data chunk frames opened by the decoder",
		},
	)
	corruptionTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_framing_corruptions_total",
			Help: "Total number of chunk delimiter violations",
		},
	)
)

func init() {
	prometheus.MustRegister(chunkTotals)
	prometheus.MustRegister(corruptionTotals)
}

func countChunk()      { chunkTotals.Inc() }
func countCorruption() { corruptionTotals.Inc() }
