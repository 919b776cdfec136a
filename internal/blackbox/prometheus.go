package blackbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangeHeaderTime = newGauge("exchange_header_seconds", "Time to negotiate the stream and receive response headers")
	exchangeStatus     = newGauge("exchange_status_code", "HTTP status code of the last probe")
	bodyFirstByteTime  = newGauge("body_first_byte_seconds", "Time to first payload byte")
	bodyDrainTime      = newGauge("body_drain_seconds", "Time to drain the probed byte range")
	bodyBytes          = newGauge("body_bytes", "Number of payload bytes drained")
	bodyThroughput     = newGauge("body_throughput_bytes_per_second", "Drain throughput in bytes per second")
	bodyReconnects     = newGauge("body_reconnect_attempts", "Number of stream reopen attempts during the last drain")
	bodyCorruptFrames  = newGauge("body_corrupt_frames", "Number of chunk framing violations during the last drain")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "httpsource_blackbox",
			Subsystem: "stream",
			Name:      name,
			Help:      help,
		},
		[]string{"probe"},
	)
}
