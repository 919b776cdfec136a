// Package blackbox implements the stream monitoring daemon: it fetches
// every configured stream URL on a fixed cycle through the production
// read path and exports the measurements as Prometheus gauges.
package blackbox

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gitlab.com/audiopipe/httpsource/internal/stats"
	"gitlab.com/audiopipe/httpsource/internal/version"
	"gitlab.com/gitlab-org/labkit/monitoring"
)

// Run starts the probe cycle and serves Prometheus metrics until the
// listener fails.
func Run(cfg *Config) error {
	listener, err := net.Listen("tcp", cfg.PrometheusListenAddr)
	if err != nil {
		return err
	}

	go runProbes(cfg)

	return servePrometheus(listener)
}

func runProbes(cfg *Config) {
	for ; ; time.Sleep(cfg.Sleep.Duration()) {
		for _, probe := range cfg.Probes {
			doProbe(probe)
		}
	}
}

func servePrometheus(l net.Listener) error {
	return monitoring.Serve(
		monitoring.WithListener(l),
		monitoring.WithBuildInformation(version.GetVersion(), version.GetBuildTime()),
	)
}

func doProbe(probe Probe) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entry := log.WithField("probe", probe.Name)
	entry.Info("starting probe")

	fetch := &stats.Fetch{
		URL:               probe.URL,
		ByteLimit:         probe.ByteLimit,
		ReconnectAttempts: probe.ReconnectAttempts,
		ReconnectDelay:    probe.ReconnectDelay.Duration(),
	}

	if err := fetch.Perform(ctx); err != nil {
		entry.WithError(err).Error("probe failed")
		return
	}

	entry.Info("finished probe")

	setGauge := func(gv *prometheus.GaugeVec, value float64) {
		gv.WithLabelValues(probe.Name).Set(value)
	}

	setGauge(exchangeHeaderTime, fetch.Exchange.ResponseHeader().Seconds())
	setGauge(exchangeStatus, float64(fetch.Exchange.HTTPStatus()))
	setGauge(bodyFirstByteTime, fetch.Body.FirstByte().Seconds())
	setGauge(bodyDrainTime, fetch.Body.Elapsed().Seconds())
	setGauge(bodyBytes, float64(fetch.Body.Bytes()))
	setGauge(bodyThroughput, fetch.Body.ThroughputBPS())
	setGauge(bodyReconnects, float64(fetch.Body.Reconnects()))
	setGauge(bodyCorruptFrames, float64(fetch.Body.CorruptFrames()))
}
