package negotiate

import "github.com/prometheus/client_golang/prometheus"

var (
	requestTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_negotiate_requests_total",
			Help: "Total number of stream negotiation attempts",
		},
	)
	failureTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_negotiate_failures_total",
			Help: "Total number of failed stream negotiations",
		},
	)
	redirectTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_negotiate_redirects_total",
			Help: "Total number of redirect hops followed",
		},
	)
	resolveHitTotals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "httpsource_negotiate_resolve_cache_hits_total",
			Help: "Total number of negotiations started from a cached final URL",
		},
	)
)

func init() {
	prometheus.MustRegister(requestTotals)
	prometheus.MustRegister(failureTotals)
	prometheus.MustRegister(redirectTotals)
	prometheus.MustRegister(resolveHitTotals)
}

func countRequest()    { requestTotals.Inc() }
func countFailure()    { failureTotals.Inc() }
func countRedirect()   { redirectTotals.Inc() }
func countResolveHit() { resolveHitTotals.Inc() }
