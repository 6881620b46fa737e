package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// Handler serves reg on /metrics and a plain liveness endpoint on /healthz.
// A nil registry falls back to the process-wide default gatherer.
func Handler(reg *prom.Registry) http.Handler {
	var gatherer prom.Gatherer = prom.DefaultGatherer
	if reg != nil {
		gatherer = reg
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// NewServer returns an unstarted scrape server listening on addr.
func NewServer(addr string, reg *prom.Registry) *http.Server {
	return &http.Server{Addr: addr, Handler: Handler(reg), ReadHeaderTimeout: readHeaderTimeout}
}
