package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

// Exporter serves the splatrecorder registry at /metrics over its own
// listener, separate from the C8 control surface.
type Exporter struct {
	addr   string
	server *http.Server
}

// NewExporter builds a registry via NewRegistry, adds the Go runtime and
// process collectors, and prepares an HTTP server for it.
func NewExporter(addr string) *Exporter {
	reg := NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return &Exporter{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start serves metrics until the server is shut down. Returns
// http.ErrServerClosed on a graceful Shutdown.
func (e *Exporter) Start() error {
	return e.server.ListenAndServe()
}

// Shutdown gracefully stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
