package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oneconcern/slides/pkg/httpd"
	"github.com/oneconcern/slides/pkg/metrics"
	"github.com/oneconcern/slides/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	settings, err := httpd.DefaultSettings()
	if err != nil {
		wrapFatalln("reading listener settings", err)
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serves the manifest over HTTP",
		Long: `Serves the manifest over HTTP.

GET returns the items of the manifest, PUT replaces them. Every response carries CORS headers.
/healthz, /readyz and /metrics are served alongside.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, err := a.serveHandler(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			server := httpd.New(settings,
				httpd.LogsWith(a.logger),
				httpd.HandlesRequestsWith(handler),
			)
			return server.Serve(ctx)
		},
	}
	settings.RegisterFlags(serveCmd.Flags())
	return serveCmd
}

// serveHandler assembles the manifest endpoint with the operational endpoints
func (a *app) serveHandler(reg *prometheus.Registry) (http.Handler, error) {
	if err := a.cfg.Validate(); err != nil {
		// requests are answered with an error until the credential is provided
		a.logger.Warn("the service is not configured to reach the repository", zap.Error(err))
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	manifests, err := web.NewHandler(a.cfg, a.logger, m)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", okEndpoint)
	mux.HandleFunc("/readyz", a.readyzEndpoint)
	mux.Handle("/", manifests)
	return mux, nil
}

func okEndpoint(rw http.ResponseWriter, _ *http.Request) {
	_, _ = rw.Write([]byte("OK"))
}

// readyzEndpoint reports unavailable while the repository credential is missing
func (a *app) readyzEndpoint(rw http.ResponseWriter, r *http.Request) {
	if err := a.cfg.Validate(); err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	okEndpoint(rw, r)
}
