package web

import (
	"net/http"

	"github.com/oneconcern/slides/pkg/config"
	"github.com/oneconcern/slides/pkg/core"
	"github.com/oneconcern/slides/pkg/metrics"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// NewHandler wires the configured store, the manifest service and the router.
//
// The returned handler may be mounted as is by serverless runtimes. m may be nil.
func NewHandler(cfg *config.Config, logger *zap.Logger, m *metrics.M) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := cfg.NewStore(logger, opentracing.GlobalTracer())
	if err != nil {
		return nil, err
	}
	svc := core.NewManifestService(store,
		core.ManifestPath(cfg.ManifestPath),
		core.Branch(cfg.Branch),
		core.DeleteConcurrency(cfg.DeleteConcurrency),
		core.Logger(logger),
		core.Metrics(m),
	)
	srv, err := NewServer(ServerParams{
		Config:    cfg,
		Manifests: svc,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}
	return InitRouter(srv), nil
}
