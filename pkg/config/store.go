package config

import (
	"net/http"

	"github.com/oneconcern/slides/pkg/storage"
	"github.com/oneconcern/slides/pkg/storage/github"
	"github.com/oneconcern/slides/pkg/storage/localfs"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// NewStore builds the file store for the configured backend, instrumented with logs and traces
func (c *Config) NewStore(logger *zap.Logger, tracer opentracing.Tracer) (storage.FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store storage.FileStore
		err   error
	)
	switch c.Backend {
	case BackendLocalFS:
		store = localfs.New(afero.NewBasePathFs(afero.NewOsFs(), c.LocalDir), localfs.Logger(logger))
	default:
		store, err = github.New(c.Owner, c.Repo,
			github.BaseURL(c.APIURL),
			github.Token(c.Token),
			github.HTTPClient(&http.Client{Timeout: c.RemoteTimeout}),
			github.Logger(logger),
		)
		if err != nil {
			return nil, err
		}
	}
	return storage.Instrument(tracer, logger, store), nil
}
