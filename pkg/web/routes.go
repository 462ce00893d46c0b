// Package web exposes the slides manifest over HTTP.
//
// A single endpoint answers on any path:
//
//	GET     returns the manifest items
//	PUT     replaces the manifest, optionally deleting the files of removed slides
//	OPTIONS answers CORS preflight requests
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oneconcern/slides/pkg/config"
	"github.com/oneconcern/slides/pkg/core"
	"github.com/oneconcern/slides/pkg/metrics"
	"github.com/oneconcern/slides/pkg/model"
	"go.uber.org/zap"
)

const defaultMaxBodySize = 1 << 20

// Manifests knows how to read and replace the manifest
type Manifests interface {
	Fetch(context.Context) (*core.FetchResult, error)
	Replace(context.Context, core.ReplaceRequest) (*core.ReplaceResult, error)
}

// ServerParams holds the dependencies of the web server
type ServerParams struct {
	Config    *config.Config
	Manifests Manifests
	Logger    *zap.Logger
	Metrics   *metrics.M
}

// Server handles manifest requests
type Server struct {
	params ServerParams
	l      *zap.Logger
}

// NewServer builds a server
func NewServer(params ServerParams) (*Server, error) {
	if params.Config == nil {
		return nil, errors.New("web: a configuration is required")
	}
	if params.Manifests == nil {
		return nil, errors.New("web: a manifest service is required")
	}
	l := params.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{params: params, l: l}, nil
}

type replacePayload struct {
	Items       json.RawMessage `json:"items"`
	DeleteFiles bool            `json:"delete_files"`
}

/* handlers */

// HandleManifest dispatches a request on its method
func (s *Server) HandleManifest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, r, s.params.Config.CORSOrigins)

		if err := s.params.Config.Validate(); err != nil {
			s.l.Error("refusing request", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			s.handleFetch(w, r)
		case http.MethodPut:
			s.handleReplace(w, r)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	res, err := s.params.Manifests.Fetch(r.Context())
	if err != nil {
		s.failed(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	limit := s.params.Config.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload replacePayload
	if len(body) > 0 {
		if err = json.Unmarshal(body, &payload); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
			return
		}
	}

	items, err := model.DecodeItems(payload.Items)
	if err != nil {
		if errors.Is(err, model.ErrNotAList) {
			s.writeError(w, http.StatusBadRequest, core.ErrInvalidPayload.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.params.Manifests.Replace(r.Context(), core.ReplaceRequest{
		Items:       items,
		DeleteFiles: payload.DeleteFiles,
	})
	if err != nil {
		s.failed(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) failed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrInvalidPayload) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.l.Error("request failed",
		zap.String("method", r.Method),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// logRequests logs every request and feeds the request metrics
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t0 := time.Now()
		defer func() {
			elapsed := time.Since(t0)
			s.l.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
			if m := s.params.Metrics; m != nil {
				m.Requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
				m.RequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// InitRouter builds the http handler of the server
func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(srv.logRequests)
	r.Use(middleware.Recoverer)

	h := srv.HandleManifest()
	r.HandleFunc("/", h)
	r.HandleFunc("/*", h)
	r.MethodNotAllowed(h)

	return r
}
