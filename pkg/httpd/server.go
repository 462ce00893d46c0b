// Package httpd runs the http and https listeners of the slides service.
package httpd

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/go-openapi/swag"
	flag "github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// Settings for the listeners of the server
type Settings struct {
	EnabledListeners []string
	CleanupTimeout   time.Duration
	MaxHeaderSize    string

	Host         string
	Port         int
	ListenLimit  int
	KeepAlive    time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	TLSHost           string
	TLSPort           int
	TLSListenLimit    int
	TLSCertificate    string
	TLSCertificateKey string
	TLSCACertificate  string
}

// DefaultSettings picks listener settings from the environment.
//
// HOST, PORT, TLS_HOST, TLS_PORT, TLS_CERTIFICATE, TLS_PRIVATE_KEY and TLS_CA_CERTIFICATE are honored.
func DefaultSettings() (Settings, error) {
	s := Settings{
		EnabledListeners: []string{schemeHTTP},
		CleanupTimeout:   10 * time.Second,
		MaxHeaderSize:    "1MB",
		Host:             stringEnvOverride("localhost", "HOST"),
		KeepAlive:        3 * time.Minute,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     60 * time.Second,
	}
	s.TLSHost = stringEnvOverride(s.Host, "TLS_HOST")
	s.TLSCertificate = stringEnvOverride("", "TLS_CERTIFICATE")
	s.TLSCertificateKey = stringEnvOverride("", "TLS_PRIVATE_KEY")
	s.TLSCACertificate = stringEnvOverride("", "TLS_CA_CERTIFICATE")

	var err error
	if s.Port, err = intEnvOverride(8080, "PORT"); err != nil {
		return s, err
	}
	if s.TLSPort, err = intEnvOverride(0, "TLS_PORT"); err != nil {
		return s, err
	}
	return s, nil
}

// RegisterFlags binds the settings to the specified pflag set
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.StringSliceVar(&s.EnabledListeners, "scheme", s.EnabledListeners, "the listeners to enable: http, https. This can be repeated")
	fs.DurationVar(&s.CleanupTimeout, "cleanup-timeout", s.CleanupTimeout, "grace period for which to wait before shutting down the server")
	fs.StringVar(&s.MaxHeaderSize, "max-header-size", s.MaxHeaderSize, "the maximum size of request headers, e.g. 512KB")

	fs.StringVar(&s.Host, "host", s.Host, "the IP to listen on (env: HOST)")
	fs.IntVar(&s.Port, "port", s.Port, "the port to listen on for insecure connections, 0 picks a random port (env: PORT)")
	fs.IntVar(&s.ListenLimit, "listen-limit", s.ListenLimit, "limit the number of outstanding requests")
	fs.DurationVar(&s.KeepAlive, "keep-alive", s.KeepAlive, "sets the TCP keep-alive timeouts on accepted connections")
	fs.DurationVar(&s.ReadTimeout, "read-timeout", s.ReadTimeout, "maximum duration before timing out read of the request")
	fs.DurationVar(&s.WriteTimeout, "write-timeout", s.WriteTimeout, "maximum duration before timing out write of the response")

	fs.StringVar(&s.TLSHost, "tls-host", s.TLSHost, "the IP to listen on for secure connections (env: TLS_HOST)")
	fs.IntVar(&s.TLSPort, "tls-port", s.TLSPort, "the port to listen on for secure connections (env: TLS_PORT)")
	fs.IntVar(&s.TLSListenLimit, "tls-listen-limit", s.TLSListenLimit, "limit the number of outstanding secure requests")
	fs.StringVar(&s.TLSCertificate, "tls-certificate", s.TLSCertificate, "the certificate to use for secure connections")
	fs.StringVar(&s.TLSCertificateKey, "tls-key", s.TLSCertificateKey, "the private key to use for secure connections")
	fs.StringVar(&s.TLSCACertificate, "tls-ca", s.TLSCACertificate, "the certificate authority file to be used with mutual tls auth")
}

func stringEnvOverride(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func intEnvOverride(def int, keys ...string) (int, error) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return def, fmt.Errorf("%s is not a valid number: %w", k, err)
			}
			return n, nil
		}
	}
	return def, nil
}

// Option for the server
type Option func(*Server)

// HandlesRequestsWith handles the http requests to the server
func HandlesRequestsWith(h http.Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// LogsWith provides a logger to the server
func LogsWith(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnShutdown runs the provided functions once all listeners are stopped
func OnShutdown(handlers ...func()) Option {
	return func(s *Server) {
		s.onShutdown = append(s.onShutdown, handlers...)
	}
}

// Server serves a handler on the enabled listeners
type Server struct {
	Settings

	handler    http.Handler
	logger     *zap.Logger
	onShutdown []func()

	mx           sync.Mutex
	hasListeners bool
	httpServerL  net.Listener
	httpsServerL net.Listener
}

// New creates a server but does not start listening
func New(settings Settings, opts ...Option) *Server {
	s := &Server{
		Settings: settings,
		handler:  http.NotFoundHandler(),
		logger:   zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Server) hasScheme(scheme string) bool {
	schemes := s.EnabledListeners
	if len(schemes) == 0 {
		schemes = []string{schemeHTTP}
	}
	for _, v := range schemes {
		if v == scheme {
			return true
		}
	}
	return false
}

// Listen creates the listeners for the server
func (s *Server) Listen() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.hasListeners {
		return nil
	}

	for _, scheme := range s.EnabledListeners {
		if scheme != schemeHTTP && scheme != schemeHTTPS {
			return fmt.Errorf("unsupported scheme %q", scheme)
		}
	}

	if s.hasScheme(schemeHTTP) {
		listener, err := net.Listen("tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
		if err != nil {
			return err
		}
		h, p, err := swag.SplitHostPort(listener.Addr().String())
		if err != nil {
			return err
		}
		s.Host = h
		s.Port = p
		if s.ListenLimit > 0 {
			listener = netutil.LimitListener(listener, s.ListenLimit)
		}
		s.httpServerL = listener
	}

	if s.hasScheme(schemeHTTPS) {
		if s.TLSHost == "" {
			s.TLSHost = s.Host
		}
		if s.TLSListenLimit == 0 {
			s.TLSListenLimit = s.ListenLimit
		}
		listener, err := net.Listen("tcp", net.JoinHostPort(s.TLSHost, strconv.Itoa(s.TLSPort)))
		if err != nil {
			return err
		}
		h, p, err := swag.SplitHostPort(listener.Addr().String())
		if err != nil {
			return err
		}
		s.TLSHost = h
		s.TLSPort = p
		if s.TLSListenLimit > 0 {
			listener = netutil.LimitListener(listener, s.TLSListenLimit)
		}
		s.httpsServerL = listener
	}

	s.hasListeners = true
	return nil
}

func (s *Server) closeListeners() {
	for _, l := range []net.Listener{s.httpServerL, s.httpsServerL} {
		if l != nil {
			_ = l.Close()
		}
	}
}

// HTTPListener returns the http listener
func (s *Server) HTTPListener() (net.Listener, error) {
	if err := s.Listen(); err != nil {
		return nil, err
	}
	return s.httpServerL, nil
}

// TLSListener returns the https listener
func (s *Server) TLSListener() (net.Listener, error) {
	if err := s.Listen(); err != nil {
		return nil, err
	}
	return s.httpsServerL, nil
}

func (s *Server) newHTTPServer() (*http.Server, error) {
	maxHeader, err := units.FromHumanSize(s.MaxHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("max-header-size: %w", err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		MaxHeaderBytes:    int(maxHeader),
		ReadTimeout:       s.ReadTimeout,
		ReadHeaderTimeout: s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}
	srv.SetKeepAlivesEnabled(s.KeepAlive > 0)
	if s.CleanupTimeout > 0 {
		srv.IdleTimeout = s.CleanupTimeout
	}
	return srv, nil
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.TLSCertificate == "" || s.TLSCertificateKey == "" {
		return nil, errors.New("the flags --tls-certificate and --tls-key are required to serve https")
	}
	cert, err := tls.LoadX509KeyPair(s.TLSCertificate, s.TLSCertificateKey)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		Certificates:     []tls.Certificate{cert},
		CurvePreferences: []tls.CurveID{tls.CurveP256},
		NextProtos:       []string{"h2", "http/1.1"},
		MinVersion:       tls.VersionTLS12,
	}
	if s.TLSCACertificate != "" {
		caCert, err := os.ReadFile(s.TLSCACertificate)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificate found in %s", s.TLSCACertificate)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

type running struct {
	srv *http.Server
	l   net.Listener
	url string
}

func (s *Server) prepare() ([]running, error) {
	var servers []running
	if s.httpServerL != nil {
		srv, err := s.newHTTPServer()
		if err != nil {
			return nil, err
		}
		servers = append(servers, running{srv: srv, l: s.httpServerL, url: "http://" + s.httpServerL.Addr().String()})
	}
	if s.httpsServerL != nil {
		srv, err := s.newHTTPServer()
		if err != nil {
			return nil, err
		}
		if srv.TLSConfig, err = s.tlsConfig(); err != nil {
			return nil, err
		}
		servers = append(servers, running{srv: srv, l: tls.NewListener(s.httpsServerL, srv.TLSConfig), url: "https://" + s.httpsServerL.Addr().String()})
	}
	return servers, nil
}

// Serve the handler until ctx is done, then shut down gracefully.
//
// Serve returns the first listener error, if any.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	servers, err := s.prepare()
	if err != nil {
		s.closeListeners()
		return err
	}

	errc := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, r := range servers {
		wg.Add(1)
		go func(r running) {
			defer wg.Done()
			s.logger.Info("serving", zap.String("url", r.url))
			if err := r.srv.Serve(r.l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("%s: %w", r.url, err)
			}
			s.logger.Info("stopped serving", zap.String("url", r.url))
		}(r)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case serveErr = <-errc:
		s.logger.Error("listener failed, shutting down", zap.Error(serveErr))
	}

	timeout := s.CleanupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	for _, r := range servers {
		shutdownErr = multierr.Append(shutdownErr, r.srv.Shutdown(shutdownCtx))
	}
	wg.Wait()

	if shutdownErr == nil {
		for _, run := range s.onShutdown {
			run()
		}
	} else {
		s.logger.Warn("http server shutdown", zap.Error(shutdownErr))
	}
	return multierr.Append(serveErr, shutdownErr)
}
