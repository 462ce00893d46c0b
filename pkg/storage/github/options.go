package github

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Option is a functor to pass optional parameters to the github store
type Option func(*gh)

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(g *gh) {
		if logger != nil {
			g.l = logger
		}
	}
}

// BaseURL of the API, e.g. https://github.example.com/api/v3 for enterprise installs
func BaseURL(u string) Option {
	return func(g *gh) {
		if u != "" {
			g.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// Token sets the bearer credential used on every call
func Token(token string) Option {
	return func(g *gh) {
		g.token = token
	}
}

// HTTPClient sets the underlying client. Its transport is wrapped to carry the bearer token.
func HTTPClient(c *http.Client) Option {
	return func(g *gh) {
		if c != nil {
			g.client = c
		}
	}
}

// UserAgent overrides the User-Agent header
func UserAgent(ua string) Option {
	return func(g *gh) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}
