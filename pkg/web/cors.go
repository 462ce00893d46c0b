package web

import (
	"net/http"
	"strings"
)

const wildcard = "*"

var (
	allowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ",")
	allowedHeaders = "Content-Type, Authorization"
)

// allowedOrigin picks the origin granted to a request.
//
// A listed origin (or any origin when the list has "*") is echoed back.
// Otherwise the first configured origin is returned, so the browser rejects the response.
func allowedOrigin(origins []string, origin string) string {
	for _, o := range origins {
		if o == wildcard || (origin != "" && o == origin) {
			if origin == "" {
				return wildcard
			}
			return origin
		}
	}
	if len(origins) > 0 {
		return origins[0]
	}
	return wildcard
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, origins []string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowedOrigin(origins, r.Header.Get("Origin")))
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", allowedMethods)
	h.Set("Access-Control-Allow-Headers", allowedHeaders)
}
