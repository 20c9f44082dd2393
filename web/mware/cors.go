package mware

import (
	"net/http"
	"slices"
	"strings"
)

var defaultAllowedHeaders = []string{
	"Authorization",
	"Cache-Control",
	"Content-Type",
	"Content-Length",
	"Accept-Encoding",
}

var defaultExposedHeaders = []string{
	"Content-Length",
	"Date",
	"Content-Encoding",
	"X-Cache",
	"Retry-After",
}

var defaultAllowedOrigin = "*"

func CORS(allowedMethods []string, allowedOrigins []string, extraExposedHeaders []string, extraAllowedHeaders []string, next http.HandlerFunc) http.HandlerFunc {
	exposed := strings.Join(append(slices.Clone(defaultExposedHeaders), extraExposedHeaders...), ",")
	allowed := strings.Join(append(slices.Clone(defaultAllowedHeaders), extraAllowedHeaders...), ",")
	methods := strings.Join(allowedMethods, ",")
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Set("Access-Control-Allow-Origin", determineOrigin(origin, allowedOrigins))
		w.Header().Set("Access-Control-Expose-Headers", exposed)
		if len(allowedOrigins) > 0 {
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Credentials", "false")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.Header().Set("Access-Control-Allow-Headers", allowed)
			if methods != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
			}
		}
		next(w, r)
	}
}

func determineOrigin(requestOrigin string, allowedOrigins []string) string {
	if len(allowedOrigins) > 0 {
		if slices.Contains(allowedOrigins, requestOrigin) {
			return requestOrigin
		}
		return allowedOrigins[0]
	}
	if requestOrigin != "" {
		return requestOrigin
	}
	return defaultAllowedOrigin
}
