package mware

import (
	"net/http"
	"time"

	"github.com/mottu/patio-proxy/internal/utils"
	"github.com/mottu/patio-proxy/log"
)

type requestInterceptor struct {
	http.ResponseWriter

	statusCode     int
	responseLength uint64
}

func (r *requestInterceptor) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *requestInterceptor) Write(data []byte) (int, error) {
	r.responseLength += uint64(len(data))
	return r.ResponseWriter.Write(data)
}

func (r *requestInterceptor) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func DebugLog(log log.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		interceptor := requestInterceptor{w, http.StatusOK, 0}

		log.Debugf("request starting %s %s %s [auth: %s]", r.Proto, r.Method, r.URL, authState(r))
		next(&interceptor, r)
		duration := time.Since(start)
		log.Debugf("request finished %s %s %s [status: %d] [cache: %s] [duration: %dms] [response: %dB]",
			r.Proto, r.Method, r.URL, interceptor.statusCode, cacheState(w), duration.Milliseconds(), interceptor.responseLength)
	}
}

func cacheState(w http.ResponseWriter) string {
	if c := w.Header().Get("X-Cache"); c != "" {
		return c
	}
	return "-"
}

func authState(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return utils.Obfuscate(auth, 4)
	}
	return "-"
}
