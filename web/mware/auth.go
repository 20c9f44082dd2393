package mware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/web/forward"
)

func BasicAuth(user string, pass string, logger log.Logger, next http.HandlerFunc) http.HandlerFunc {
	expUserHash := sha256.Sum256([]byte(user))
	expPassHash := sha256.Sum256([]byte(pass))
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			logger.Debugf("basic auth is configured but it's missing from the request")
			w.Header().Set("WWW-Authenticate", `Basic realm="patio-proxy"`)
			writeUnauthorized(w)
			return
		}
		// Hash to prevent timing attack
		userHash := sha256.Sum256([]byte(username))
		passHash := sha256.Sum256([]byte(password))
		userMatch := subtle.ConstantTimeCompare(userHash[:], expUserHash[:]) == 1
		passMatch := subtle.ConstantTimeCompare(passHash[:], expPassHash[:]) == 1
		if !userMatch || !passMatch {
			logger.Debugf("basic auth credential validation failed")
			writeUnauthorized(w)
			return
		}
		next(w, r)
	}
}

func HeaderAuth(authHeaders map[string]string, logger log.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for k, v := range authHeaders {
			h := r.Header.Get(k)
			if subtle.ConstantTimeCompare([]byte(h), []byte(v)) != 1 {
				logger.Debugf("auth header (%s) validation failed", k)
				writeUnauthorized(w)
				return
			}
		}
		next(w, r)
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	forward.WriteError(w, http.StatusUnauthorized, forward.ErrorBody{Error: "unauthorized"})
}
