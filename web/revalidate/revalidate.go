// Package revalidate lets operators mark cached responses stale by tag.
package revalidate

import (
	"net/http"
	"time"

	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/web/forward"
)

type Result struct {
	Revalidated bool   `json:"revalidated"`
	Tag         string `json:"tag"`
	Now         int64  `json:"now"`
}

type Server struct {
	cache *cache.Tagged
	log   log.Logger
	now   func() time.Time
}

// NewServer creates the revalidation endpoint. With a nil cache every request
// is answered with revalidated=false.
func NewServer(cache *cache.Tagged, log log.Logger) *Server {
	return &Server{
		cache: cache,
		log:   log.WithPrefix("revalidate"),
		now:   time.Now,
	}
}

// ServeHTTP handles POST /api/revalidate?tag=<tag>.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		forward.WriteErr(w, forward.Validation("tag is required"))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if s.cache == nil {
		s.log.Debugf("cache is disabled, ignoring revalidation of '%s'", tag)
		forward.WriteJson(w, http.StatusOK, Result{Tag: tag, Now: s.now().UnixMilli()})
		return
	}
	at, err := s.cache.InvalidateTag(r.Context(), tag)
	if err != nil {
		forward.WriteErr(w, forward.Transport("failed to revalidate tag", err))
		return
	}
	forward.WriteJson(w, http.StatusOK, Result{Revalidated: true, Tag: tag, Now: at.UnixMilli()})
}
