// Package patios serves the configured pátio table.
package patios

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/mottu/patio-proxy/patio"
	"github.com/mottu/patio-proxy/web/forward"
)

const notFoundMessage = "patio not found"

type Server struct {
	registry *patio.Registry
}

func NewServer(registry *patio.Registry) *Server {
	return &Server{registry: registry}
}

// Config serves GET /api/patios/config.
func (s *Server) Config(w http.ResponseWriter, r *http.Request) {
	all := s.registry.Table().All()
	records := make([]patio.Record, 0, len(all))
	for _, p := range all {
		records = append(records, patio.NewRecord(p))
	}
	forward.WriteJson(w, http.StatusOK, records)
}

// ConfigByID serves GET /api/patios/config/:id.
func (s *Server) ConfigByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(httprouter.ParamsFromContext(r.Context()).ByName("id"))
	if err != nil {
		forward.WriteErr(w, forward.Validation("id must be a valid number"))
		return
	}
	p, ok := s.registry.Table().ByID(id)
	if !ok {
		forward.WriteErr(w, forward.NotFound(notFoundMessage))
		return
	}
	forward.WriteJson(w, http.StatusOK, patio.NewRecord(p))
}

// Resolve serves GET /api/patios/resolve. The box parameter is matched
// against the box name prefixes and takes precedence over the free text q.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	table := s.registry.Table()
	var (
		p  patio.Patio
		ok bool
	)
	switch {
	case query.Get("box") != "":
		p, ok = table.ByBoxName(query.Get("box"))
	case query.Get("q") != "":
		p, ok = table.ByName(query.Get("q"))
	default:
		forward.WriteErr(w, forward.Validation("box or q is required"))
		return
	}
	if !ok {
		forward.WriteErr(w, forward.NotFound(notFoundMessage))
		return
	}
	forward.WriteJson(w, http.StatusOK, patio.NewRecord(p))
}
