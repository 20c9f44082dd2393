// Package dashboard proxies the occupancy dashboard endpoints of the backend.
package dashboard

import (
	"net/http"
	"net/url"
	"time"

	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/web/forward"
)

const dateLayout = "2006-01-02"

type Server struct {
	forwarder *forward.Forwarder
}

func NewServer(forwarder *forward.Forwarder) *Server {
	return &Server{forwarder: forwarder}
}

func (s *Server) Resumo(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "dashboard.resumo",
		Path:     "/dashboard/resumo",
		Category: cache.Dashboard,
		Message:  "failed to fetch dashboard summary",
	})
}

func (s *Server) TotalVeiculos(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "dashboard.total-veiculos",
		Path:     "/dashboard/total-veiculos",
		Category: cache.Dashboard,
		Message:  "failed to fetch vehicle total",
	})
}

func (s *Server) TotalClientes(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "dashboard.total-clientes",
		Path:     "/dashboard/total-clientes",
		Category: cache.Dashboard,
		Message:  "failed to fetch customer total",
	})
}

// OcupacaoPorDia forwards the daily occupancy series of the [ini, fim] range.
// Both bounds are ISO dates and only they are passed on.
func (s *Server) OcupacaoPorDia(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ini, fim := query.Get("ini"), query.Get("fim")
	if err := validateRange(ini, fim); err != nil {
		forward.WriteErr(w, err)
		return
	}
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "dashboard.ocupacao-por-dia",
		Path:     "/dashboard/ocupacao-por-dia",
		Query:    url.Values{"ini": {ini}, "fim": {fim}},
		Category: cache.Dashboard,
		Message:  "failed to fetch daily occupancy",
	})
}

func validateRange(ini string, fim string) error {
	if ini == "" || fim == "" {
		return forward.Validation("ini and fim are required")
	}
	from, err := time.Parse(dateLayout, ini)
	if err != nil {
		return forward.Validation("ini must be a date in the YYYY-MM-DD format")
	}
	to, err := time.Parse(dateLayout, fim)
	if err != nil {
		return forward.Validation("fim must be a date in the YYYY-MM-DD format")
	}
	if from.After(to) {
		return forward.Validation("ini must not be after fim")
	}
	return nil
}
