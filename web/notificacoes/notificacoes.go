// Package notificacoes proxies the notification endpoints of the backend.
// Reads are cached under the notificacoes category and every successful
// mutation invalidates it.
package notificacoes

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/web/forward"
)

const tag = "notificacoes"

type Server struct {
	forwarder *forward.Forwarder
}

func NewServer(forwarder *forward.Forwarder) *Server {
	return &Server{forwarder: forwarder}
}

// List forwards the lida, prioridade, categoria, tipo and paging filters
// verbatim.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "notificacoes.list",
		Path:     "/notificacoes",
		Category: cache.Notificacoes,
		Message:  "failed to fetch notifications",
	})
}

func (s *Server) Estatisticas(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:     "notificacoes.estatisticas",
		Path:     "/notificacoes/estatisticas",
		Category: cache.Notificacoes,
		Message:  "failed to fetch notification statistics",
	})
}

func (s *Server) MarcarLida(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		forward.WriteErr(w, forward.Validation("id must be a valid number"))
		return
	}
	s.forwarder.Forward(w, r, forward.Route{
		Name:        "notificacoes.marcar-lida",
		Path:        "/notificacoes/" + id + "/marcar-lida",
		Invalidates: []string{tag},
		Message:     "failed to mark notification as read",
	})
}

func (s *Server) MarcarTodasLidas(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:        "notificacoes.marcar-todas-lidas",
		Path:        "/notificacoes/marcar-todas-lidas",
		Invalidates: []string{tag},
		Message:     "failed to mark notifications as read",
	})
}

// GerarDinamicas asks the backend to derive notifications from the current
// pátio state.
func (s *Server) GerarDinamicas(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:        "notificacoes.gerar-dinamicas",
		Path:        "/notificacoes/gerar-dinamicas",
		Invalidates: []string{tag},
		Message:     "failed to generate notifications",
	})
}

func (s *Server) Limpar(w http.ResponseWriter, r *http.Request) {
	s.forwarder.Forward(w, r, forward.Route{
		Name:        "notificacoes.limpar",
		Path:        "/notificacoes/limpar",
		Invalidates: []string{tag},
		Message:     "failed to clear notifications",
	})
}
