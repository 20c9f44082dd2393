// Package placas exposes the Mercosul plate validator over HTTP.
package placas

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/plate"
	"github.com/mottu/patio-proxy/web/forward"
)

type Validation struct {
	Placa      string `json:"placa"`
	Normalized string `json:"normalized"`
	Valid      bool   `json:"valid"`
	Message    string `json:"message"`
}

type Server struct {
	telemetry telemetry.Reporter
}

func NewServer(telemetryReporter telemetry.Reporter) *Server {
	return &Server{telemetry: telemetryReporter}
}

// Validar serves GET /api/placas/:placa/validar. An invalid plate is a
// regular answer, so the status is always 200.
func (s *Server) Validar(w http.ResponseWriter, r *http.Request) {
	placa := httprouter.ParamsFromContext(r.Context()).ByName("placa")
	normalized, valid := plate.Normalize(placa)
	s.telemetry.AddPlateValidation(valid)
	w.Header().Set("Cache-Control", "no-store")
	forward.WriteJson(w, http.StatusOK, Validation{
		Placa:      placa,
		Normalized: normalized,
		Valid:      valid,
		Message:    plate.ValidateWithMessage(placa),
	})
}
