package vagas

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mottu/patio-proxy/patio"
	"github.com/mottu/patio-proxy/plate"
	"github.com/mottu/patio-proxy/web/forward"
)

type Estatisticas struct {
	Total      int `json:"total"`
	Livres     int `json:"livres"`
	Ocupados   int `json:"ocupados"`
	Manutencao int `json:"manutencao"`
	Patios     int `json:"patios"`
}

type StatusAllResponse struct {
	Success      bool         `json:"success"`
	Data         []Vaga       `json:"data"`
	Estatisticas Estatisticas `json:"estatisticas"`
	Timestamp    string       `json:"timestamp"`
}

// Filter selects vagas. Zero fields match everything.
type Filter struct {
	PatioId int
	Status  string
	Placa   string
	NomeBox string
}

func (f *Filter) Match(v *Vaga) bool {
	if f.PatioId != 0 && v.Patio.IdPatio != f.PatioId {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Placa != "" && (v.Veiculo == nil || !containsFold(v.Veiculo.Placa, f.Placa)) {
		return false
	}
	if f.NomeBox != "" && !containsFold(v.Nome, f.NomeBox) {
		return false
	}
	return true
}

func parseFilter(query url.Values) (Filter, error) {
	f := Filter{
		Status:  query.Get("status"),
		Placa:   query.Get("placa"),
		NomeBox: query.Get("nomeBox"),
	}
	if raw := query.Get("patioId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, forward.Validation("patioId must be a valid number")
		}
		f.PatioId = id
	}
	return f, nil
}

func Statistics(vagas []Vaga) Estatisticas {
	var e Estatisticas
	patios := make(map[int]struct{})
	for _, v := range vagas {
		e.Total++
		switch v.Status {
		case StatusLivre:
			e.Livres++
		case StatusOcupado:
			e.Ocupados++
		case StatusManutencao:
			e.Manutencao++
		}
		patios[v.Patio.IdPatio] = struct{}{}
	}
	e.Patios = len(patios)
	return e
}

// StatusAll serves GET /api/vagas/status/all with the optional patioId,
// status, placa and nomeBox filters.
func (s *Server) StatusAll(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		forward.WriteErr(w, err)
		return
	}
	vagas, err := s.loadVagas(r.Context())
	if err != nil {
		forward.WriteErr(w, err)
		return
	}
	filtered := make([]Vaga, 0, len(vagas))
	for i := range vagas {
		if filter.Match(&vagas[i]) {
			filtered = append(filtered, vagas[i])
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	forward.WriteJson(w, http.StatusOK, StatusAllResponse{
		Success:      true,
		Data:         filtered,
		Estatisticas: Statistics(filtered),
		Timestamp:    s.now().UTC().Format(time.RFC3339Nano),
	})
}

// BuscarPlaca serves GET /api/vagas/buscar-placa/:placa. The backend answer
// is relayed, enriched with the configured pátio of the box the vehicle is
// parked in.
func (s *Server) BuscarPlaca(w http.ResponseWriter, r *http.Request) {
	raw := pathParam(r, "placa")
	if err := plate.Validate(raw); err != nil {
		s.telemetry.AddPlateValidation(false)
		forward.WriteErr(w, forward.Validation(err.Error()))
		return
	}
	s.telemetry.AddPlateValidation(true)
	placa := plate.Clean(raw)

	resp, err := s.client.Get(r.Context(), "/vagas/buscar-placa/"+url.PathEscape(placa), nil)
	if err != nil {
		s.telemetry.AddUpstreamFailure("vagas.buscar-placa", 0)
		forward.WriteErr(w, forward.Transport("failed to search plate", err))
		return
	}
	// a 404 carries the {"found": false} answer and is relayed as is
	if !resp.IsSuccess() && resp.Status != http.StatusNotFound {
		s.telemetry.AddUpstreamFailure("vagas.buscar-placa", resp.Status)
		forward.WriteErr(w, forward.Upstream("failed to search plate", resp))
		return
	}
	result, err := decodeObject(resp.Body)
	if err != nil {
		if resp.Status == http.StatusNotFound {
			forward.WriteErr(w, forward.Upstream("failed to search plate", resp))
			return
		}
		forward.WriteErr(w, forward.Transport("failed to decode plate search", err))
		return
	}
	if boxNome, ok := result["boxNome"].(string); ok {
		if p, found := s.registry.Table().ByBoxName(boxNome); found {
			result["patioConfig"] = patioConfig{ID: p.ID, Name: p.Name, MapURL: patio.MapURL(p)}
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	forward.WriteJson(w, resp.Status, result)
}

type patioConfig struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	MapURL string `json:"mapUrl"`
}

// decodeObject keeps numbers as json.Number so the relayed body is unchanged.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var res map[string]any
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	if res == nil {
		res = map[string]any{}
	}
	return res, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
