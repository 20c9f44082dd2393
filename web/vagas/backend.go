package vagas

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/web/forward"
	"golang.org/x/sync/errgroup"
)

var (
	boxesQuery  = url.Values{"page": {"0"}, "size": {"1000"}, "sort": {"nome,asc"}}
	patiosQuery = url.Values{"page": {"0"}, "size": {"1000"}}
)

type backendBox struct {
	IdBox       int    `json:"idBox"`
	Nome        string `json:"nome"`
	Status      string `json:"status"`
	DataEntrada any    `json:"dataEntrada"`
	DataSaida   any    `json:"dataSaida"`
}

type backendVehicle struct {
	Placa      string `json:"placa"`
	Modelo     string `json:"modelo"`
	Fabricante string `json:"fabricante"`
	TagBleId   string `json:"tagBleId"`
}

// backendParking is an active TB_ESTACIONAMENTO record. Older backend
// versions flatten the vehicle fields and the box id into the record.
type backendParking struct {
	Box *struct {
		IdBox int `json:"idBox"`
	} `json:"box"`
	BoxId   int             `json:"boxId"`
	Veiculo *backendVehicle `json:"veiculo"`
	backendVehicle
}

func (p *backendParking) boxID() int {
	if p.Box != nil && p.Box.IdBox != 0 {
		return p.Box.IdBox
	}
	return p.BoxId
}

func (p *backendParking) vehicle() backendVehicle {
	v := p.backendVehicle
	if p.Veiculo != nil {
		v.Placa = firstNonEmpty(p.Veiculo.Placa, v.Placa)
		v.Modelo = firstNonEmpty(p.Veiculo.Modelo, v.Modelo)
		v.Fabricante = firstNonEmpty(p.Veiculo.Fabricante, v.Fabricante)
		v.TagBleId = firstNonEmpty(p.Veiculo.TagBleId, v.TagBleId)
	}
	return v
}

type backendPatio struct {
	IdPatio   int    `json:"idPatio"`
	NomePatio string `json:"nomePatio"`
	Endereco  *struct {
		Cidade string `json:"cidade"`
		Estado string `json:"estado"`
	} `json:"endereco"`
}

// patioData is the combined state of one pátio: its boxes and the active
// parkings indexed by box id.
type patioData struct {
	boxes    []backendBox
	parkings map[int]backendParking
}

// decodeList accepts both a Spring page ({"content": [...]}) and a bare array.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []T
		err := json.Unmarshal(trimmed, &list)
		return list, err
	}
	var page struct {
		Content []T `json:"content"`
	}
	err := json.Unmarshal(trimmed, &page)
	return page.Content, err
}

func indexParkings(parkings []backendParking) map[int]backendParking {
	res := make(map[int]backendParking, len(parkings))
	for _, p := range parkings {
		if id := p.boxID(); id != 0 {
			res[id] = p
		}
	}
	return res
}

func (s *Server) fetchBoxes(ctx context.Context, patioId int) ([]backendBox, error) {
	resp, err := s.client.Get(ctx, "/patios/"+strconv.Itoa(patioId)+"/status/A/boxes", boxesQuery)
	if err != nil {
		return nil, forward.Transport("failed to fetch boxes", err)
	}
	if !resp.IsSuccess() {
		s.telemetry.AddUpstreamFailure("vagas.boxes", resp.Status)
		return nil, forward.Upstream("failed to fetch boxes", resp)
	}
	boxes, err := decodeList[backendBox](resp.Body)
	if err != nil {
		return nil, forward.Transport("failed to decode boxes", err)
	}
	return boxes, nil
}

// fetchParkings loads the active parkings of one pátio. A 404 means the pátio
// has none. Other failures are errors only when strict is set.
func (s *Server) fetchParkings(ctx context.Context, patioId int, strict bool) (map[int]backendParking, error) {
	resp, err := s.client.Get(ctx, "/estacionamentos/patio/"+strconv.Itoa(patioId)+"/ativos", nil)
	if err != nil {
		if strict {
			return nil, forward.Transport("failed to fetch parkings", err)
		}
		s.log.Warnf("fetching parkings of patio %d failed: %s", patioId, err)
		return map[int]backendParking{}, nil
	}
	return s.decodeParkings(resp, strict)
}

func (s *Server) fetchAllParkings(ctx context.Context) (map[int]backendParking, error) {
	resp, err := s.client.Get(ctx, "/estacionamentos/ativos/todos", nil)
	if err != nil {
		return nil, forward.Transport("failed to fetch parkings", err)
	}
	return s.decodeParkings(resp, false)
}

func (s *Server) decodeParkings(resp *backend.Response, strict bool) (map[int]backendParking, error) {
	if !resp.IsSuccess() {
		if resp.Status == http.StatusNotFound || !strict {
			return map[int]backendParking{}, nil
		}
		s.telemetry.AddUpstreamFailure("vagas.parkings", resp.Status)
		return nil, forward.Upstream("failed to fetch parkings", resp)
	}
	parkings, err := decodeList[backendParking](resp.Body)
	if err != nil {
		return nil, forward.Transport("failed to decode parkings", err)
	}
	return indexParkings(parkings), nil
}

func (s *Server) fetchPatios(ctx context.Context) ([]backendPatio, error) {
	resp, err := s.client.Get(ctx, "/patios", patiosQuery)
	if err != nil {
		return nil, forward.Transport("failed to fetch patios", err)
	}
	if !resp.IsSuccess() {
		s.telemetry.AddUpstreamFailure("vagas.patios", resp.Status)
		return nil, forward.Upstream("failed to fetch patios", resp)
	}
	patios, err := decodeList[backendPatio](resp.Body)
	if err != nil {
		return nil, forward.Transport("failed to decode patios", err)
	}
	return patios, nil
}

// fetchPatio loads boxes and active parkings of one pátio in parallel. The
// first failure cancels the other request.
func (s *Server) fetchPatio(ctx context.Context, patioId int, strict bool) (*patioData, error) {
	var data patioData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.boxes, err = s.fetchBoxes(gctx, patioId)
		return
	})
	g.Go(func() (err error) {
		data.parkings, err = s.fetchParkings(gctx, patioId, strict)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
