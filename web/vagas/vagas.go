// Package vagas composes the box and parking data of the backend into the
// map, vagas and plate search views of the pátio dashboard.
package vagas

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/patio"
	"github.com/mottu/patio-proxy/web/forward"
	"golang.org/x/sync/errgroup"
)

const (
	StatusLivre      = "L"
	StatusOcupado    = "O"
	StatusManutencao = "M"
)

const fanOutLimit = 8

type Veiculo struct {
	Placa      string `json:"placa"`
	Modelo     string `json:"modelo"`
	Fabricante string `json:"fabricante"`
}

type MapaVeiculo struct {
	Veiculo
	TagBleId *string `json:"tagBleId"`
}

type MapaBox struct {
	IdBox   int          `json:"idBox"`
	Nome    string       `json:"nome"`
	Status  string       `json:"status"`
	Veiculo *MapaVeiculo `json:"veiculo"`
}

// Mapa is a square grid holding every box of one or all pátios.
type Mapa struct {
	Rows  int           `json:"rows"`
	Cols  int           `json:"cols"`
	Boxes []MapaBox     `json:"boxes"`
	Patio *patio.Record `json:"patio,omitempty"`
}

type Endereco struct {
	Cidade string `json:"cidade"`
	Estado string `json:"estado"`
}

type VagaPatio struct {
	IdPatio   int      `json:"idPatio"`
	NomePatio string   `json:"nomePatio"`
	Endereco  Endereco `json:"endereco"`
}

type Vaga struct {
	IdBox       int       `json:"idBox"`
	Nome        string    `json:"nome"`
	NomeBox     string    `json:"nomeBox"`
	Status      string    `json:"status"`
	DataEntrada any       `json:"dataEntrada"`
	DataSaida   any       `json:"dataSaida"`
	Patio       VagaPatio `json:"patio"`
	Veiculo     *Veiculo  `json:"veiculo"`
}

type Server struct {
	forwarder *forward.Forwarder
	client    *backend.Client
	registry  *patio.Registry
	telemetry telemetry.Reporter
	log       log.Logger
	now       func() time.Time
}

func NewServer(forwarder *forward.Forwarder, registry *patio.Registry, telemetryReporter telemetry.Reporter, log log.Logger) *Server {
	return &Server{
		forwarder: forwarder,
		client:    forwarder.Client(),
		registry:  registry,
		telemetry: telemetryReporter,
		log:       log.WithPrefix("vagas"),
		now:       time.Now,
	}
}

// Mapa serves GET /api/vagas/mapa[?patioId=N].
func (s *Server) Mapa(w http.ResponseWriter, r *http.Request) {
	rawId := r.URL.Query().Get("patioId")
	if rawId == "" {
		s.forwarder.ServeCached(w, r, cache.Mapas, cache.Key("vagas.mapa"), func(ctx context.Context) (any, error) {
			return s.allPatiosMapa(ctx)
		})
		return
	}
	patioId, err := strconv.Atoi(rawId)
	if err != nil {
		forward.WriteErr(w, forward.Validation("patioId must be a valid number"))
		return
	}
	s.forwarder.ServeCached(w, r, cache.Mapas, cache.Key("vagas.mapa", strconv.Itoa(patioId)), func(ctx context.Context) (any, error) {
		return s.patioMapa(ctx, patioId)
	})
}

// Vagas serves GET /api/vagas.
func (s *Server) Vagas(w http.ResponseWriter, r *http.Request) {
	s.forwarder.ServeCached(w, r, cache.Mapas, cache.Key("vagas.list"), func(ctx context.Context) (any, error) {
		return s.loadVagas(ctx)
	})
}

func (s *Server) patioMapa(ctx context.Context, patioId int) (*Mapa, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "vagas.mapa", telemetry.NewKV("patio", strconv.Itoa(patioId)))
	defer span.End()

	data, err := s.fetchPatio(ctx, patioId, true)
	if err != nil {
		return nil, err
	}
	m := newMapa(data.boxes, data.parkings)
	if p, ok := s.registry.Table().ByID(patioId); ok {
		rec := patio.NewRecord(p)
		m.Patio = &rec
	}
	return m, nil
}

func (s *Server) allPatiosMapa(ctx context.Context) (*Mapa, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "vagas.mapa")
	defer span.End()

	parkings, err := s.fetchAllParkings(ctx)
	if err != nil {
		return nil, err
	}
	patios, err := s.fetchPatios(ctx)
	if err != nil {
		return nil, err
	}
	boxesPerPatio := make([][]backendBox, len(patios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, p := range patios {
		g.Go(func() error {
			boxes, err := s.fetchBoxes(gctx, p.IdPatio)
			if err != nil {
				s.log.Warnf("skipping patio %d: %s", p.IdPatio, err)
				return nil
			}
			boxesPerPatio[i] = boxes
			return nil
		})
	}
	_ = g.Wait()

	var all []backendBox
	for _, boxes := range boxesPerPatio {
		all = append(all, boxes...)
	}
	return newMapa(all, parkings), nil
}

// loadVagas fetches every pátio and, in parallel, their boxes and parkings.
// A pátio that fails is logged and left out.
func (s *Server) loadVagas(ctx context.Context) ([]Vaga, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "vagas.compose")
	defer span.End()

	patios, err := s.fetchPatios(ctx)
	if err != nil {
		return nil, err
	}
	perPatio := make([][]Vaga, len(patios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, p := range patios {
		g.Go(func() error {
			data, err := s.fetchPatio(gctx, p.IdPatio, false)
			if err != nil {
				s.log.Warnf("skipping patio %d: %s", p.IdPatio, err)
				return nil
			}
			perPatio[i] = newVagas(p, data)
			return nil
		})
	}
	_ = g.Wait()

	vagas := make([]Vaga, 0)
	for _, v := range perPatio {
		vagas = append(vagas, v...)
	}
	return vagas, nil
}

// newMapa lays the boxes out on the smallest square grid holding all of them.
// A box is occupied exactly when an active parking references it, whatever
// its legacy status says.
func newMapa(boxes []backendBox, parkings map[int]backendParking) *Mapa {
	side := int(math.Ceil(math.Sqrt(float64(len(boxes)))))
	m := &Mapa{Rows: side, Cols: side, Boxes: make([]MapaBox, 0, len(boxes))}
	for _, b := range boxes {
		mb := MapaBox{IdBox: b.IdBox, Nome: b.Nome, Status: StatusLivre}
		if parking, ok := parkings[b.IdBox]; ok {
			v := parking.vehicle()
			mb.Status = StatusOcupado
			mb.Veiculo = &MapaVeiculo{Veiculo: Veiculo{Placa: v.Placa, Modelo: v.Modelo, Fabricante: v.Fabricante}}
			if v.TagBleId != "" {
				mb.Veiculo.TagBleId = &v.TagBleId
			}
		}
		m.Boxes = append(m.Boxes, mb)
	}
	return m
}

func newVagas(p backendPatio, data *patioData) []Vaga {
	vp := VagaPatio{IdPatio: p.IdPatio, NomePatio: p.NomePatio}
	if p.Endereco != nil {
		vp.Endereco = Endereco{Cidade: p.Endereco.Cidade, Estado: p.Endereco.Estado}
	}
	res := make([]Vaga, 0, len(data.boxes))
	for _, b := range data.boxes {
		nome := b.Nome
		if nome == "" {
			nome = "Box " + strconv.Itoa(b.IdBox)
		}
		v := Vaga{
			IdBox:       b.IdBox,
			Nome:        nome,
			NomeBox:     nome,
			Status:      StatusLivre,
			DataEntrada: nullIfEmpty(b.DataEntrada),
			DataSaida:   nullIfEmpty(b.DataSaida),
			Patio:       vp,
		}
		if parking, ok := data.parkings[b.IdBox]; ok {
			pv := parking.vehicle()
			v.Status = StatusOcupado
			v.Veiculo = &Veiculo{Placa: pv.Placa, Modelo: pv.Modelo, Fabricante: pv.Fabricante}
		} else if strings.EqualFold(b.Status, StatusManutencao) {
			v.Status = StatusManutencao
		}
		res = append(res, v)
	}
	return res
}

func nullIfEmpty(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func pathParam(r *http.Request, name string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(name)
}
