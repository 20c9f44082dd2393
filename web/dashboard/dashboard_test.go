package dashboard

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/status"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/web/forward"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.Handler) *Server {
	backendSrv := httptest.NewServer(handler)
	t.Cleanup(backendSrv.Close)

	conf := config.Config{Backend: config.BackendConfig{Origin: backendSrv.URL, ApiPath: "/api", Timeout: 5}, Cache: config.CacheConfig{Enabled: true}}
	reporter := status.NewReporter(&conf)
	store, err := cache.SetupStore(t.Context(), &conf.Cache, telemetry.NewEmptyReporter(), log.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(store.Shutdown)
	tagged := cache.NewTagged(store, &conf.Cache, reporter, telemetry.NewEmptyReporter(), log.NewNullLogger())
	client := backend.NewClient(&conf.Backend, reporter, telemetry.NewEmptyReporter(), log.NewNullLogger())
	return NewServer(forward.NewForwarder(client, tagged, telemetry.NewEmptyReporter(), log.NewNullLogger()))
}

func TestDashboard_Totals(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/dashboard/resumo":
			_, _ = w.Write([]byte(`{"totalBoxes":100,"boxesOcupados":40,"boxesLivres":60}`))
		case "/api/dashboard/total-veiculos":
			_, _ = w.Write([]byte(`{"total":42}`))
		case "/api/dashboard/total-clientes":
			_, _ = w.Write([]byte(`{"total":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		path    string
		body    string
	}{
		{"resumo", srv.Resumo, "/api/dashboard/resumo", `{"totalBoxes":100,"boxesOcupados":40,"boxesLivres":60}`},
		{"total veiculos", srv.TotalVeiculos, "/api/dashboard/total-veiculos", `{"total":42}`},
		{"total clientes", srv.TotalClientes, "/api/dashboard/total-clientes", `{"total":7}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			test.handler(rec, httptest.NewRequest(http.MethodGet, test.path, http.NoBody))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, test.body, rec.Body.String())
			assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
			assert.Equal(t, "max-age=30", rec.Header().Get("Cache-Control"))

			rec = httptest.NewRecorder()
			test.handler(rec, httptest.NewRequest(http.MethodGet, test.path, http.NoBody))
			assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
			assert.Equal(t, test.body, rec.Body.String())
		})
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDashboard_UpstreamError(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`maintenance`))
	}))
	rec := httptest.NewRecorder()
	srv.Resumo(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/resumo", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"failed to fetch dashboard summary","status":503,"details":"maintenance"}`, rec.Body.String())
}

func TestDashboard_OcupacaoPorDia(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dashboard/ocupacao-por-dia", r.URL.Path)
		assert.Equal(t, "fim=2024-01-31&ini=2024-01-01", r.URL.RawQuery)
		_, _ = w.Write([]byte(`[{"dia":"2024-01-01","ocupados":3}]`))
	}))

	rec := httptest.NewRecorder()
	srv.OcupacaoPorDia(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/ocupacao-por-dia?ini=2024-01-01&fim=2024-01-31&extra=1", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"dia":"2024-01-01","ocupados":3}]`, rec.Body.String())
}

func TestDashboard_OcupacaoPorDia_Validation(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	tests := []struct {
		query string
		err   string
	}{
		{"", "ini and fim are required"},
		{"ini=2024-01-01", "ini and fim are required"},
		{"fim=2024-01-01", "ini and fim are required"},
		{"ini=01/01/2024&fim=2024-01-31", "ini must be a date in the YYYY-MM-DD format"},
		{"ini=2024-01-01&fim=2024-02-30", "fim must be a date in the YYYY-MM-DD format"},
		{"ini=2024-02-01&fim=2024-01-31", "ini must not be after fim"},
	}
	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.OcupacaoPorDia(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/ocupacao-por-dia?"+test.query, http.NoBody))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+test.err+`"}`, rec.Body.String())
		})
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestValidateRange_SameDay(t *testing.T) {
	assert.NoError(t, validateRange("2024-01-01", "2024-01-01"))
}
