package notificacoes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/status"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/internal/testutils"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/web/forward"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reads      atomic.Int32
	mutations  atomic.Int32
	failMutate bool
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		f.reads.Add(1)
		switch r.URL.Path {
		case "/api/notificacoes":
			_, _ = w.Write([]byte(`{"content":[{"id":1,"lida":false}],"totalElements":1}`))
		case "/api/notificacoes/estatisticas":
			_, _ = w.Write([]byte(`{"total":1,"naoLidas":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	f.mutations.Add(1)
	if f.failMutate {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`already read`))
		return
	}
	_, _ = w.Write([]byte(`{"message":"ok"}`))
}

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

func TestNotificacoes_List(t *testing.T) {
	var query atomic.Value
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))

	rec := httptest.NewRecorder()
	srv.List(rec, httptest.NewRequest(http.MethodGet, "/api/notificacoes?lida=false&prioridade=ALTA&page=0&size=20&sort=dataHoraCriacao&direction=desc", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lida=false&prioridade=ALTA&page=0&size=20&sort=dataHoraCriacao&direction=desc", query.Load())
	assert.Equal(t, "max-age=10", rec.Header().Get("Cache-Control"))
}

func TestNotificacoes_MutationsInvalidate(t *testing.T) {
	fake := &fakeBackend{}
	srv := newTestServer(t, fake)

	read := func() {
		rec := httptest.NewRecorder()
		srv.List(rec, httptest.NewRequest(http.MethodGet, "/api/notificacoes", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		rec = httptest.NewRecorder()
		srv.Estatisticas(rec, httptest.NewRequest(http.MethodGet, "/api/notificacoes/estatisticas", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		params  []string
	}{
		{"marcar lida", srv.MarcarLida, http.MethodPut, []string{"id", "15"}},
		{"marcar todas lidas", srv.MarcarTodasLidas, http.MethodPut, nil},
		{"gerar dinamicas", srv.GerarDinamicas, http.MethodPost, nil},
		{"limpar", srv.Limpar, http.MethodDelete, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			read()
			reads := fake.reads.Load()
			read()
			assert.Equal(t, reads, fake.reads.Load(), "second read is served from cache")

			req := httptest.NewRequest(test.method, "/api/notificacoes/x", http.NoBody)
			testutils.AddParams(req, test.params...)
			rec := httptest.NewRecorder()
			test.handler(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())

			// entries fetched within the invalidation millisecond count as stale
			time.Sleep(2 * time.Millisecond)
			read()
			assert.Equal(t, reads+2, fake.reads.Load(), "reads after a mutation go to the backend")
		})
	}
	assert.Equal(t, int32(4), fake.mutations.Load())
}

func TestNotificacoes_MarcarLida_Body(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/notificacoes/7/marcar-lida", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"usuario":"ana"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPut, "/api/notificacoes/7/marcar-lida", strings.NewReader(`{"usuario":"ana"}`))
	req.Header.Set("Content-Type", "application/json")
	testutils.AddParams(req, "id", "7")
	rec := httptest.NewRecorder()
	srv.MarcarLida(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNotificacoes_MarcarLida_InvalidId(t *testing.T) {
	fake := &fakeBackend{}
	srv := newTestServer(t, fake)
	req := httptest.NewRequest(http.MethodPut, "/api/notificacoes/abc/marcar-lida", http.NoBody)
	testutils.AddParams(req, "id", "abc")
	rec := httptest.NewRecorder()
	srv.MarcarLida(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"id must be a valid number"}`, rec.Body.String())
	assert.Equal(t, int32(0), fake.mutations.Load())
}

func TestNotificacoes_FailedMutationKeepsCache(t *testing.T) {
	fake := &fakeBackend{failMutate: true}
	srv := newTestServer(t, fake)

	srv.List(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/notificacoes", http.NoBody))
	rec := httptest.NewRecorder()
	srv.MarcarTodasLidas(rec, httptest.NewRequest(http.MethodPut, "/api/notificacoes/marcar-todas-lidas", http.NoBody))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"failed to mark notifications as read","status":409,"details":"already read"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.List(rec, httptest.NewRequest(http.MethodGet, "/api/notificacoes", http.NoBody))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, int32(1), fake.reads.Load())
}
