package patios

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mottu/patio-proxy/internal/testutils"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/patio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	limao     = `{"id":1,"name":"Limão","prefixes":["Li"],"mapParam":"limao","mapUrl":"/mapa-2d?mapa=limao"}`
	guarulhos = `{"id":2,"name":"Guarulhos","prefixes":["B","GRU"],"mapParam":"guarulhos","mapUrl":"/mapa-2d?mapa=guarulhos"}`
)

func newTestServer() *Server {
	return NewServer(patio.NewRegistry(patio.DefaultTable(), log.NewNullLogger()))
}

func TestConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Config(rec, httptest.NewRequest(http.MethodGet, "/api/patios/config", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[`+limao+`,`+guarulhos+`]`, rec.Body.String())
}

func TestConfig_Empty(t *testing.T) {
	table, err := patio.NewTable(nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	NewServer(patio.NewRegistry(table, log.NewNullLogger())).Config(rec, httptest.NewRequest(http.MethodGet, "/api/patios/config", http.NoBody))
	assert.Equal(t, `[]`, rec.Body.String())
}

func TestConfigByID(t *testing.T) {
	srv := newTestServer()
	tests := []struct {
		id     string
		status int
		body   string
	}{
		{"2", http.StatusOK, guarulhos},
		{"1", http.StatusOK, limao},
		{"999", http.StatusNotFound, `{"error":"patio not found"}`},
		{"abc", http.StatusBadRequest, `{"error":"id must be a valid number"}`},
	}
	for _, test := range tests {
		t.Run(test.id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/patios/config/x", http.NoBody)
			testutils.AddParams(req, "id", test.id)
			rec := httptest.NewRecorder()
			srv.ConfigByID(rec, req)
			assert.Equal(t, test.status, rec.Code)
			assert.JSONEq(t, test.body, rec.Body.String())
		})
	}
}

func TestResolve(t *testing.T) {
	srv := newTestServer()
	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"box prefix", "box=B12", http.StatusOK, guarulhos},
		{"box second prefix", "box=GRU-001", http.StatusOK, guarulhos},
		{"box is case sensitive", "box=li001", http.StatusNotFound, `{"error":"patio not found"}`},
		{"box unknown", "box=X99", http.StatusNotFound, `{"error":"patio not found"}`},
		{"free text", "q=guaru", http.StatusOK, guarulhos},
		{"free text accent", "q=LIM%C3%83O", http.StatusOK, limao},
		{"free text unknown", "q=curitiba", http.StatusNotFound, `{"error":"patio not found"}`},
		{"box wins", "box=Li1&q=guarulhos", http.StatusOK, limao},
		{"missing", "", http.StatusBadRequest, `{"error":"box or q is required"}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Resolve(rec, httptest.NewRequest(http.MethodGet, "/api/patios/resolve?"+test.query, http.NoBody))
			assert.Equal(t, test.status, rec.Code)
			assert.JSONEq(t, test.body, rec.Body.String())
		})
	}
}
