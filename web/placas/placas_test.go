package placas

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/internal/testutils"
	"github.com/stretchr/testify/assert"
)

func TestValidar(t *testing.T) {
	srv := NewServer(telemetry.NewEmptyReporter())
	tests := []struct {
		placa string
		body  string
	}{
		{"ABC1D23", `{"placa":"ABC1D23","normalized":"ABC1D23","valid":true,"message":""}`},
		{"abc1d23", `{"placa":"abc1d23","normalized":"ABC1D23","valid":true,"message":""}`},
		{" abc1d23 ", `{"placa":" abc1d23 ","normalized":"ABC1D23","valid":true,"message":""}`},
		{"ABC1234", `{"placa":"ABC1234","normalized":"","valid":false,"message":"invalid plate, expected the Mercosul layout ABC1D23"}`},
		{"ABC1D234", `{"placa":"ABC1D234","normalized":"","valid":false,"message":"invalid plate, expected the Mercosul layout ABC1D23"}`},
		{"", `{"placa":"","normalized":"","valid":false,"message":"plate is required"}`},
	}
	for _, test := range tests {
		t.Run(test.placa, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/placas/x/validar", http.NoBody)
			testutils.AddParams(req, "placa", test.placa)
			rec := httptest.NewRecorder()
			srv.Validar(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.JSONEq(t, test.body, rec.Body.String())
		})
	}
}
