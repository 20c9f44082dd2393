package web

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/internal/utils"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/patio"
	"github.com/mottu/patio-proxy/web/dashboard"
	"github.com/mottu/patio-proxy/web/forward"
	"github.com/mottu/patio-proxy/web/mware"
	"github.com/mottu/patio-proxy/web/notificacoes"
	"github.com/mottu/patio-proxy/web/patios"
	"github.com/mottu/patio-proxy/web/placas"
	"github.com/mottu/patio-proxy/web/revalidate"
	"github.com/mottu/patio-proxy/web/vagas"
)

type HttpRouter struct {
	router             *httprouter.Router
	conf               *config.HttpConfig
	rateLimiter        *mware.RateLimiter
	telemetry          telemetry.Reporter
	vagasServer        *vagas.Server
	dashboardServer    *dashboard.Server
	notificacoesServer *notificacoes.Server
	patiosServer       *patios.Server
	placasServer       *placas.Server
	revalidateServer   *revalidate.Server
}

type endpoint struct {
	handler   http.HandlerFunc
	method    string
	path      string
	operation string
}

// NewRouter registers every proxy route. A nil tagged cache disables response
// caching and makes revalidation a no-op.
func NewRouter(forwarder *forward.Forwarder, tagged *cache.Tagged, registry *patio.Registry, telemetryReporter telemetry.Reporter, conf *config.HttpConfig, log log.Logger) *HttpRouter {
	httpLog := log.WithLevel(conf.Log.GetLevel()).WithPrefix("http")

	r := &HttpRouter{
		router: &httprouter.Router{
			RedirectFixedPath:      true,
			RedirectTrailingSlash:  true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			NotFound:               http.HandlerFunc(notFound),
			MethodNotAllowed:       http.HandlerFunc(methodNotAllowed),
		},
		conf:      conf,
		telemetry: telemetryReporter,
	}
	r.router.GlobalOPTIONS = r.preflight()
	if conf.RateLimit.Enabled {
		r.rateLimiter = mware.NewRateLimiter(&conf.RateLimit, httpLog.WithPrefix("ratelimit"))
		httpLog.Reportf("rate limiting enabled, %.1f requests/s with a burst of %d per client", conf.RateLimit.RequestsPerSecond, conf.RateLimit.Burst)
	}
	r.setupVagasRoutes(forwarder, registry, httpLog)
	r.setupDashboardRoutes(forwarder, httpLog)
	r.setupNotificacoesRoutes(forwarder, httpLog)
	r.setupPatioRoutes(registry, httpLog)
	if conf.Revalidate.Enabled {
		r.setupRevalidateRoutes(tagged, httpLog)
	}
	return r
}

func (s *HttpRouter) Handler() http.Handler {
	return s.router
}

func (s *HttpRouter) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func (s *HttpRouter) setupVagasRoutes(forwarder *forward.Forwarder, registry *patio.Registry, l log.Logger) {
	s.vagasServer = vagas.NewServer(forwarder, registry, s.telemetry, l)
	endpoints := []endpoint{
		{path: "/api/vagas", handler: mware.GZip(s.vagasServer.Vagas), method: http.MethodGet, operation: "vagas"},
		{path: "/api/vagas/mapa", handler: mware.GZip(s.vagasServer.Mapa), method: http.MethodGet, operation: "vagas.mapa"},
		{path: "/api/vagas/status/all", handler: mware.GZip(s.vagasServer.StatusAll), method: http.MethodGet, operation: "vagas.status"},
		{path: "/api/vagas/buscar-placa/:placa", handler: mware.GZip(s.vagasServer.BuscarPlaca), method: http.MethodGet, operation: "vagas.buscar-placa"},
	}
	s.register(endpoints, nil, l)
	l.Reportf("vagas enabled, accepting requests on path: /api/vagas/*")
}

func (s *HttpRouter) setupDashboardRoutes(forwarder *forward.Forwarder, l log.Logger) {
	s.dashboardServer = dashboard.NewServer(forwarder)
	endpoints := []endpoint{
		{path: "/api/dashboard/resumo", handler: mware.GZip(s.dashboardServer.Resumo), method: http.MethodGet, operation: "dashboard.resumo"},
		{path: "/api/dashboard/ocupacao-por-dia", handler: mware.GZip(s.dashboardServer.OcupacaoPorDia), method: http.MethodGet, operation: "dashboard.ocupacao-por-dia"},
		{path: "/api/dashboard/total-veiculos", handler: mware.GZip(s.dashboardServer.TotalVeiculos), method: http.MethodGet, operation: "dashboard.total-veiculos"},
		{path: "/api/dashboard/total-clientes", handler: mware.GZip(s.dashboardServer.TotalClientes), method: http.MethodGet, operation: "dashboard.total-clientes"},
	}
	s.register(endpoints, nil, l)
	l.Reportf("dashboard enabled, accepting requests on path: /api/dashboard/*")
}

func (s *HttpRouter) setupNotificacoesRoutes(forwarder *forward.Forwarder, l log.Logger) {
	s.notificacoesServer = notificacoes.NewServer(forwarder)
	endpoints := []endpoint{
		{path: "/api/notificacoes", handler: mware.GZip(s.notificacoesServer.List), method: http.MethodGet, operation: "notificacoes.list"},
		{path: "/api/notificacoes/:id", handler: mware.GZip(bySegment("id", map[string]http.HandlerFunc{
			"estatisticas": s.notificacoesServer.Estatisticas,
		})), method: http.MethodGet, operation: "notificacoes.estatisticas"},
		{path: "/api/notificacoes/:id", handler: bySegment("id", map[string]http.HandlerFunc{
			"marcar-todas-lidas": s.notificacoesServer.MarcarTodasLidas,
		}), method: http.MethodPut, operation: "notificacoes.marcar-todas-lidas"},
		{path: "/api/notificacoes/:id/marcar-lida", handler: s.notificacoesServer.MarcarLida, method: http.MethodPut, operation: "notificacoes.marcar-lida"},
		{path: "/api/notificacoes/gerar-dinamicas", handler: s.notificacoesServer.GerarDinamicas, method: http.MethodPost, operation: "notificacoes.gerar-dinamicas"},
		{path: "/api/notificacoes/limpar", handler: s.notificacoesServer.Limpar, method: http.MethodDelete, operation: "notificacoes.limpar"},
	}
	s.register(endpoints, nil, l)
	l.Reportf("notifications enabled, accepting requests on path: /api/notificacoes/*")
}

func (s *HttpRouter) setupPatioRoutes(registry *patio.Registry, l log.Logger) {
	s.patiosServer = patios.NewServer(registry)
	s.placasServer = placas.NewServer(s.telemetry)
	endpoints := []endpoint{
		{path: "/api/patios/config", handler: mware.GZip(s.patiosServer.Config), method: http.MethodGet, operation: "patios.config"},
		{path: "/api/patios/config/:id", handler: s.patiosServer.ConfigByID, method: http.MethodGet, operation: "patios.config"},
		{path: "/api/patios/resolve", handler: s.patiosServer.Resolve, method: http.MethodGet, operation: "patios.resolve"},
		{path: "/api/placas/:placa/validar", handler: s.placasServer.Validar, method: http.MethodGet, operation: "placas.validar"},
	}
	s.register(endpoints, nil, l)
	l.Reportf("patio config enabled, accepting requests on paths: /api/patios/*, /api/placas/*")
}

func (s *HttpRouter) setupRevalidateRoutes(tagged *cache.Tagged, l log.Logger) {
	conf := &s.conf.Revalidate
	s.revalidateServer = revalidate.NewServer(tagged, l)
	path := "/api/revalidate"
	handler := http.HandlerFunc(s.revalidateServer.ServeHTTP)
	if conf.Auth.User != "" && conf.Auth.Password != "" {
		handler = mware.BasicAuth(conf.Auth.User, conf.Auth.Password, l, handler)
	}
	if len(conf.AuthHeaders) > 0 {
		handler = mware.HeaderAuth(conf.AuthHeaders, l, handler)
	}
	s.register([]endpoint{{path: path, handler: handler, method: http.MethodPost, operation: "revalidate"}}, utils.KeysOfMap(conf.AuthHeaders), l)
	l.Reportf("revalidation enabled, accepting requests on path: %s", path)
}

func (s *HttpRouter) register(endpoints []endpoint, extraAllowedHeaders []string, l log.Logger) {
	for _, endpoint := range endpoints {
		handler := endpoint.handler
		if len(s.conf.Headers) > 0 {
			handler = mware.ExtraHeaders(s.conf.Headers, handler)
		}
		if s.conf.CORS.Enabled {
			handler = mware.CORS([]string{endpoint.method, http.MethodOptions}, s.conf.CORS.AllowedOrigins, utils.KeysOfMap(s.conf.Headers), extraAllowedHeaders, handler)
		}
		if s.rateLimiter != nil {
			handler = s.rateLimiter.Limit(handler)
		}
		handler = s.telemetry.InstrumentHttp(endpoint.operation, endpoint.method, handler)
		if l.Level() == log.Debug {
			handler = mware.DebugLog(l, handler)
		}
		s.router.HandlerFunc(endpoint.method, endpoint.path, handler)
	}
}

// preflight answers OPTIONS requests of every registered path. The router has
// already put the methods of the path into the Allow header.
func (s *HttpRouter) preflight() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := mware.AutoOptions(nil)
		if len(s.conf.Headers) > 0 {
			handler = mware.ExtraHeaders(s.conf.Headers, handler)
		}
		if s.conf.CORS.Enabled {
			methods := strings.Split(w.Header().Get("Allow"), ", ")
			handler = mware.CORS(methods, s.conf.CORS.AllowedOrigins, utils.KeysOfMap(s.conf.Headers), utils.KeysOfMap(s.conf.Revalidate.AuthHeaders), handler)
		}
		handler(w, r)
	})
}

// bySegment dispatches on the value of a path parameter. httprouter does not
// allow a static segment and a parameter at the same position of one method.
func bySegment(param string, handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[httprouter.ParamsFromContext(r.Context()).ByName(param)]; ok {
			handler(w, r)
			return
		}
		notFound(w, r)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	forward.WriteError(w, http.StatusNotFound, forward.ErrorBody{Error: "not found"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	forward.WriteError(w, http.StatusMethodNotAllowed, forward.ErrorBody{Error: "method not allowed"})
}
