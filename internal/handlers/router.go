package handlers

import (
	"log/slog"
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/senthilkumarv/aq-telemetry/internal/metrics"
)

// Routes groups the handlers served by the router. Load, Generate and
// Upload are optional and only registered when the local store is in use.
type Routes struct {
	Dashboard *DashboardHandler
	Stream    *StreamHandler
	Aquariums *AquariumHandler
	Readiness *Readiness
	Config    *ConfigHandler
	Load      *LoadHandler
	Generate  *GeneratorHandler
	Upload    *UploadHandler
}

// NewRouter wires every route and wraps them in the middleware chain:
// panic recovery, CORS, request id and access logging, with Prometheus
// request metrics recorded per route.
func NewRouter(routes Routes, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()

	handle := func(path, name string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, m.WrapHandler(name, h)).Methods(methods...)
	}

	handle("/healthz", "healthz", healthz, http.MethodGet)
	handle("/health", "health", healthz, http.MethodGet)
	if routes.Readiness != nil {
		handle("/readyz", "readyz", routes.Readiness.handle, http.MethodGet)
	}
	handle("/aquariums", "aquariums", routes.Aquariums.Handle, http.MethodGet)
	handle("/dashboards/{id}", "dashboard", routes.Dashboard.Handle, http.MethodGet)
	handle("/dashboards/{id}/stream", "dashboard_stream", routes.Stream.Handle, http.MethodGet)
	if routes.Config != nil {
		handle("/api/config", "config", routes.Config.Handle, http.MethodGet)
	}
	if routes.Load != nil {
		handle("/api/load", "load", routes.Load.Handle, http.MethodPost)
	}
	if routes.Generate != nil {
		handle("/api/generate-dummy", "generate", routes.Generate.Handle, http.MethodPost)
	}
	if routes.Upload != nil {
		handle("/api/upload-csv", "upload_csv", routes.Upload.Handle, http.MethodPost)
	}
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	var h http.Handler = r
	h = withAccessLog(logger, h)
	h = withRequestID(h)
	h = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Accept", "Accept-Encoding", "Content-Type", RequestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{RequestIDHeader}),
	)(h)
	h = gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{logger: logger}),
		gorillahandlers.PrintRecoveryStack(false),
	)(h)
	return h
}
