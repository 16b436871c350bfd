package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
	"github.com/senthilkumarv/aq-telemetry/internal/wire"
)

// DashboardOptions carries the request limits shared by the dashboard and
// stream handlers
type DashboardOptions struct {
	DefaultHours   int
	MaxHours       int
	RequestTimeout time.Duration
}

// DashboardHandler handles GET /dashboards/{id} requests
type DashboardHandler struct {
	assembler *services.Assembler
	aquariums *services.AquariumService
	catalog   *catalog.Catalog
	opts      DashboardOptions
	logger    *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler instance
func NewDashboardHandler(assembler *services.Assembler, aquariums *services.AquariumService, cat *catalog.Catalog, opts DashboardOptions, logger *slog.Logger) *DashboardHandler {
	if opts.DefaultHours < 1 {
		opts.DefaultHours = services.DefaultHours
	}
	return &DashboardHandler{
		assembler: assembler,
		aquariums: aquariums,
		catalog:   cat,
		opts:      opts,
		logger:    logger,
	}
}

// resolve validates the aquarium id and reads the hours parameter. It
// writes the error reply itself and returns false when the request cannot
// proceed.
func (h *DashboardHandler) resolve(w http.ResponseWriter, r *http.Request) (services.RequestContext, bool) {
	id := mux.Vars(r)["id"]
	known, err := h.aquariums.Known(r.Context(), id)
	if err != nil {
		if r.Context().Err() != nil {
			return services.RequestContext{}, false
		}
		// an unresolved list still yields a page; its widgets come back empty
		h.logger.Warn("aquarium_lookup_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("aquarium", id),
			slog.Bool("assembling", known),
			slog.String("error", err.Error()))
	}
	if !known {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown aquarium %q", id))
		return services.RequestContext{}, false
	}

	return services.RequestContext{
		AquariumID: id,
		Hours:      services.ParseHours(r.URL.Query().Get("hours"), h.opts.DefaultHours, h.opts.MaxHours),
	}, true
}

// requestContext bounds the whole assembly by the configured request timeout
func (h *DashboardHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.opts.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

// Handle assembles and returns the full dashboard page
func (h *DashboardHandler) Handle(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.resolve(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	page, err := h.assembler.Assemble(ctx, h.catalog, rc)
	if err != nil {
		switch {
		case r.Context().Err() != nil:
			// client went away; nobody is reading a reply
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "dashboard assembly timed out")
		default:
			writeError(w, http.StatusInternalServerError, "dashboard assembly failed")
		}
		return
	}

	err = writePayload(w, r, page, func(ctx context.Context) ([]byte, error) {
		return wire.EncodePage(ctx, page)
	})
	if err != nil {
		h.logger.Error("dashboard_response_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("aquarium", rc.AquariumID),
			slog.String("error", err.Error()))
	}
}
