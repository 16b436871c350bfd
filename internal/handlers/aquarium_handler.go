package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/models"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
	"github.com/senthilkumarv/aq-telemetry/internal/wire"
)

// AquariumHandler handles GET /aquariums requests
type AquariumHandler struct {
	aquariums *services.AquariumService
	logger    *slog.Logger
}

// NewAquariumHandler creates a new AquariumHandler instance
func NewAquariumHandler(aquariums *services.AquariumService, logger *slog.Logger) *AquariumHandler {
	return &AquariumHandler{aquariums: aquariums, logger: logger}
}

// Handle lists the known aquariums. A data source failure yields an empty
// list rather than an error.
func (h *AquariumHandler) Handle(w http.ResponseWriter, r *http.Request) {
	list, err := h.aquariums.List(r.Context())
	if err != nil {
		h.logger.Warn("aquarium_list_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("error", err.Error()))
		list = []models.Aquarium{}
	}

	err = writePayload(w, r, list, func(ctx context.Context) ([]byte, error) {
		return wire.EncodeAquariums(ctx, list)
	})
	if err != nil {
		h.logger.Error("aquarium_response_failed", slog.String("error", err.Error()))
	}
}
