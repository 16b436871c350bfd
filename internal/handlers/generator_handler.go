package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
)

// GeneratorHandler handles POST /api/generate-dummy requests
type GeneratorHandler struct {
	generator *services.Generator
	defaults  services.GenerateOptions
	logger    *slog.Logger
}

// NewGeneratorHandler creates a new GeneratorHandler instance
func NewGeneratorHandler(generator *services.Generator, defaults services.GenerateOptions, logger *slog.Logger) *GeneratorHandler {
	return &GeneratorHandler{
		generator: generator,
		defaults:  defaults,
		logger:    logger,
	}
}

// GenerateRequest optionally overrides the configured hosts and window
type GenerateRequest struct {
	Hosts []string `json:"hosts"`
	Hours int      `json:"hours"`
}

// GenerateResponse represents the response from generate-dummy endpoint
type GenerateResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Count       int    `json:"count,omitempty"`
	SeriesCount int    `json:"series_count,omitempty"`
}

// Handle handles the generate-dummy request
func (h *GeneratorHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}

	opts := h.defaults
	if len(req.Hosts) > 0 {
		opts.Hosts = req.Hosts
	}
	if req.Hours > 0 {
		opts.Hours = req.Hours
	}
	if len(opts.Hosts) == 0 {
		writeJSON(w, http.StatusBadRequest, GenerateResponse{Success: false, Message: "no hosts configured or requested"})
		return
	}

	count, seriesCount, err := h.generator.GenerateDummyData(r.Context(), opts)
	if err != nil {
		h.logger.Error("generate_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, GenerateResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:     true,
		Message:     "Dummy data generated successfully",
		Count:       count,
		SeriesCount: seriesCount,
	})
}
