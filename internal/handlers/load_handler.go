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

// LoadHandler handles POST /api/load requests
type LoadHandler struct {
	loader        *services.Loader
	rawDataFolder string
	logger        *slog.Logger
}

// NewLoadHandler creates a new LoadHandler instance
func NewLoadHandler(loader *services.Loader, rawDataFolder string, logger *slog.Logger) *LoadHandler {
	return &LoadHandler{
		loader:        loader,
		rawDataFolder: rawDataFolder,
		logger:        logger,
	}
}

// LoadRequest represents the optional request body for load endpoint
type LoadRequest struct {
	FilePath string `json:"file_path"`
}

// LoadResponse represents the response from load endpoint
type LoadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Count      int    `json:"count,omitempty"`
	FilesCount int    `json:"files_count,omitempty"`
}

// Handle loads a single file when the body names one, otherwise every JSON
// file of the configured folder
func (h *LoadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, LoadResponse{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}

	var (
		count      int
		filesCount = 1
		err        error
	)
	if req.FilePath != "" {
		count, err = h.loader.LoadFromFile(r.Context(), req.FilePath)
	} else {
		count, filesCount, err = h.loader.LoadFromFolder(r.Context(), h.rawDataFolder)
	}
	if err != nil {
		h.logger.Error("load_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, LoadResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		Success:    true,
		Message:    "Data loaded successfully",
		Count:      count,
		FilesCount: filesCount,
	})
}
