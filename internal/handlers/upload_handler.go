package handlers

import (
	"log/slog"
	"net/http"

	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
)

// maxUploadBytes bounds the multipart body of a CSV upload
const maxUploadBytes = 50 << 20

// UploadHandler handles POST /api/upload-csv (multipart: file, host, mode)
type UploadHandler struct {
	uploadService *services.UploadService
	logger        *slog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploadService *services.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, logger: logger}
}

// UploadResponse is the JSON response for upload-csv
type UploadResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Count          int    `json:"count,omitempty"`
	ProbesAffected int    `json:"probes_affected,omitempty"`
}

// Handle handles the upload request
func (h *UploadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Message: "invalid multipart body: " + err.Error()})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Message: "missing or invalid file: " + err.Error()})
		return
	}
	defer file.Close()

	mode, err := services.ParseImportMode(r.FormValue("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Message: err.Error()})
		return
	}

	result, err := h.uploadService.ImportCSV(r.Context(), r.FormValue("host"), file, mode)
	if err != nil {
		h.logger.Warn("csv_import_failed",
			slog.String("request_id", logging.RequestID(r.Context())),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:        true,
		Message:        "CSV imported successfully",
		Count:          result.Count,
		ProbesAffected: result.ProbesAffected,
	})
}
