package handlers

import (
	"net/http"

	"github.com/senthilkumarv/aq-telemetry/internal/catalog"
)

// ConfigHandler handles GET /api/config to expose dashboard defaults for frontends
type ConfigHandler struct {
	resp ConfigResponse
}

// HoursResponse is the JSON shape of the accepted time window
type HoursResponse struct {
	Default int `json:"default"`
	Max     int `json:"max"`
}

// ConfigResponse is the JSON response for GET /api/config
type ConfigResponse struct {
	Hours     HoursResponse `json:"hours"`
	MaxPoints int           `json:"max_points"`
	Tiles     int           `json:"tiles"`
	Charts    int           `json:"charts"`
	Series    int           `json:"series"`
}

// NewConfigHandler creates a new ConfigHandler
func NewConfigHandler(opts DashboardOptions, maxPoints int, cat *catalog.Catalog) *ConfigHandler {
	resp := ConfigResponse{
		Hours:     HoursResponse{Default: opts.DefaultHours, Max: opts.MaxHours},
		MaxPoints: maxPoints,
	}
	if cat != nil {
		resp.Tiles = len(cat.Tiles)
		resp.Charts = len(cat.Charts)
		resp.Series = cat.SeriesCount()
	}
	return &ConfigHandler{resp: resp}
}

// Handle responds with the dashboard defaults
func (h *ConfigHandler) Handle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resp)
}
