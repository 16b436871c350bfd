package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/senthilkumarv/aq-telemetry/internal/logging"
	"github.com/senthilkumarv/aq-telemetry/internal/services"
	"github.com/senthilkumarv/aq-telemetry/internal/wire"
)

// StreamHandler handles GET /dashboards/{id}/stream requests. It shares
// aquarium resolution with DashboardHandler.
type StreamHandler struct {
	*DashboardHandler
}

// NewStreamHandler creates a new StreamHandler instance
func NewStreamHandler(d *DashboardHandler) *StreamHandler {
	return &StreamHandler{DashboardHandler: d}
}

// Handle writes the skeleton, each widget update and the completion event
// as length-prefixed Thrift frames, flushing after every frame. Frames are
// brotli-compressed individually when the client accepts br.
func (h *StreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	rc, ok := h.resolve(w, r)
	if !ok {
		return
	}

	enc := wire.Identity
	if wire.Negotiate(r.Header.Get("Accept-Encoding")) == wire.Brotli {
		enc = wire.Brotli
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	hdr := w.Header()
	hdr.Set("Content-Type", wire.ContentTypeStream)
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := 0
	err := h.assembler.Stream(ctx, h.catalog, rc, func(ev services.StreamEvent) error {
		payload, err := wire.EncodeStreamMessage(ctx, ev)
		if err != nil {
			return err
		}
		if payload, err = wire.Compress(enc, payload); err != nil {
			return err
		}
		if err := wire.WriteFrame(w, payload); err != nil {
			return err
		}
		flusher.Flush()
		frames++
		return nil
	})

	attrs := []any{
		slog.String("request_id", logging.RequestID(r.Context())),
		slog.String("aquarium", rc.AquariumID),
		slog.Int("frames", frames),
	}
	switch {
	case err == nil:
		h.logger.Debug("dashboard_stream_completed", attrs...)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		h.logger.Info("dashboard_stream_aborted", append(attrs, slog.String("error", err.Error()))...)
	default:
		h.logger.Warn("dashboard_stream_failed", append(attrs, slog.String("error", err.Error()))...)
	}
}
