package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/senthilkumarv/aq-telemetry/internal/wire"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", wire.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, RequestID: w.Header().Get(RequestIDHeader)})
}

// writePayload replies with v as JSON when the client asks for it and as
// Thrift otherwise, compressed with the best coding the client accepts.
// Encoding failures are answered with a 500 before any body is written.
func writePayload(w http.ResponseWriter, r *http.Request, v any, encodeThrift func(context.Context) ([]byte, error)) error {
	var (
		body        []byte
		contentType string
		err         error
	)
	if wire.WantsJSON(r.Header.Get("Accept")) {
		contentType = wire.ContentTypeJSON
		body, err = json.Marshal(v)
	} else {
		contentType = wire.ContentTypeThrift
		body, err = encodeThrift(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return err
	}

	enc := wire.Negotiate(r.Header.Get("Accept-Encoding"))
	body, err = wire.Compress(enc, body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compress response")
		return err
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Add("Vary", "Accept")
	h.Add("Vary", "Accept-Encoding")
	if enc != wire.Identity {
		h.Set("Content-Encoding", string(enc))
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}
