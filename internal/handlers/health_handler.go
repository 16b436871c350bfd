package handlers

import (
	"net/http"
	"sync/atomic"
)

// Readiness flips to ready once the data source has answered
type Readiness struct {
	ready atomic.Bool
}

// MarkReady marks the service ready to serve dashboards
func (rd *Readiness) MarkReady() { rd.ready.Store(true) }

// Ready reports the current state
func (rd *Readiness) Ready() bool { return rd.ready.Load() }

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (rd *Readiness) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !rd.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.Write([]byte("ready"))
}
