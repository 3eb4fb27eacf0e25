package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/auth"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

func (h *handler) auditList(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := h.sink.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) auditGet(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	entry, err := h.sink.Get(r.Context(), index)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handler) trackersLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trackers.Live())
}

type reconcileResponse struct {
	Started int `json:"started"`
}

func (h *handler) trackersReconcile(w http.ResponseWriter, r *http.Request) {
	started, err := h.trackers.Reconcile(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.zaplog.Info("trackers reconciled by operator",
		zap.String("operator", r.Header.Get(auth.HeaderOperatorKey)),
		zap.Int("started", started))
	writeJSON(w, http.StatusOK, reconcileResponse{Started: started})
}
