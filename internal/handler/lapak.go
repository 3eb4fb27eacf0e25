package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/lapakclient"
)

type lapakOrderCallback struct {
	Code string                  `json:"code"`
	Data lapakclient.OrderStatus `json:"data"`
}

func (h *handler) lapakOrder(w http.ResponseWriter, r *http.Request) {
	var callback lapakOrderCallback
	if err := json.NewDecoder(r.Body).Decode(&callback); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := context.WithoutCancel(r.Context())
	if err := h.trackers.HandleLapakCallback(ctx, callback.Data); err != nil {
		// трекер доведёт заказ опросом
		h.zaplog.Info("lapak order callback",
			zap.String("tid", callback.Data.TID),
			zap.Error(err))
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "SUCCESS"})
}

// Уведомления о каталоге только логируются
func (h *handler) lapakProduct(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "SUCCESS"})
}
