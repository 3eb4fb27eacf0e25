package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/g2gclient"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/model"
)

const EventTypeAPIDelivery = "order.api_delivery"

type orderEvent struct {
	ID              string          `json:"id"`
	EventHappenedAt int64           `json:"event_happened_at"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
}

type attributeItem struct {
	AttributeGroupID   string `json:"attribute_group_id"`
	AttributeGroupName string `json:"attribute_group_name"`
	AttributeID        string `json:"attribute_id"`
	AttributeKey       string `json:"attribute_key"`
	AttributeValue     string `json:"attribute_value"`
	Value              string `json:"value"`
}

type apiDeliveryPayload struct {
	OrderID         string `json:"order_id"`
	BuyerID         string `json:"buyer_id"`
	SellerID        string `json:"seller_id"`
	OfferID         string `json:"offer_id"`
	PurchasedQty    int    `json:"purchased_qty"`
	DeliveredQty    int    `json:"delivered_qty"`
	DeliverySummary struct {
		DeliveryID         string          `json:"delivery_id"`
		DeliveryMethodCode string          `json:"delivery_method_code"`
		DeliveryMethodList []attributeItem `json:"delivery_method_list"`
		DeliveryMode       string          `json:"delivery_mode"`
		RequestedQty       int             `json:"requested_qty"`
	} `json:"delivery_summary"`
}

func (p apiDeliveryPayload) event() model.DeliveryEvent {
	event := model.DeliveryEvent{
		OrderID:            p.OrderID,
		OfferID:            p.OfferID,
		BuyerID:            p.BuyerID,
		PurchasedQty:       p.PurchasedQty,
		DeliveryID:         p.DeliverySummary.DeliveryID,
		DeliveryMethodCode: p.DeliverySummary.DeliveryMethodCode,
	}
	for _, item := range p.DeliverySummary.DeliveryMethodList {
		event.Attributes = append(event.Attributes, model.DeliveryAttribute{
			GroupID:        item.AttributeGroupID,
			GroupName:      item.AttributeGroupName,
			AttributeID:    item.AttributeID,
			AttributeValue: item.AttributeValue,
			Value:          item.Value,
			Key:            item.AttributeKey,
		})
	}
	return event
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	if !h.verifySignature(r) {
		h.zaplog.Info("webhook signature mismatch")
		http.Error(w, "Can't verify signature", http.StatusUnauthorized)
		return
	}

	var event orderEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.EventType).Inc()

	switch event.EventType {
	case EventTypeAPIDelivery:
		var payload apiDeliveryPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// размещение заказа не прерывается обрывом соединения маркетплейса
		ctx := context.WithoutCancel(r.Context())
		outcome := h.router.Route(ctx, payload.event())
		h.zaplog.Info("api delivery handled",
			zap.String("event", event.ID),
			zap.String("order", payload.OrderID),
			zap.String("state", string(outcome.State)))
	default:
		h.zaplog.Info("webhook event ignored",
			zap.String("event", event.ID),
			zap.String("type", event.EventType))
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// Подпись: HMAC-SHA256(url вебхука + id аккаунта + timestamp)
func (h *handler) verifySignature(r *http.Request) bool {
	if h.cfg.WebhookSecret == "" {
		return true
	}
	signature := r.Header.Get("g2g-signature")
	timestamp := r.Header.Get("g2g-timestamp")
	if signature == "" || timestamp == "" {
		return false
	}
	expected := g2gclient.Sign(h.cfg.WebhookSecret, h.cfg.WebhookURL, h.cfg.AccountID, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
