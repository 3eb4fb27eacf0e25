package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/auth"
	authConfig "github.com/iurnickita/topuprouter/internal/auth/config"
	"github.com/iurnickita/topuprouter/internal/g2gclient"
	"github.com/iurnickita/topuprouter/internal/handler/config"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/router"
	"github.com/iurnickita/topuprouter/internal/tracker"
)

type fakeRouter struct {
	mu     sync.Mutex
	events []model.DeliveryEvent
}

func (f *fakeRouter) Route(ctx context.Context, event model.DeliveryEvent) router.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return router.Outcome{State: router.StateFailed, Reason: "whatever happened inside"}
}

type fakeTrackers struct {
	callbacks []lapakclient.OrderStatus
}

func (f *fakeTrackers) HandleLapakCallback(_ context.Context, status lapakclient.OrderStatus) error {
	f.callbacks = append(f.callbacks, status)
	return nil
}

func (f *fakeTrackers) Live() []tracker.Task {
	return []tracker.Task{{Provider: model.ProviderLapak, Key: "T1"}}
}

func (f *fakeTrackers) Reconcile(_ context.Context) (int, error) {
	return 2, nil
}

const apiDeliveryBody = `{
  "id": "evt-1",
  "event_happened_at": 1700000000,
  "event_type": "order.api_delivery",
  "payload": {
    "order_id": "1700000000001",
    "buyer_id": "B-1",
    "seller_id": "S-1",
    "offer_id": "G1700000000001ON",
    "purchased_qty": 2,
    "delivered_qty": 0,
    "delivery_summary": {
      "delivery_id": "D-1",
      "delivery_method_code": "direct_top_up",
      "delivery_mode": "api",
      "requested_qty": 2,
      "delivery_method_list": [
        {"attribute_group_id": "a488b0e9", "attribute_group_name": "User ID", "attribute_id": "x1",
         "attribute_key": "user_id", "attribute_value": "", "value": "12345"}
      ]
    }
  }
}`

type fixture struct {
	handler  http.Handler
	router   *fakeRouter
	trackers *fakeTrackers
	sink     audit.Sink
	auth     auth.Auth
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	f := &fixture{
		router:   &fakeRouter{},
		trackers: &fakeTrackers{},
		sink:     audit.NewMemorySink(),
		auth:     auth.NewAuth(authConfig.Config{SecretKey: "operator-secret"}),
	}
	f.handler = NewHandler(cfg, f.router, f.trackers, f.sink, f.auth, zap.NewNop())
	return f
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func (f *fixture) adminRequest(t *testing.T, method string, target string) *http.Request {
	token, err := f.auth.BuildToken("alice")
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestWebhookRoutesAPIDelivery(t *testing.T) {
	f := newFixture(t, config.Config{})

	w := f.do(httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader(apiDeliveryBody)))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"ok"}`, w.Body.String())

	require.Len(t, f.router.events, 1)
	require.Equal(t, model.DeliveryEvent{
		OrderID:            "1700000000001",
		OfferID:            "G1700000000001ON",
		BuyerID:            "B-1",
		PurchasedQty:       2,
		DeliveryID:         "D-1",
		DeliveryMethodCode: model.DeliveryMethodDirectTopUp,
		Attributes: []model.DeliveryAttribute{{
			GroupID:     "a488b0e9",
			GroupName:   "User ID",
			AttributeID: "x1",
			Value:       "12345",
			Key:         "user_id",
		}},
	}, f.router.events[0])
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t, config.Config{})

	body := `{"id":"evt-2","event_type":"order.completed","payload":{"order_id":"1"}}`
	w := f.do(httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"ok"}`, w.Body.String())
	require.Empty(t, f.router.events)
}

func TestWebhookBadBody(t *testing.T) {
	f := newFixture(t, config.Config{})

	w := f.do(httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, f.router.events)
}

func TestWebhookSignature(t *testing.T) {
	cfg := config.Config{
		WebhookURL:    "https://router.example.com/g2g",
		WebhookSecret: "webhook-secret",
		AccountID:     "ACC-1",
	}
	f := newFixture(t, cfg)

	r := httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader(apiDeliveryBody))
	r.Header.Set("g2g-timestamp", "1700000000000")
	r.Header.Set("g2g-signature", "deadbeef")
	require.Equal(t, http.StatusUnauthorized, f.do(r).Code)

	r = httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader(apiDeliveryBody))
	require.Equal(t, http.StatusUnauthorized, f.do(r).Code)
	require.Empty(t, f.router.events)

	r = httptest.NewRequest(http.MethodPost, "/g2g", strings.NewReader(apiDeliveryBody))
	r.Header.Set("g2g-timestamp", "1700000000000")
	r.Header.Set("g2g-signature", g2gclient.Sign("webhook-secret", cfg.WebhookURL, cfg.AccountID, "1700000000000"))
	require.Equal(t, http.StatusOK, f.do(r).Code)
	require.Len(t, f.router.events, 1)
}

func TestLapakOrderCallback(t *testing.T) {
	f := newFixture(t, config.Config{})

	body := `{"code":"SUCCESS","data":{"status":"SUCCESS","tid":"T1","reference_id":"REF-1",
	  "transactions":[{"id":"1","product_name":"ML 86","note":"","status":"SUCCESS","voucher_code":""}]}}`
	w := f.do(httptest.NewRequest(http.MethodPost, "/lpk/order", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"SUCCESS"}`, w.Body.String())

	require.Len(t, f.trackers.callbacks, 1)
	require.Equal(t, "T1", f.trackers.callbacks[0].TID)
	require.True(t, lapakclient.IsSuccess(f.trackers.callbacks[0]))
}

func TestLapakProductCallback(t *testing.T) {
	f := newFixture(t, config.Config{})

	w := f.do(httptest.NewRequest(http.MethodPost, "/lpk/product", strings.NewReader(`{"code":"ML-86"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"message":"SUCCESS"}`, w.Body.String())

	// старый адрес не обслуживается
	w = f.do(httptest.NewRequest(http.MethodPost, "/lapak/order", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	f := newFixture(t, config.Config{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.Config{})

	w := f.do(f.adminRequest(t, http.MethodGet, "/admin/audit"))
	require.Equal(t, http.StatusNoContent, w.Code)

	entry := audit.Entry{OrderID: "1700000000001", State: "tracked"}
	index, err := f.sink.Register(ctx, &entry)
	require.NoError(t, err)

	w = f.do(f.adminRequest(t, http.MethodGet, "/admin/audit?limit=10"))
	require.Equal(t, http.StatusOK, w.Code)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, index, entries[0].Index)

	w = f.do(f.adminRequest(t, http.MethodGet, "/admin/audit/1"))
	require.Equal(t, http.StatusOK, w.Code)
	var got audit.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "1700000000001", got.OrderID)

	require.Equal(t, http.StatusNotFound, f.do(f.adminRequest(t, http.MethodGet, "/admin/audit/99")).Code)
	require.Equal(t, http.StatusBadRequest, f.do(f.adminRequest(t, http.MethodGet, "/admin/audit/abc")).Code)
	require.Equal(t, http.StatusBadRequest, f.do(f.adminRequest(t, http.MethodGet, "/admin/audit?limit=-1")).Code)
}

func TestAdminTrackers(t *testing.T) {
	f := newFixture(t, config.Config{})

	w := f.do(f.adminRequest(t, http.MethodGet, "/admin/trackers"))
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []tracker.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, "T1", tasks[0].Key)

	w = f.do(f.adminRequest(t, http.MethodPost, "/admin/trackers/reconcile"))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"started":2}`, w.Body.String())
}

func TestHello(t *testing.T) {
	f := newFixture(t, config.Config{})
	w := f.do(httptest.NewRequest(http.MethodGet, "/g2g", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello from G2G webhook", w.Body.String())
}
