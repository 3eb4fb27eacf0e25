package lapakclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/topuprouter/internal/lapakclient/config"
	"github.com/iurnickita/topuprouter/internal/upstream"
	upstreamConfig "github.com/iurnickita/topuprouter/internal/upstream/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{BaseURL: srv.URL, APIKey: "secret"},
		upstreamConfig.Config{Timeout: time.Second, RetryCount: 1, RetryWait: time.Millisecond})
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/order", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ML-86", body["product_code"])
		require.EqualValues(t, 2, body["count"])
		require.Equal(t, "800322607", body["user_id"])
		require.Equal(t, "ref-1", body["reference_id"])

		writeJSON(w, `{"code":"SUCCESS","data":{"tid":"RA1","price":31000}}`)
	})

	created, err := client.CreateOrder(context.Background(), OrderRequest{
		ProductCode: "ML-86",
		Count:       2,
		ReferenceID: "ref-1",
		Fields:      map[string]string{"user_id": "800322607"},
	})
	require.NoError(t, err)
	require.Equal(t, CreatedOrder{TID: "RA1", Price: 31000}, created)
}

func TestCreateOrderRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"INSUFFICIENT_BALANCE","message":"balance too low","data":{}}`)
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{ProductCode: "ML-86", Count: 1})
	require.ErrorIs(t, err, upstream.ErrRejected)
}

func TestCreateOrderBadRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{ProductCode: "ML-86", Count: 1})
	require.True(t, upstream.IsPermanent(err))
}

func TestOrderStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/order_status", r.URL.Path)
		require.Equal(t, "RA1", r.URL.Query().Get("tid"))
		writeJSON(w, `{"code":"SUCCESS","data":{"status":"SUCCESS","tid":"RA1","transactions":[{"id":"1","status":"SUCCESS"}]}}`)
	})

	status, err := client.OrderStatus(context.Background(), "RA1")
	require.NoError(t, err)
	require.True(t, IsSuccess(status))
}

func TestOrderStatusErrorCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"INVALID_TID","message":"tid not found"}`)
	})

	_, err := client.OrderStatus(context.Background(), "RA1")
	require.ErrorIs(t, err, upstream.ErrRejected)
	require.False(t, upstream.IsPermanent(err))
}

func TestOrderStatusMissingData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"SUCCESS"}`)
	})

	_, err := client.OrderStatus(context.Background(), "RA1")
	require.ErrorIs(t, err, upstream.ErrRejected)
}

func TestAllProductsAndFxRate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/all-products":
			require.Equal(t, "id", r.URL.Query().Get("country_code"))
			writeJSON(w, `{"code":"SUCCESS","data":{"products":[{"code":"ML-86","price":15500,"status":"available"}]}}`)
		case "/api/fx-rate.php":
			require.Equal(t, "IDR", r.URL.Query().Get("from_currency"))
			writeJSON(w, `{"code":"SUCCESS","data":{"buy_rate":0.000061,"sell_rate":0.000062}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	products, err := client.AllProducts(context.Background(), "id")
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, 15500.0, products[0].Price)

	rate, err := client.FxRate(context.Background(), "IDR", "USD")
	require.NoError(t, err)
	require.Equal(t, 0.000061, rate.BuyRate)
}

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"all success", OrderStatus{Status: "SUCCESS", Transactions: []Transaction{{Status: "success"}, {Status: "SUCCESS"}}}, true},
		{"pending overall", OrderStatus{Status: "PENDING", Transactions: []Transaction{{Status: "SUCCESS"}}}, false},
		{"pending transaction", OrderStatus{Status: "SUCCESS", Transactions: []Transaction{{Status: "SUCCESS"}, {Status: "PENDING"}}}, false},
		{"refunded", OrderStatus{Status: "REFUNDED"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsSuccess(tt.status))
		})
	}
}
