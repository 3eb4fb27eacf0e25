package lapakclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/topuprouter/internal/lapakclient/config"
	"github.com/iurnickita/topuprouter/internal/upstream"
	upstreamConfig "github.com/iurnickita/topuprouter/internal/upstream/config"
)

const serviceName = "lapakgaming"

// Код успешного ответа в конверте
const CodeSuccess = "SUCCESS"

const (
	StatusSuccess          = "SUCCESS"
	StatusPending          = "PENDING"
	StatusRefunded         = "REFUNDED"
	ProductStatusAvailable = "available"
)

type OrderRequest struct {
	ProductCode string
	Count       int
	ReferenceID string
	Fields      map[string]string
}

type CreatedOrder struct {
	TID   string  `json:"tid"`
	Price float64 `json:"price"`
}

type Transaction struct {
	ID          string `json:"id"`
	ProductName string `json:"product_name"`
	Note        string `json:"note"`
	Status      string `json:"status"`
	VoucherCode string `json:"voucher_code"`
}

type OrderStatus struct {
	Status       string        `json:"status"`
	TID          string        `json:"tid"`
	ReferenceID  string        `json:"reference_id"`
	Transactions []Transaction `json:"transactions"`
}

type Product struct {
	Code         string  `json:"code"`
	CategoryCode string  `json:"category_code"`
	Name         string  `json:"name"`
	ProviderCode string  `json:"provider_code"`
	Price        float64 `json:"price"`
	ProcessTime  int     `json:"process_time"`
	CountryCode  string  `json:"country_code"`
	Status       string  `json:"status"`
}

type FxRate struct {
	BuyRate  float64 `json:"buy_rate"`
	SellRate float64 `json:"sell_rate"`
}

type Client interface {
	CreateOrder(ctx context.Context, order OrderRequest) (CreatedOrder, error)
	OrderStatus(ctx context.Context, tid string) (OrderStatus, error)
	AllProducts(ctx context.Context, countryCode string) ([]Product, error)
	FxRate(ctx context.Context, from string, to string) (FxRate, error)
}

// JSON ответ lapakgaming
type response[T any] struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type client struct {
	cfg  config.Config
	http *resty.Client
}

func NewClient(cfg config.Config, upCfg upstreamConfig.Config) Client {
	return &client{
		cfg:  cfg,
		http: upstream.NewClient(upCfg, cfg.BaseURL).SetAuthToken(cfg.APIKey),
	}
}

func (c *client) CreateOrder(ctx context.Context, order OrderRequest) (CreatedOrder, error) {
	body := make(map[string]any, len(order.Fields)+4)
	for field, value := range order.Fields {
		body[field] = value
	}
	body["product_code"] = order.ProductCode
	body["count"] = order.Count
	if order.ReferenceID != "" {
		body["reference_id"] = order.ReferenceID
	}
	if c.cfg.CallbackURL != "" {
		body["callback_url"] = c.cfg.CallbackURL
	}

	var answer response[CreatedOrder]
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&answer).Post("/api/order")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return CreatedOrder{}, err
	}
	if answer.Data.TID == "" {
		return CreatedOrder{}, fmt.Errorf("create order %s: %s %s: %w", order.ProductCode, answer.Code, answer.Message, upstream.ErrRejected)
	}
	return answer.Data, nil
}

func (c *client) OrderStatus(ctx context.Context, tid string) (OrderStatus, error) {
	var answer response[OrderStatus]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tid", tid).
		SetResult(&answer).
		Post("/api/order_status")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return OrderStatus{}, err
	}
	if !strings.EqualFold(answer.Code, CodeSuccess) || answer.Data.TID == "" {
		return OrderStatus{}, fmt.Errorf("order status %s: %s %s: %w", tid, answer.Code, answer.Message, upstream.ErrRejected)
	}
	return answer.Data, nil
}

func (c *client) AllProducts(ctx context.Context, countryCode string) ([]Product, error) {
	var answer response[struct {
		Products []Product `json:"products"`
	}]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("country_code", countryCode).
		SetResult(&answer).
		Get("/api/all-products")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return nil, err
	}
	return answer.Data.Products, nil
}

func (c *client) FxRate(ctx context.Context, from string, to string) (FxRate, error) {
	var answer response[FxRate]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"from_currency": from, "to_currency": to}).
		SetResult(&answer).
		Get("/api/fx-rate.php")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return FxRate{}, err
	}
	return answer.Data, nil
}

// IsSuccess - заказ выполнен: общий статус и все транзакции SUCCESS.
func IsSuccess(status OrderStatus) bool {
	if !strings.EqualFold(status.Status, StatusSuccess) {
		return false
	}
	for _, transaction := range status.Transactions {
		if !strings.EqualFold(transaction.Status, StatusSuccess) {
			return false
		}
	}
	return true
}
