package eliteclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/topuprouter/internal/eliteclient/config"
	"github.com/iurnickita/topuprouter/internal/upstream"
	upstreamConfig "github.com/iurnickita/topuprouter/internal/upstream/config"
)

const serviceName = "elitedias"

// Подстрока статуса выполненного заказа
const SuccessMarker = "success"

type TopUpRequest struct {
	Game   string
	Denom  string
	Fields map[string]string
}

type TopUpResult struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TrackedOrder struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	Price       float64  `json:"price"`
	Game        string   `json:"game"`
	Denom       string   `json:"denom"`
	OrderDetail []string `json:"order_details"`
	Message     string   `json:"message"`
	Code        string   `json:"code"`
}

type Client interface {
	CreateTopUp(ctx context.Context, topUp TopUpRequest) (TopUpResult, error)
	TrackOrder(ctx context.Context, orderID string) (TrackedOrder, error)
	Denominations(ctx context.Context, game string) (map[string]float64, error)
}

type client struct {
	cfg  config.Config
	http *resty.Client
}

func NewClient(cfg config.Config, upCfg upstreamConfig.Config) Client {
	http := upstream.NewClient(upCfg, cfg.BaseURL).
		SetHeader("Content-Type", "application/json")
	if cfg.Origin != "" {
		http.SetHeader("Origin", cfg.Origin)
	}
	return &client{cfg: cfg, http: http}
}

func (c *client) CreateTopUp(ctx context.Context, topUp TopUpRequest) (TopUpResult, error) {
	body := make(map[string]any, len(topUp.Fields)+3)
	for field, value := range topUp.Fields {
		body[field] = value
	}
	body["game"] = topUp.Game
	body["denom"] = topUp.Denom
	body["api_key"] = c.cfg.APIKey

	var answer TopUpResult
	resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&answer).Post("/elitedias_reseller_topup_api")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return TopUpResult{}, err
	}
	if answer.OrderID == "" {
		return answer, fmt.Errorf("top up %s/%s: %s %s: %w", topUp.Game, topUp.Denom, answer.Status, answer.Message, upstream.ErrRejected)
	}
	return answer, nil
}

func (c *client) TrackOrder(ctx context.Context, orderID string) (TrackedOrder, error) {
	var answer TrackedOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"api_key": c.cfg.APIKey, "order_id": orderID}).
		SetResult(&answer).
		Post("/track_order")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return TrackedOrder{}, err
	}
	return answer, nil
}

// Denominations - цены номиналов игры. Ответ - объект {denom: price}, цена строкой или числом.
func (c *client) Denominations(ctx context.Context, game string) (map[string]float64, error) {
	var answer map[string]json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"api_key": c.cfg.APIKey, "game": game}).
		SetResult(&answer).
		Post("/elitedias_api_denominations")
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(answer))
	for denom, raw := range answer {
		price, ok := parsePrice(raw)
		if !ok {
			continue
		}
		prices[denom] = price
	}
	return prices, nil
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

func IsSuccess(orderStatus string) bool {
	return strings.Contains(strings.ToLower(orderStatus), SuccessMarker)
}
