package g2gclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/topuprouter/internal/g2gclient/config"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/upstream"
	upstreamConfig "github.com/iurnickita/topuprouter/internal/upstream/config"
)

const serviceName = "g2g"

// Причины частичной доставки
const (
	DeliveryIssueIncorrectDetail   = "incorrect_delivery_detail"
	DeliveryIssueInsufficientStock = "insufficient_stock"
	DeliveryIssueOthers            = "others"
)

type DeliveryReport struct {
	DeliveredQty  int     `json:"delivered_qty"`
	DeliveryIssue *string `json:"delivery_issue"`
	DeliveredAt   int64   `json:"delivered_at"`
	ReferenceID   *string `json:"reference_id"`
}

type Client interface {
	GetOffer(ctx context.Context, offerID string) (model.Offer, error)
	PatchDelivery(ctx context.Context, orderID string, deliveryID string, report DeliveryReport) error
}

// JSON ответ g2g
type response[T any] struct {
	Code    int `json:"code"`
	Payload T   `json:"payload"`
}

type offerPayload struct {
	OfferID         string  `json:"offer_id"`
	ProductID       string  `json:"product_id"`
	Currency        string  `json:"currency"`
	UnitPrice       float64 `json:"unit_price"`
	OfferAttributes []struct {
		AttributeGroupID string `json:"attribute_group_id"`
		AttributeID      string `json:"attribute_id"`
	} `json:"offer_attributes"`
}

type client struct {
	cfg  config.Config
	http *resty.Client
	now  func() time.Time
}

func NewClient(cfg config.Config, upCfg upstreamConfig.Config) Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v2"
	}
	return &client{
		cfg:  cfg,
		http: upstream.NewClient(upCfg, cfg.BaseURL),
		now:  time.Now,
	}
}

// Sign - HMAC-SHA256 в hex от конкатенации частей.
func Sign(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, part := range parts {
		mac.Write([]byte(part))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *client) request(ctx context.Context, canonicalURL string) *resty.Request {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	return c.http.R().
		SetContext(ctx).
		SetHeader("g2g-api-key", c.cfg.APIKey).
		SetHeader("g2g-userid", c.cfg.AccountID).
		SetHeader("g2g-timestamp", timestamp).
		SetHeader("g2g-signature", Sign(c.cfg.SecretKey, canonicalURL, c.cfg.APIKey, c.cfg.AccountID, timestamp)).
		SetHeader("Content-Type", "application/json")
}

func (c *client) GetOffer(ctx context.Context, offerID string) (model.Offer, error) {
	path := "/" + c.cfg.APIVersion + "/offers/" + offerID

	var answer response[offerPayload]
	resp, err := c.request(ctx, path).SetResult(&answer).Get(path)
	if err := upstream.Check(serviceName, resp, err); err != nil {
		return model.Offer{}, err
	}

	offer := model.Offer{
		OfferID:   answer.Payload.OfferID,
		ProductID: answer.Payload.ProductID,
		UnitPrice: answer.Payload.UnitPrice,
		Currency:  answer.Payload.Currency,
	}
	for _, attr := range answer.Payload.OfferAttributes {
		offer.Attributes = append(offer.Attributes, model.OfferAttribute{
			GroupID:     attr.AttributeGroupID,
			AttributeID: attr.AttributeID,
		})
	}
	return offer, nil
}

func (c *client) PatchDelivery(ctx context.Context, orderID string, deliveryID string, report DeliveryReport) error {
	path := "/" + c.cfg.APIVersion + "/orders/" + orderID + "/delivery/" + deliveryID

	resp, err := c.request(ctx, path).SetBody(report).Patch(path)
	return upstream.Check(serviceName, resp, err)
}
