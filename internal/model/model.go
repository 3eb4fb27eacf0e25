package model

import "time"

// Провайдеры исполнения

type Provider string

const (
	ProviderLapak Provider = "lapakgaming"
	ProviderElite Provider = "elitedias"
)

// Режим выбора провайдера в маппинге
type ProviderMode string

const (
	ProviderModeAuto  ProviderMode = "auto"
	ProviderModeLapak ProviderMode = "lapakgaming"
	ProviderModeElite ProviderMode = "elitedias"
)

// Входящее событие доставки (order.api_delivery)

const DeliveryMethodDirectTopUp = "direct_top_up"

type DeliveryEvent struct {
	OrderID            string
	OfferID            string
	BuyerID            string
	PurchasedQty       int
	DeliveryID         string
	DeliveryMethodCode string
	Attributes         []DeliveryAttribute
}

type DeliveryAttribute struct {
	GroupID        string
	GroupName      string
	AttributeID    string
	AttributeValue string
	Value          string
	Key            string
}

// Оффер маркетплейса

type Offer struct {
	OfferID    string
	ProductID  string
	UnitPrice  float64
	Currency   string
	Attributes []OfferAttribute
}

type OfferAttribute struct {
	GroupID     string
	AttributeID string
}

// Маппинг продукта на провайдеров

type ProductMap struct {
	LapakCodes []string
	Elite      *EliteProduct
	Mode       ProviderMode
}

type EliteProduct struct {
	Game  string
	Denom string
}

// Ожидающий доставки заказ.
// Lapak: Key = tid провайдера. Elite: Key = номер заказа маркетплейса,
// ProviderOrderIDs = ещё не выполненные заказы провайдера.

type PendingOrder struct {
	Provider         Provider
	Key              string
	OrderID          string
	DeliveryID       string
	Quantity         int
	LogIndex         int64
	ProviderOrderIDs []string
	CreatedAt        time.Time
}
