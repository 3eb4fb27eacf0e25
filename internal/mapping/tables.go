// Package mapping - таблицы соответствия продуктов маркетплейса продуктам провайдеров,
// правила заполнения полей доставки и курсы валют.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iurnickita/topuprouter/internal/model"
)

var (
	ErrProductNotFound         = errors.New("product mapping not found")
	ErrDeliveryMappingNotFound = errors.New("delivery method mapping not found")
	ErrFieldUnresolved         = errors.New("delivery field unresolved")
	ErrRateNotFound            = errors.New("exchange rate not found")
)

// Tables - снимок конфигурации на одно решение маршрутизации.
type Tables struct {
	// валюта -> курс к USD
	Rates map[string]float64 `yaml:"rates"`
	// product_id -> attribute_group_id -> attribute_id
	Products map[string]map[string]map[string]ProductRow `yaml:"products"`
	// провайдер -> product_id -> поле запроса -> правило
	Delivery map[model.Provider]map[string]map[string]FieldRule `yaml:"delivery"`
}

type ProductRow struct {
	Lapak string    `yaml:"lapakgaming"`
	Elite *EliteRow `yaml:"elitedias"`
	Mode  string    `yaml:"provider_mode"`
}

type EliteRow struct {
	Game  string `yaml:"game"`
	Denom string `yaml:"denom"`
}

func Parse(data []byte) (*Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("parse mapping tables: %w", err)
	}
	rates := make(map[string]float64, len(tables.Rates))
	for currency, rate := range tables.Rates {
		rates[strings.ToUpper(currency)] = rate
	}
	tables.Rates = rates

	for productID, groups := range tables.Products {
		for groupID, attrs := range groups {
			for attrID, row := range attrs {
				if _, err := parseMode(row.Mode); err != nil {
					return nil, fmt.Errorf("product %s/%s/%s: %w", productID, groupID, attrID, err)
				}
			}
		}
	}
	return &tables, nil
}

func parseMode(mode string) (model.ProviderMode, error) {
	switch model.ProviderMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", model.ProviderModeAuto:
		return model.ProviderModeAuto, nil
	case model.ProviderModeLapak:
		return model.ProviderModeLapak, nil
	case model.ProviderModeElite:
		return model.ProviderModeElite, nil
	default:
		return "", fmt.Errorf("unknown provider mode %q", mode)
	}
}

func (row ProductRow) productMap() model.ProductMap {
	var pm model.ProductMap
	for _, code := range strings.Split(row.Lapak, ",") {
		if code = strings.TrimSpace(code); code != "" {
			pm.LapakCodes = append(pm.LapakCodes, code)
		}
	}
	if row.Elite != nil && row.Elite.Game != "" && row.Elite.Denom != "" {
		pm.Elite = &model.EliteProduct{Game: row.Elite.Game, Denom: row.Elite.Denom}
	}
	// режим проверен в Parse
	pm.Mode, _ = parseMode(row.Mode)
	return pm
}

// Resolution - найденный маппинг и атрибут, по которому он найден.
type Resolution struct {
	Map         model.ProductMap
	GroupID     string
	AttributeID string
	// остальные совпавшие атрибуты, которые не были использованы
	Ignored []model.OfferAttribute
}

// Resolve ищет маппинг по атрибутам оффера.
// Побеждает первый совпавший атрибут в порядке оффера; прочие совпадения попадают в Ignored.
func (t *Tables) Resolve(productID string, attrs []model.OfferAttribute) (Resolution, error) {
	groups, ok := t.Products[productID]
	if !ok {
		return Resolution{}, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}

	var (
		res   Resolution
		found bool
	)
	for _, attr := range attrs {
		row, ok := groups[attr.GroupID][attr.AttributeID]
		if !ok {
			continue
		}
		if found {
			res.Ignored = append(res.Ignored, attr)
			continue
		}
		res.Map = row.productMap()
		res.GroupID = attr.GroupID
		res.AttributeID = attr.AttributeID
		found = true
	}
	if !found {
		return Resolution{}, fmt.Errorf("product %s: no attribute matched: %w", productID, ErrProductNotFound)
	}
	return res, nil
}

// HasDelivery - для продукта настроены поля доставки у провайдера.
func (t *Tables) HasDelivery(provider model.Provider, productID string) bool {
	_, ok := t.Delivery[provider][productID]
	return ok
}

// DeliveryFields строит поля запроса к провайдеру из атрибутов доставки события.
func (t *Tables) DeliveryFields(provider model.Provider, productID string, attrs []model.DeliveryAttribute) (map[string]string, error) {
	rules, ok := t.Delivery[provider][productID]
	if !ok {
		return nil, fmt.Errorf("%s product %s: %w", provider, productID, ErrDeliveryMappingNotFound)
	}

	fields := make(map[string]string, len(rules))
	for field, rule := range rules {
		value, ok := rule.resolve(attrs)
		if !ok {
			return nil, fmt.Errorf("%s product %s field %s: %w", provider, productID, field, ErrFieldUnresolved)
		}
		fields[field] = value
	}
	return fields, nil
}

// Rate - курс валюты к USD.
func (t *Tables) Rate(currency string) (float64, error) {
	if strings.EqualFold(currency, "USD") {
		return 1, nil
	}
	rate, ok := t.Rates[strings.ToUpper(currency)]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%s: %w", currency, ErrRateNotFound)
	}
	return rate, nil
}
