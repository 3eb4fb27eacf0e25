// Package pricing сравнивает стоимость заказа у провайдеров в USD.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/mapping"
	"github.com/iurnickita/topuprouter/internal/model"
)

var (
	ErrNoAvailableProduct = errors.New("no available product for codes")
	ErrPriceNotFound      = errors.New("price not found")
	ErrRateUnavailable    = errors.New("exchange rate unavailable")
)

// Cheaper возвращает провайдера с меньшей ценой в USD.
// A - lapakgaming, B - elitedias; при равенстве - lapakgaming.
func Cheaper(aQuote float64, aRate float64, bQuote float64, bRate float64) model.Provider {
	if bQuote*bRate < aQuote*aRate {
		return model.ProviderElite
	}
	return model.ProviderLapak
}

type Quote struct {
	Provider model.Provider
	// Lapak: код с минимальной ценой
	ProductCode string
	UnitPrice   float64
	Total       float64
	Currency    string
	Rate        float64
}

func (q Quote) USD() float64 {
	return q.Total * q.Rate
}

type Config struct {
	LapakCountries []string
	LapakCurrency  string
	EliteCurrency  string
}

type Quoter struct {
	cfg   Config
	lapak lapakclient.Client
	elite eliteclient.Client
}

func NewQuoter(cfg Config, lapak lapakclient.Client, elite eliteclient.Client) *Quoter {
	if len(cfg.LapakCountries) == 0 {
		cfg.LapakCountries = []string{"id"}
	}
	if cfg.LapakCurrency == "" {
		cfg.LapakCurrency = "IDR"
	}
	if cfg.EliteCurrency == "" {
		cfg.EliteCurrency = "SGD"
	}
	return &Quoter{cfg: cfg, lapak: lapak, elite: elite}
}

// LowestLapakProduct - доступный продукт с минимальной ценой среди кодов.
func (q *Quoter) LowestLapakProduct(ctx context.Context, codes []string) (lapakclient.Product, error) {
	var (
		mu       sync.Mutex
		products []lapakclient.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, country := range q.cfg.LapakCountries {
		country := country
		g.Go(func() error {
			list, err := q.lapak.AllProducts(gctx, country)
			if err != nil {
				return fmt.Errorf("all products %s: %w", country, err)
			}
			mu.Lock()
			products = append(products, list...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return lapakclient.Product{}, err
	}

	var (
		best  lapakclient.Product
		found bool
	)
	minPrice := math.MaxFloat64
	for _, product := range products {
		if !slices.Contains(codes, product.Code) || product.Status != lapakclient.ProductStatusAvailable {
			continue
		}
		if product.Price < minPrice {
			minPrice = product.Price
			best = product
			found = true
		}
	}
	if !found {
		return lapakclient.Product{}, fmt.Errorf("%v: %w", codes, ErrNoAvailableProduct)
	}
	return best, nil
}

func (q *Quoter) LapakQuote(ctx context.Context, tables *mapping.Tables, codes []string, qty int) (Quote, error) {
	product, err := q.LowestLapakProduct(ctx, codes)
	if err != nil {
		return Quote{}, err
	}
	rate, err := q.lapakRate(ctx, tables)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Provider:    model.ProviderLapak,
		ProductCode: product.Code,
		UnitPrice:   product.Price,
		Total:       product.Price * float64(qty),
		Currency:    q.cfg.LapakCurrency,
		Rate:        rate,
	}, nil
}

// Курс lapakgaming: из таблиц, иначе из API провайдера
func (q *Quoter) lapakRate(ctx context.Context, tables *mapping.Tables) (float64, error) {
	rate, err := tables.Rate(q.cfg.LapakCurrency)
	if err == nil {
		return rate, nil
	}
	fx, fxErr := q.lapak.FxRate(ctx, q.cfg.LapakCurrency, "USD")
	if fxErr != nil {
		return 0, fmt.Errorf("%s: %w: %w", q.cfg.LapakCurrency, ErrRateUnavailable, fxErr)
	}
	if fx.BuyRate <= 0 {
		return 0, fmt.Errorf("%s: %w", q.cfg.LapakCurrency, ErrRateUnavailable)
	}
	return fx.BuyRate, nil
}

func (q *Quoter) EliteQuote(ctx context.Context, tables *mapping.Tables, product model.EliteProduct, qty int) (Quote, error) {
	prices, err := q.elite.Denominations(ctx, product.Game)
	if err != nil {
		return Quote{}, fmt.Errorf("denominations %s: %w", product.Game, err)
	}
	price, ok := prices[product.Denom]
	if !ok {
		return Quote{}, fmt.Errorf("%s/%s: %w", product.Game, product.Denom, ErrPriceNotFound)
	}
	rate, err := tables.Rate(q.cfg.EliteCurrency)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrRateUnavailable, err)
	}
	return Quote{
		Provider:  model.ProviderElite,
		UnitPrice: price,
		Total:     price * float64(qty),
		Currency:  q.cfg.EliteCurrency,
		Rate:      rate,
	}, nil
}
