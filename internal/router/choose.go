package router

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/mapping"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/pricing"
)

type choice struct {
	provider model.Provider
	// код lapakgaming для заказа
	lapakCode string
}

func (r *Router) choose(ctx context.Context, rec *audit.Recorder, tables *mapping.Tables, m model.ProductMap, qty int) (choice, error) {
	lapakUsable := len(m.LapakCodes) > 0
	eliteUsable := m.Elite != nil

	switch m.Mode {
	case model.ProviderModeLapak:
		if !lapakUsable {
			return choice{}, fmt.Errorf("mode %s without lapakgaming codes: %w", m.Mode, ErrNoProvider)
		}
		return r.lapakChoice(ctx, rec, m.LapakCodes), nil
	case model.ProviderModeElite:
		if !eliteUsable {
			return choice{}, fmt.Errorf("mode %s without elitedias product: %w", m.Mode, ErrNoProvider)
		}
		return choice{provider: model.ProviderElite}, nil
	}

	switch {
	case lapakUsable && !eliteUsable:
		return r.lapakChoice(ctx, rec, m.LapakCodes), nil
	case eliteUsable && !lapakUsable:
		return choice{provider: model.ProviderElite}, nil
	case !lapakUsable && !eliteUsable:
		return choice{}, fmt.Errorf("mapping is empty: %w", ErrNoProvider)
	}

	// обе цены запрашиваются параллельно, ошибка одной не отменяет другую
	var (
		g                      errgroup.Group
		lapakQuote, eliteQuote pricing.Quote
		lapakErr, eliteErr     error
	)
	g.Go(func() error {
		lapakQuote, lapakErr = r.quoter.LapakQuote(ctx, tables, m.LapakCodes, qty)
		return nil
	})
	g.Go(func() error {
		eliteQuote, eliteErr = r.quoter.EliteQuote(ctx, tables, *m.Elite, qty)
		return nil
	})
	g.Wait()

	entry := rec.Entry()
	if lapakErr == nil {
		entry.LapakPriceUSD = lapakQuote.USD()
	} else {
		rec.Notef(ctx, "lapakgaming ineligible: %v", lapakErr)
	}
	if eliteErr == nil {
		entry.ElitePriceUSD = eliteQuote.USD()
	} else {
		rec.Notef(ctx, "elitedias ineligible: %v", eliteErr)
	}

	var c choice
	switch {
	case lapakErr != nil && eliteErr != nil:
		rec.Flush(ctx)
		return choice{}, fmt.Errorf("no provider could be priced: %w", ErrNoProvider)
	case lapakErr != nil:
		c = choice{provider: model.ProviderElite}
	case eliteErr != nil:
		c = choice{provider: model.ProviderLapak, lapakCode: lapakQuote.ProductCode}
	default:
		c.provider = pricing.Cheaper(lapakQuote.Total, lapakQuote.Rate, eliteQuote.Total, eliteQuote.Rate)
		if c.provider == model.ProviderLapak {
			c.lapakCode = lapakQuote.ProductCode
		}
		rec.Notef(ctx, "Price comparison: lapakgaming %.4f USD (%s), elitedias %.4f USD -> %s",
			lapakQuote.USD(), lapakQuote.ProductCode, eliteQuote.USD(), c.provider)
	}
	rec.Flush(ctx)
	return c, nil
}

// lapakChoice выбирает самый дешёвый доступный код без сравнения провайдеров.
// Если цены недоступны, берётся первый код из маппинга
func (r *Router) lapakChoice(ctx context.Context, rec *audit.Recorder, codes []string) choice {
	product, err := r.quoter.LowestLapakProduct(ctx, codes)
	if err != nil {
		rec.Notef(ctx, "lapakgaming price lookup failed, using code %s: %v", codes[0], err)
		return choice{provider: model.ProviderLapak, lapakCode: codes[0]}
	}
	return choice{provider: model.ProviderLapak, lapakCode: product.Code}
}
