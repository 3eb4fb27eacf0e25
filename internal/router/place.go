package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/upstream"
)

var ErrShortfall = errors.New("not all units were placed")

// placeLapak размещает один заказ на всё количество. Возвращает tid
func (r *Router) placeLapak(ctx context.Context, rec *audit.Recorder, code string, fields map[string]string, qty int) (string, error) {
	ref := r.newRef()
	created, err := r.lapak.CreateOrder(ctx, lapakclient.OrderRequest{
		ProductCode: code,
		Count:       qty,
		ReferenceID: ref,
		Fields:      fields,
	})
	if err != nil {
		metrics.ProviderOrdersTotal.WithLabelValues(string(model.ProviderLapak), "error").Inc()
		return "", err
	}
	metrics.ProviderOrdersTotal.WithLabelValues(string(model.ProviderLapak), "ok").Inc()
	rec.Notef(ctx, "lapakgaming order %s created for %d x %s, reference %s", created.TID, qty, code, ref)
	return created.TID, nil
}

// placeElite размещает qty заказов по одной единице.
// Не более 2+qty попыток; постоянная ошибка провайдера прекращает попытки.
// При недоборе возвращает размещённые id вместе с ErrShortfall
func (r *Router) placeElite(ctx context.Context, rec *audit.Recorder, product model.EliteProduct, fields map[string]string, qty int) ([]string, error) {
	var (
		ids     []string
		lastErr error
	)
	budget := 2 + qty
	for attempt := 1; attempt <= budget && len(ids) < qty; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		res, err := r.elite.CreateTopUp(ctx, eliteclient.TopUpRequest{
			Game:   product.Game,
			Denom:  product.Denom,
			Fields: fields,
		})
		if err != nil {
			metrics.ProviderOrdersTotal.WithLabelValues(string(model.ProviderElite), "error").Inc()
			lastErr = err
			rec.Notef(ctx, "elitedias attempt %d/%d failed: %v", attempt, budget, err)
			if upstream.IsPermanent(err) {
				break
			}
			continue
		}
		metrics.ProviderOrdersTotal.WithLabelValues(string(model.ProviderElite), "ok").Inc()
		ids = append(ids, res.OrderID)
	}

	if len(ids) < qty {
		return ids, fmt.Errorf("placed %d of %d: %w: last error: %v", len(ids), qty, ErrShortfall, lastErr)
	}
	rec.Notef(ctx, "elitedias orders %v created for %s/%s", ids, product.Game, product.Denom)
	return ids, nil
}
