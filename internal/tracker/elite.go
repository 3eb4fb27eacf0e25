package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store"
)

// runElite опрашивает заказы elitedias до полной доставки.
// Любая ошибка перезапускает цикл после паузы, без ограничения числа перезапусков.
func (p *Pool) runElite(ctx context.Context, orderID string) {
	for {
		err := p.eliteLoop(ctx, orderID)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.zaplog.Info("elite tracker restart",
			zap.String("order", orderID),
			zap.Error(err))
		if !sleep(ctx, p.cfg.EliteRestartWait) {
			return
		}
	}
}

func (p *Pool) eliteLoop(ctx context.Context, orderID string) error {
	for {
		done, err := p.pollElite(ctx, orderID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !sleep(ctx, p.cfg.EliteInterval) {
			return nil
		}
	}
}

// pollElite проверяет все невыполненные заказы провайдера.
// Выполненные сразу убираются из записи
func (p *Pool) pollElite(ctx context.Context, orderID string) (bool, error) {
	order, err := p.store.PendingOrderGet(ctx, model.ProviderElite, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	for _, id := range slices.Clone(order.ProviderOrderIDs) {
		tracked, err := p.elite.TrackOrder(ctx, id)
		if err != nil {
			return false, fmt.Errorf("track order %s: %w", id, err)
		}
		if !eliteclient.IsSuccess(tracked.OrderStatus) {
			continue
		}
		order.ProviderOrderIDs = slices.DeleteFunc(order.ProviderOrderIDs, func(s string) bool { return s == id })
		if err := p.store.PendingOrderPut(ctx, order); err != nil {
			return false, fmt.Errorf("save progress %s: %w", orderID, err)
		}
		p.zaplog.Info("elite order completed",
			zap.String("order", orderID),
			zap.String("elite_order", id),
			zap.Int("outstanding", len(order.ProviderOrderIDs)))
	}

	if len(order.ProviderOrderIDs) > 0 {
		return false, nil
	}
	if err := p.reportDelivery(ctx, order); err != nil {
		return false, err
	}
	return true, nil
}
