package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store"
)

// runLapak опрашивает статус заказа lapakgaming.
// Ошибки считаются за всё время жизни задачи: после LapakMaxRetries трекер сдаётся,
// заказ остаётся в хранилище.
func (p *Pool) runLapak(ctx context.Context, tid string) {
	retries := 0
	for {
		done, err := p.pollLapak(ctx, tid)
		if done {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			retries++
			p.zaplog.Info("lapak tracker poll failed",
				zap.String("tid", tid),
				zap.Int("retry", retries),
				zap.Error(err))
			if retries > p.cfg.LapakMaxRetries {
				p.orphan(ctx, tid, err)
				return
			}
		}
		if !sleep(ctx, p.cfg.LapakInterval) {
			return
		}
	}
}

// pollLapak - один шаг трекера. done - трекер должен остановиться
func (p *Pool) pollLapak(ctx context.Context, tid string) (bool, error) {
	order, err := p.store.PendingOrderGet(ctx, model.ProviderLapak, tid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// заказ уже закрыт
			return true, nil
		}
		return false, err
	}

	status, err := p.lapak.OrderStatus(ctx, tid)
	if err != nil {
		return false, fmt.Errorf("order status %s: %w", tid, err)
	}
	if !lapakclient.IsSuccess(status) {
		return false, nil
	}
	if err := p.reportDelivery(ctx, order); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pool) orphan(ctx context.Context, tid string, err error) {
	metrics.TrackersOrphanedTotal.WithLabelValues(string(model.ProviderLapak)).Inc()
	p.zaplog.Error("lapak tracker gave up, order orphaned",
		zap.String("tid", tid),
		zap.Error(err))
	order, getErr := p.store.PendingOrderGet(ctx, model.ProviderLapak, tid)
	if getErr != nil {
		return
	}
	audit.AppendNote(ctx, p.sink, order.LogIndex,
		fmt.Sprintf("Tracker gave up on tid %s: %v", tid, err), p.zaplog)
}

// HandleLapakCallback обрабатывает уведомление lapakgaming о статусе заказа.
// Успех - доставка сразу, иначе заказ остаётся на трекере
func (p *Pool) HandleLapakCallback(ctx context.Context, status lapakclient.OrderStatus) error {
	order, err := p.store.PendingOrderGet(ctx, model.ProviderLapak, status.TID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if lapakclient.IsSuccess(status) {
		return p.reportDelivery(ctx, order)
	}
	p.Track(order)
	return nil
}
