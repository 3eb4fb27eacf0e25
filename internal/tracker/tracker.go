// Package tracker отслеживает выполнение заказов у провайдеров
// и сообщает о доставке маркетплейсу.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/g2gclient"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store"
	"github.com/iurnickita/topuprouter/internal/tracker/config"
)

var ErrPoolClosed = errors.New("tracker pool is shut down")

type taskKey struct {
	provider model.Provider
	key      string
}

// Task - живой трекер
type Task struct {
	Provider  model.Provider `json:"provider"`
	Key       string         `json:"key"`
	StartedAt time.Time      `json:"started_at"`
}

// Pool владеет горутинами трекеров: не более одного трекера на ключ.
type Pool struct {
	cfg    config.Config
	store  store.Store
	sink   audit.Sink
	g2g    g2gclient.Client
	lapak  lapakclient.Client
	elite  eliteclient.Client
	zaplog *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[taskKey]Task
	closed bool
}

func NewPool(cfg config.Config,
	store store.Store,
	sink audit.Sink,
	g2g g2gclient.Client,
	lapak lapakclient.Client,
	elite eliteclient.Client,
	zaplog *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg.WithDefaults(),
		store:  store,
		sink:   sink,
		g2g:    g2g,
		lapak:  lapak,
		elite:  elite,
		zaplog: zaplog,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[taskKey]Task),
	}
}

// Track запускает трекер для заказа. false - трекер уже работает или пул закрыт
func (p *Pool) Track(order model.PendingOrder) bool {
	k := taskKey{provider: order.Provider, key: order.Key}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if _, ok := p.tasks[k]; ok {
		return false
	}

	var run func(ctx context.Context, key string)
	switch order.Provider {
	case model.ProviderLapak:
		run = p.runLapak
	case model.ProviderElite:
		run = p.runElite
	default:
		p.zaplog.Info("tracker: unknown provider", zap.String("provider", string(order.Provider)))
		return false
	}

	p.tasks[k] = Task{Provider: order.Provider, Key: order.Key, StartedAt: p.now()}
	metrics.TrackersLive.WithLabelValues(string(order.Provider)).Inc()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.forget(k)
		defer func() {
			if r := recover(); r != nil {
				p.zaplog.Error("tracker panic",
					zap.String("provider", string(k.provider)),
					zap.String("key", k.key),
					zap.Any("panic", r))
			}
		}()
		p.zaplog.Info("tracker started", zap.String("provider", string(k.provider)), zap.String("key", k.key))
		run(p.ctx, k.key)
		p.zaplog.Info("tracker stopped", zap.String("provider", string(k.provider)), zap.String("key", k.key))
	}()
	return true
}

func (p *Pool) forget(k taskKey) {
	p.mu.Lock()
	delete(p.tasks, k)
	p.mu.Unlock()
	metrics.TrackersLive.WithLabelValues(string(k.provider)).Dec()
}

// Live - список живых трекеров, упорядоченный по времени запуска
func (p *Pool) Live() []Task {
	p.mu.Lock()
	tasks := make([]Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		tasks = append(tasks, task)
	}
	p.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].Key < tasks[j].Key
		}
		return tasks[i].StartedAt.Before(tasks[j].StartedAt)
	})
	return tasks
}

// Reconcile запускает трекеры для сохранённых заказов, у которых трекера нет.
// Возвращает число запущенных трекеров
func (p *Pool) Reconcile(ctx context.Context) (int, error) {
	orders, err := p.store.PendingOrderList(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	started := 0
	for _, order := range orders {
		if p.Track(order) {
			started++
		}
	}
	if started > 0 {
		p.zaplog.Info("trackers reconciled", zap.Int("started", started), zap.Int("stored", len(orders)))
	}
	return started, nil
}

// Shutdown останавливает трекеры и ждёт их завершения.
// Заказы остаются в хранилище и подхватываются Reconcile при следующем запуске
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reportDelivery сообщает маркетплейсу о доставке и удаляет заказ
func (p *Pool) reportDelivery(ctx context.Context, order model.PendingOrder) error {
	err := p.g2g.PatchDelivery(ctx, order.OrderID, order.DeliveryID, g2gclient.DeliveryReport{
		DeliveredQty: order.Quantity,
		DeliveredAt:  p.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("report delivery %s: %w", order.OrderID, err)
	}
	metrics.DeliveriesReportedTotal.WithLabelValues(string(order.Provider)).Inc()
	audit.AppendNote(ctx, p.sink, order.LogIndex,
		fmt.Sprintf("Delivery success for order id: %s", order.OrderID), p.zaplog)

	err = p.store.PendingOrderDelete(ctx, order.Provider, order.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete pending order %s: %w", order.Key, err)
	}
	p.zaplog.Info("delivery reported",
		zap.String("provider", string(order.Provider)),
		zap.String("order", order.OrderID),
		zap.Int("quantity", order.Quantity))
	return nil
}

// sleep ждёт d; false - пул остановлен
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
