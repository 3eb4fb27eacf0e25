package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store/config"
)

// Store - хранилище ожидающих доставки заказов.
// Каждое чтение идёт в бэкенд, кэша в памяти процесса нет.
type Store interface {
	PendingOrderPost(ctx context.Context, order model.PendingOrder) error
	PendingOrderPut(ctx context.Context, order model.PendingOrder) error
	PendingOrderGet(ctx context.Context, provider model.Provider, key string) (model.PendingOrder, error)
	PendingOrderDelete(ctx context.Context, provider model.Provider, key string) error
	PendingOrderByOrder(ctx context.Context, orderID string) (model.PendingOrder, error)
	PendingOrderList(ctx context.Context) ([]model.PendingOrder, error)
	Close() error
}

var (
	ErrNotFound      = errors.New("pending order not found")
	ErrAlreadyExists = errors.New("pending order already exists")
	ErrInvalidOrder  = errors.New("pending order is incomplete")
)

func NewStore(cfg config.Config) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres, "":
		return NewPostgres(cfg)
	case config.BackendRedis:
		return NewRedis(cfg)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func validate(order model.PendingOrder) error {
	if order.Provider == "" || order.Key == "" || order.OrderID == "" {
		return ErrInvalidOrder
	}
	if order.Quantity <= 0 {
		return ErrInvalidOrder
	}
	return nil
}
