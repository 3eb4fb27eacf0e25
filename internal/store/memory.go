package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iurnickita/topuprouter/internal/model"
)

type memKey struct {
	provider model.Provider
	key      string
}

// memStore - хранилище в памяти процесса (локальный запуск, тесты).
type memStore struct {
	mu      sync.RWMutex
	orders  map[memKey]model.PendingOrder
	byOrder map[string]memKey
}

func NewMemory() Store {
	return &memStore{
		orders:  make(map[memKey]model.PendingOrder),
		byOrder: make(map[string]memKey),
	}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) PendingOrderPost(_ context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{order.Provider, order.Key}
	if _, ok := s.orders[k]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byOrder[order.OrderID]; ok {
		return ErrAlreadyExists
	}
	s.orders[k] = clone(order)
	s.byOrder[order.OrderID] = k
	return nil
}

func (s *memStore) PendingOrderPut(_ context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{order.Provider, order.Key}
	current, ok := s.orders[k]
	if !ok {
		return ErrNotFound
	}
	order.OrderID = current.OrderID
	order.CreatedAt = current.CreatedAt
	s.orders[k] = clone(order)
	return nil
}

func (s *memStore) PendingOrderGet(_ context.Context, provider model.Provider, key string) (model.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[memKey{provider, key}]
	if !ok {
		return model.PendingOrder{}, ErrNotFound
	}
	return clone(order), nil
}

func (s *memStore) PendingOrderByOrder(_ context.Context, orderID string) (model.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.byOrder[orderID]
	if !ok {
		return model.PendingOrder{}, ErrNotFound
	}
	return clone(s.orders[k]), nil
}

func (s *memStore) PendingOrderDelete(_ context.Context, provider model.Provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{provider, key}
	order, ok := s.orders[k]
	if !ok {
		return ErrNotFound
	}
	delete(s.orders, k)
	delete(s.byOrder, order.OrderID)
	return nil
}

func (s *memStore) PendingOrderList(_ context.Context) ([]model.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]model.PendingOrder, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, clone(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func clone(order model.PendingOrder) model.PendingOrder {
	if order.ProviderOrderIDs != nil {
		order.ProviderOrderIDs = append([]string(nil), order.ProviderOrderIDs...)
	}
	return order
}
