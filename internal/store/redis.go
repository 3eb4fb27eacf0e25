package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store/config"
)

// Заказ хранится JSON-значением под ключом <prefix>order:<provider>:<key>,
// индекс <prefix>index:<order_id> указывает на него и держит уникальность по заказу маркетплейса.
type redisStore struct {
	client *redis.Client
	prefix string
}

type redisRecord struct {
	Provider         string    `json:"provider"`
	Key              string    `json:"key"`
	OrderID          string    `json:"order_id"`
	DeliveryID       string    `json:"delivery_id"`
	Quantity         int       `json:"quantity"`
	LogIndex         int64     `json:"log_index"`
	ProviderOrderIDs []string  `json:"provider_order_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewRedis(cfg config.Config) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = "topuprouter:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) orderKey(provider model.Provider, key string) string {
	return s.prefix + "order:" + string(provider) + ":" + key
}

func (s *redisStore) indexKey(orderID string) string {
	return s.prefix + "index:" + orderID
}

func (s *redisStore) PendingOrderPost(ctx context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	value, err := json.Marshal(toRedisRecord(order))
	if err != nil {
		return err
	}

	// Сначала занимаем заказ маркетплейса, затем пишем сам заказ
	ref := string(order.Provider) + ":" + order.Key
	ok, err := s.client.SetNX(ctx, s.indexKey(order.OrderID), ref, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	ok, err = s.client.SetNX(ctx, s.orderKey(order.Provider, order.Key), value, 0).Result()
	if err != nil || !ok {
		s.client.Del(ctx, s.indexKey(order.OrderID))
		if err != nil {
			return err
		}
		return ErrAlreadyExists
	}
	return nil
}

func (s *redisStore) PendingOrderPut(ctx context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	current, err := s.PendingOrderGet(ctx, order.Provider, order.Key)
	if err != nil {
		return err
	}
	order.OrderID = current.OrderID
	order.CreatedAt = current.CreatedAt

	value, err := json.Marshal(toRedisRecord(order))
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.orderKey(order.Provider, order.Key), value, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *redisStore) PendingOrderGet(ctx context.Context, provider model.Provider, key string) (model.PendingOrder, error) {
	return s.get(ctx, s.orderKey(provider, key))
}

func (s *redisStore) get(ctx context.Context, redisKey string) (model.PendingOrder, error) {
	value, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.PendingOrder{}, ErrNotFound
		}
		return model.PendingOrder{}, err
	}
	var record redisRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return model.PendingOrder{}, fmt.Errorf("decode %s: %w", redisKey, err)
	}
	return record.toModel(), nil
}

func (s *redisStore) PendingOrderByOrder(ctx context.Context, orderID string) (model.PendingOrder, error) {
	ref, err := s.client.Get(ctx, s.indexKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.PendingOrder{}, ErrNotFound
		}
		return model.PendingOrder{}, err
	}
	provider, key, found := strings.Cut(ref, ":")
	if !found {
		return model.PendingOrder{}, fmt.Errorf("malformed order index %q", ref)
	}
	return s.PendingOrderGet(ctx, model.Provider(provider), key)
}

func (s *redisStore) PendingOrderDelete(ctx context.Context, provider model.Provider, key string) error {
	order, err := s.PendingOrderGet(ctx, provider, key)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.orderKey(provider, key))
		pipe.Del(ctx, s.indexKey(order.OrderID))
		return nil
	})
	return err
}

func (s *redisStore) PendingOrderList(ctx context.Context) ([]model.PendingOrder, error) {
	var orders []model.PendingOrder
	iter := s.client.Scan(ctx, 0, s.prefix+"order:*", 100).Iterator()
	for iter.Next(ctx) {
		order, err := s.get(ctx, iter.Val())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func toRedisRecord(order model.PendingOrder) redisRecord {
	return redisRecord{
		Provider:         string(order.Provider),
		Key:              order.Key,
		OrderID:          order.OrderID,
		DeliveryID:       order.DeliveryID,
		Quantity:         order.Quantity,
		LogIndex:         order.LogIndex,
		ProviderOrderIDs: order.ProviderOrderIDs,
		CreatedAt:        order.CreatedAt,
	}
}

func (r redisRecord) toModel() model.PendingOrder {
	return model.PendingOrder{
		Provider:         model.Provider(r.Provider),
		Key:              r.Key,
		OrderID:          r.OrderID,
		DeliveryID:       r.DeliveryID,
		Quantity:         r.Quantity,
		LogIndex:         r.LogIndex,
		ProviderOrderIDs: r.ProviderOrderIDs,
		CreatedAt:        r.CreatedAt,
	}
}
