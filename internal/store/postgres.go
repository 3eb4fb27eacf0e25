package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/store/config"
)

type pgStore struct {
	database *sql.DB
}

func NewPostgres(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	return newPGStore(db)
}

func newPGStore(db *sql.DB) (*pgStore, error) {
	// Таблица ожидающих доставки заказов.
	// Одна строка на заказ маркетплейса (order_id UNIQUE), удаляется после подтверждения доставки
	_, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS pending_order (" +
			" provider VARCHAR (20) NOT NULL," +
			" order_key VARCHAR (64) NOT NULL," +
			" order_id VARCHAR (64) NOT NULL UNIQUE," +
			" delivery_id VARCHAR (64) NOT NULL," +
			" quantity INTEGER NOT NULL," +
			" log_index BIGINT NOT NULL," +
			" provider_order_ids TEXT NOT NULL," +
			" created_at TIMESTAMP NOT NULL," +
			" PRIMARY KEY (provider, order_key)" +
			" );")
	if err != nil {
		return nil, err
	}

	return &pgStore{database: db}, nil
}

func (store *pgStore) Close() error {
	return store.database.Close()
}

func (store *pgStore) PendingOrderPost(ctx context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	ids, err := encodeIDs(order.ProviderOrderIDs)
	if err != nil {
		return err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	//Запись нового заказа
	_, err = store.database.ExecContext(ctx,
		"INSERT INTO pending_order (provider, order_key, order_id, delivery_id, quantity, log_index, provider_order_ids, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		string(order.Provider),
		order.Key,
		order.OrderID,
		order.DeliveryID,
		order.Quantity,
		order.LogIndex,
		ids,
		order.CreatedAt)
	if err != nil {
		// Проверка: уже существует (по ключу или по заказу маркетплейса)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (store *pgStore) PendingOrderPut(ctx context.Context, order model.PendingOrder) error {
	if err := validate(order); err != nil {
		return err
	}
	ids, err := encodeIDs(order.ProviderOrderIDs)
	if err != nil {
		return err
	}

	//Обновление заказа
	res, err := store.database.ExecContext(ctx,
		"UPDATE pending_order"+
			" SET delivery_id = $1, quantity = $2, log_index = $3, provider_order_ids = $4"+
			" WHERE provider = $5"+
			"   AND order_key = $6",
		order.DeliveryID,
		order.Quantity,
		order.LogIndex,
		ids,
		string(order.Provider),
		order.Key)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

const pendingOrderColumns = "provider, order_key, order_id, delivery_id, quantity, log_index, provider_order_ids, created_at"

func (store *pgStore) PendingOrderGet(ctx context.Context, provider model.Provider, key string) (model.PendingOrder, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+pendingOrderColumns+
			" FROM pending_order"+
			" WHERE provider = $1"+
			"   AND order_key = $2",
		string(provider),
		key)
	return scanPendingOrder(row)
}

func (store *pgStore) PendingOrderByOrder(ctx context.Context, orderID string) (model.PendingOrder, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+pendingOrderColumns+
			" FROM pending_order"+
			" WHERE order_id = $1",
		orderID)
	return scanPendingOrder(row)
}

func (store *pgStore) PendingOrderDelete(ctx context.Context, provider model.Provider, key string) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM pending_order"+
			" WHERE provider = $1"+
			"   AND order_key = $2",
		string(provider),
		key)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (store *pgStore) PendingOrderList(ctx context.Context) ([]model.PendingOrder, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+pendingOrderColumns+
			" FROM pending_order"+
			" ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.PendingOrder
	for rows.Next() {
		order, err := scanPendingOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPendingOrder(row scanner) (model.PendingOrder, error) {
	var (
		order    model.PendingOrder
		provider string
		ids      string
	)
	err := row.Scan(&provider,
		&order.Key,
		&order.OrderID,
		&order.DeliveryID,
		&order.Quantity,
		&order.LogIndex,
		&ids,
		&order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PendingOrder{}, ErrNotFound
		}
		return model.PendingOrder{}, err
	}
	order.Provider = model.Provider(provider)
	order.ProviderOrderIDs, err = decodeIDs(ids)
	if err != nil {
		return model.PendingOrder{}, err
	}
	return order, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(s string) ([]string, error) {
	var ids []string
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}
