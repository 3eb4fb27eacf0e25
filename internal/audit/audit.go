// Package audit - журнал решений маршрутизации для операторов.
// Строка заводится на каждое событие доставки, дополняется заметками и никогда не удаляется.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit/config"
)

type Entry struct {
	Index         int64     `json:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	OrderID       string    `json:"order_id"`
	OfferID       string    `json:"offer_id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	Provider      string    `json:"provider"`
	ProviderRefs  []string  `json:"provider_refs"`
	LapakPriceUSD float64   `json:"lapak_price_usd"`
	ElitePriceUSD float64   `json:"elite_price_usd"`
	State         string    `json:"state"`
	Notes         []string  `json:"notes"`
}

type Sink interface {
	// Register заводит строку и возвращает её индекс
	Register(ctx context.Context, entry *Entry) (int64, error)
	// Update сохраняет поля строки, кроме заметок
	Update(ctx context.Context, entry *Entry) error
	// Note дописывает заметку в существующую строку
	Note(ctx context.Context, index int64, note string) error
	Get(ctx context.Context, index int64) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

var ErrNotFound = errors.New("audit entry not found")

func NewSink(cfg config.Config, zaplog *zap.Logger) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch cfg.Backend {
	case config.BackendPostgres, "":
		sink, err = NewPGSink(cfg.DBDsn)
	case config.BackendMemory:
		sink = NewMemorySink()
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return sink, nil
	}
	producer, err := NewKafkaProducer(KafkaProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	if err != nil {
		sink.Close()
		return nil, err
	}
	return NewStreamer(sink, producer, zaplog), nil
}
