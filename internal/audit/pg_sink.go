package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const notesSeparator = "\n"

type pgSink struct {
	database *sql.DB
}

func NewPGSink(dsn string) (Sink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return newPGSink(db)
}

func newPGSink(db *sql.DB) (*pgSink, error) {
	// Журнал решений. Заметки хранятся одной строкой через перевод строки
	_, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS audit_log (" +
			" idx BIGSERIAL PRIMARY KEY," +
			" created_at TIMESTAMP NOT NULL," +
			" updated_at TIMESTAMP NOT NULL," +
			" order_id VARCHAR (64) NOT NULL," +
			" offer_id VARCHAR (64) NOT NULL," +
			" product_id VARCHAR (64) NOT NULL," +
			" quantity INTEGER NOT NULL," +
			" provider VARCHAR (20) NOT NULL," +
			" provider_refs TEXT NOT NULL," +
			" lapak_price_usd DOUBLE PRECISION NOT NULL," +
			" elite_price_usd DOUBLE PRECISION NOT NULL," +
			" state VARCHAR (20) NOT NULL," +
			" notes TEXT NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}
	return &pgSink{database: db}, nil
}

func (s *pgSink) Close() error {
	return s.database.Close()
}

func (s *pgSink) Register(ctx context.Context, entry *Entry) (int64, error) {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	refs, err := json.Marshal(nonNil(entry.ProviderRefs))
	if err != nil {
		return 0, err
	}

	row := s.database.QueryRowContext(ctx,
		"INSERT INTO audit_log (created_at, updated_at, order_id, offer_id, product_id, quantity, provider,"+
			" provider_refs, lapak_price_usd, elite_price_usd, state, notes)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)"+
			" RETURNING idx",
		entry.CreatedAt,
		entry.UpdatedAt,
		entry.OrderID,
		entry.OfferID,
		entry.ProductID,
		entry.Quantity,
		entry.Provider,
		string(refs),
		entry.LapakPriceUSD,
		entry.ElitePriceUSD,
		entry.State,
		strings.Join(entry.Notes, notesSeparator))
	if err := row.Scan(&entry.Index); err != nil {
		return 0, err
	}
	return entry.Index, nil
}

func (s *pgSink) Update(ctx context.Context, entry *Entry) error {
	entry.UpdatedAt = time.Now().UTC()
	refs, err := json.Marshal(nonNil(entry.ProviderRefs))
	if err != nil {
		return err
	}

	res, err := s.database.ExecContext(ctx,
		"UPDATE audit_log"+
			" SET updated_at = $1, product_id = $2, quantity = $3, provider = $4, provider_refs = $5,"+
			" lapak_price_usd = $6, elite_price_usd = $7, state = $8"+
			" WHERE idx = $9",
		entry.UpdatedAt,
		entry.ProductID,
		entry.Quantity,
		entry.Provider,
		string(refs),
		entry.LapakPriceUSD,
		entry.ElitePriceUSD,
		entry.State,
		entry.Index)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *pgSink) Note(ctx context.Context, index int64, note string) error {
	res, err := s.database.ExecContext(ctx,
		"UPDATE audit_log"+
			" SET notes = CASE WHEN notes = '' THEN $1 ELSE notes || $2 || $1 END, updated_at = $3"+
			" WHERE idx = $4",
		note,
		notesSeparator,
		time.Now().UTC(),
		index)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

const entryColumns = "idx, created_at, updated_at, order_id, offer_id, product_id, quantity, provider," +
	" provider_refs, lapak_price_usd, elite_price_usd, state, notes"

func (s *pgSink) Get(ctx context.Context, index int64) (Entry, error) {
	row := s.database.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM audit_log WHERE idx = $1",
		index)
	return scanEntry(row)
}

func (s *pgSink) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.database.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM audit_log ORDER BY idx DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry Entry
		refs  string
		notes string
	)
	err := row.Scan(&entry.Index,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.OrderID,
		&entry.OfferID,
		&entry.ProductID,
		&entry.Quantity,
		&entry.Provider,
		&refs,
		&entry.LapakPriceUSD,
		&entry.ElitePriceUSD,
		&entry.State,
		&notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &entry.ProviderRefs); err != nil {
			return Entry{}, err
		}
	}
	if notes != "" {
		entry.Notes = strings.Split(notes, notesSeparator)
	}
	return entry, nil
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

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
