package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEntry() Entry {
	return Entry{
		OrderID:   "1700000000001",
		OfferID:   "G1700000000001ON",
		ProductID: "P-ML",
		Quantity:  2,
		State:     "received",
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()

	entry := testEntry()
	index, err := sink.Register(ctx, &entry)
	require.NoError(t, err)
	require.Equal(t, int64(1), index)
	require.Equal(t, index, entry.Index)

	entry.Provider = "lapakgaming"
	entry.ProviderRefs = []string{"TID-1"}
	entry.State = "tracked"
	require.NoError(t, sink.Update(ctx, &entry))
	require.NoError(t, sink.Note(ctx, index, "delivered 2"))

	got, err := sink.Get(ctx, index)
	require.NoError(t, err)
	require.Equal(t, "tracked", got.State)
	require.Equal(t, []string{"TID-1"}, got.ProviderRefs)
	require.Equal(t, []string{"delivered 2"}, got.Notes)

	_, err = sink.Get(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, sink.Note(ctx, 42, "x"), ErrNotFound)
}

func TestMemorySinkListNewestFirst(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	for i := 0; i < 3; i++ {
		entry := testEntry()
		_, err := sink.Register(ctx, &entry)
		require.NoError(t, err)
	}

	entries, err := sink.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(3), entries[0].Index)
	require.Equal(t, int64(2), entries[1].Index)
}

var auditColumns = []string{"idx", "created_at", "updated_at", "order_id", "offer_id", "product_id", "quantity",
	"provider", "provider_refs", "lapak_price_usd", "elite_price_usd", "state", "notes"}

func newMockPGSink(t *testing.T) (*pgSink, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	sink, err := newPGSink(db)
	require.NoError(t, err)
	return sink, mock
}

func TestPGSinkRegister(t *testing.T) {
	sink, mock := newMockPGSink(t)

	mock.ExpectQuery("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "1700000000001", "G1700000000001ON", "P-ML", 2, "",
			"[]", 0.0, 0.0, "received", "").
		WillReturnRows(sqlmock.NewRows([]string{"idx"}).AddRow(7))

	entry := testEntry()
	index, err := sink.Register(context.Background(), &entry)
	require.NoError(t, err)
	require.Equal(t, int64(7), index)
	require.Equal(t, int64(7), entry.Index)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGSinkNote(t *testing.T) {
	sink, mock := newMockPGSink(t)

	mock.ExpectExec("UPDATE audit_log SET notes").
		WithArgs("tracker started", "\n", sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE audit_log SET notes").
		WithArgs("tracker started", "\n", sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, sink.Note(context.Background(), 7, "tracker started"))
	require.ErrorIs(t, sink.Note(context.Background(), 8, "tracker started"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGSinkGet(t *testing.T) {
	sink, mock := newMockPGSink(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE idx").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow(7, now, now, "1700000000001", "G1700000000001ON", "P-ML", 2, "elitedias",
				`["E-1","E-2"]`, 1.2, 1.1, "tracked", "provider chosen\nsubmitted"))
	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE idx").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(auditColumns))

	entry, err := sink.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"E-1", "E-2"}, entry.ProviderRefs)
	require.Equal(t, []string{"provider chosen", "submitted"}, entry.Notes)
	require.Equal(t, 1.1, entry.ElitePriceUSD)

	_, err = sink.Get(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeProducer struct {
	mu      sync.Mutex
	keys    []string
	err     error
	release chan struct{}
}

func (p *fakeProducer) Produce(ctx context.Context, key []byte, value []byte) error {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, string(key))
	return p.err
}

func (p *fakeProducer) produced() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *fakeProducer) Close() error { return nil }

func TestStreamerPublishes(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{}
	sink := NewStreamer(NewMemorySink(), producer, zap.NewNop())

	entry := testEntry()
	index, err := sink.Register(ctx, &entry)
	require.NoError(t, err)
	require.NoError(t, sink.Note(ctx, index, "hello"))
	require.NoError(t, sink.Update(ctx, &entry))
	require.NoError(t, sink.Close())
	require.Equal(t, []string{"1", "1", "1"}, producer.produced())
}

func TestStreamerDoesNotWaitForProducer(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{release: make(chan struct{})}
	sink := NewStreamer(NewMemorySink(), producer, zap.NewNop())

	entry := testEntry()
	done := make(chan struct{})
	go func() {
		defer close(done)
		index, err := sink.Register(ctx, &entry)
		assert.NoError(t, err)
		for i := 0; i < 10; i++ {
			assert.NoError(t, sink.Note(ctx, index, "note"))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit writes blocked on stream producer")
	}

	got, err := sink.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got.Notes, 10)

	close(producer.release)
	require.NoError(t, sink.Close())
	require.Len(t, producer.produced(), 11)
}

func TestStreamerWritesAfterCloseAreNotStreamed(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{}
	sink := NewStreamer(NewMemorySink(), producer, zap.NewNop())
	entry := testEntry()
	_, err := sink.Register(ctx, &entry)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.Len(t, producer.produced(), 1)
}

func TestStreamerIgnoresProducerErrors(t *testing.T) {
	ctx := context.Background()
	producer := &fakeProducer{err: errors.New("broker down")}
	sink := NewStreamer(NewMemorySink(), producer, zap.NewNop())

	entry := testEntry()
	index, err := sink.Register(ctx, &entry)
	require.NoError(t, err)
	require.NoError(t, sink.Note(ctx, index, "hello"))

	got, err := sink.Get(ctx, index)
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, got.Notes)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()

	rec := Begin(ctx, sink, testEntry(), zap.NewNop())
	require.Equal(t, int64(1), rec.Index())
	rec.Notef(ctx, "provider %s chosen", "elitedias")
	rec.Entry().Provider = "elitedias"
	rec.SetState(ctx, "provider_chosen")

	AppendNote(ctx, sink, rec.Index(), "delivered", zap.NewNop())

	got, err := sink.Get(ctx, rec.Index())
	require.NoError(t, err)
	require.Equal(t, "provider_chosen", got.State)
	require.Equal(t, "elitedias", got.Provider)
	require.Equal(t, []string{"provider elitedias chosen", "delivered"}, got.Notes)
}
