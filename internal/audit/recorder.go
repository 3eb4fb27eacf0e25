package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Recorder ведёт одну строку журнала на протяжении решения.
// Ошибки журнала не прерывают маршрутизацию: они уходят в лог.
type Recorder struct {
	sink   Sink
	entry  Entry
	zaplog *zap.Logger
}

// Begin регистрирует строку. Индекс 0 означает, что строка не записана
func Begin(ctx context.Context, sink Sink, entry Entry, zaplog *zap.Logger) *Recorder {
	r := &Recorder{sink: sink, entry: entry, zaplog: zaplog}
	if _, err := sink.Register(ctx, &r.entry); err != nil {
		zaplog.Info("audit register", zap.String("order", entry.OrderID), zap.Error(err))
		r.entry.Index = 0
	}
	return r
}

func (r *Recorder) Index() int64 {
	return r.entry.Index
}

func (r *Recorder) Entry() *Entry {
	return &r.entry
}

// SetState меняет состояние и сразу сохраняет строку
func (r *Recorder) SetState(ctx context.Context, state string) {
	r.entry.State = state
	r.Flush(ctx)
}

// Notef сразу дописывает заметку в строку
func (r *Recorder) Notef(ctx context.Context, format string, args ...any) {
	note := fmt.Sprintf(format, args...)
	r.entry.Notes = append(r.entry.Notes, note)
	r.zaplog.Info("audit note",
		zap.String("order", r.entry.OrderID),
		zap.Int64("index", r.entry.Index),
		zap.String("note", note))
	AppendNote(ctx, r.sink, r.entry.Index, note, r.zaplog)
}

func (r *Recorder) Flush(ctx context.Context) {
	if r.entry.Index == 0 {
		return
	}
	if err := r.sink.Update(ctx, &r.entry); err != nil {
		r.zaplog.Info("audit update", zap.Int64("index", r.entry.Index), zap.Error(err))
	}
}

// AppendNote дописывает заметку в уже записанную строку журнала
func AppendNote(ctx context.Context, sink Sink, index int64, note string, zaplog *zap.Logger) {
	if index == 0 {
		return
	}
	if err := sink.Note(ctx, index, note); err != nil {
		zaplog.Info("audit note", zap.Int64("index", index), zap.Error(err))
	}
}
