package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Событие потока журнала
const (
	EventRegistered = "registered"
	EventUpdated    = "updated"
	EventNoted      = "noted"
)

type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Index   int64     `json:"index"`
	At      time.Time `json:"at"`
	Entry   *Entry    `json:"entry,omitempty"`
	Note    string    `json:"note,omitempty"`
}

// Размер очереди событий потока
const streamQueueSize = 1024

// Streamer дублирует изменения журнала в поток.
// Журнал первичен: публикация идёт в фоне, ошибки потока только логируются,
// при переполнении очереди событие отбрасывается.
type Streamer struct {
	Sink
	producer Producer
	zaplog   *zap.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewStreamer(sink Sink, producer Producer, zaplog *zap.Logger) *Streamer {
	s := &Streamer{
		Sink:     sink,
		producer: producer,
		zaplog:   zaplog,
		events:   make(chan Event, streamQueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Streamer) Register(ctx context.Context, entry *Entry) (int64, error) {
	index, err := s.Sink.Register(ctx, entry)
	if err != nil {
		return 0, err
	}
	snapshot := entry.clone()
	snapshot.Index = index
	s.publish(Event{Type: EventRegistered, Index: index, Entry: &snapshot})
	return index, nil
}

func (s *Streamer) Update(ctx context.Context, entry *Entry) error {
	if err := s.Sink.Update(ctx, entry); err != nil {
		return err
	}
	snapshot := entry.clone()
	s.publish(Event{Type: EventUpdated, Index: entry.Index, Entry: &snapshot})
	return nil
}

func (s *Streamer) Note(ctx context.Context, index int64, note string) error {
	if err := s.Sink.Note(ctx, index, note); err != nil {
		return err
	}
	s.publish(Event{Type: EventNoted, Index: index, Note: note})
	return nil
}

// Close дожидается отправки очереди, затем закрывает поток и журнал
func (s *Streamer) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done

	if err := s.producer.Close(); err != nil {
		s.zaplog.Info("audit stream close", zap.Error(err))
	}
	return s.Sink.Close()
}

// clone - копия строки для фоновой отправки
func (e *Entry) clone() Entry {
	c := *e
	c.ProviderRefs = append([]string(nil), e.ProviderRefs...)
	c.Notes = append([]string(nil), e.Notes...)
	return c
}

func (s *Streamer) publish(event Event) {
	event.EventID = uuid.NewString()
	event.At = time.Now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.zaplog.Info("audit stream queue full, event dropped",
			zap.String("type", event.Type),
			zap.Int64("index", event.Index))
	}
}

func (s *Streamer) run() {
	defer close(s.done)
	for event := range s.events {
		s.send(event)
	}
}

func (s *Streamer) send(event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		s.zaplog.Info("audit stream marshal", zap.Error(err))
		return
	}
	key := []byte(strconv.FormatInt(event.Index, 10))
	if err := s.producer.Produce(context.Background(), key, value); err != nil {
		s.zaplog.Info("audit stream publish",
			zap.String("type", event.Type),
			zap.Int64("index", event.Index),
			zap.Error(err))
	}
}
