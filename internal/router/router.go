// Package router принимает событие доставки, выбирает провайдера,
// размещает у него заказ и передаёт заказ трекеру.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/g2gclient"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/mapping"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/pricing"
	"github.com/iurnickita/topuprouter/internal/store"
)

type State string

const (
	StateReceived        State = "received"
	StateMappingResolved State = "mapping_resolved"
	StateProviderChosen  State = "provider_chosen"
	StateOrderSubmitted  State = "order_submitted"
	StateTracked         State = "tracked"
	StateFailed          State = "failed"
	StateIgnored         State = "ignored"
	StateDuplicate       State = "duplicate"
)

// Outcome - итог маршрутизации одного события
type Outcome struct {
	State    State          `json:"state"`
	Provider model.Provider `json:"provider,omitempty"`
	Key      string         `json:"key,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

var ErrNoProvider = errors.New("no usable provider")

// Tracker принимает размещённый заказ на отслеживание
type Tracker interface {
	Track(order model.PendingOrder) bool
}

type Router struct {
	store   store.Store
	sink    audit.Sink
	source  mapping.Source
	quoter  *pricing.Quoter
	g2g     g2gclient.Client
	lapak   lapakclient.Client
	elite   eliteclient.Client
	tracker Tracker
	zaplog  *zap.Logger
	newRef  func() string

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewRouter(store store.Store,
	sink audit.Sink,
	source mapping.Source,
	quoter *pricing.Quoter,
	g2g g2gclient.Client,
	lapak lapakclient.Client,
	elite eliteclient.Client,
	tracker Tracker,
	zaplog *zap.Logger) *Router {
	return &Router{
		store:    store,
		sink:     sink,
		source:   source,
		quoter:   quoter,
		g2g:      g2g,
		lapak:    lapak,
		elite:    elite,
		tracker:  tracker,
		zaplog:   zaplog,
		newRef:   uuid.NewString,
		inflight: make(map[string]struct{}),
	}
}

// Route проводит событие через все состояния до Tracked или Failed.
// Ошибки компонентов не возвращаются: они попадают в Outcome и журнал.
func (r *Router) Route(ctx context.Context, event model.DeliveryEvent) Outcome {
	start := time.Now()
	outcome := r.route(ctx, event)
	metrics.RoutingDuration.Observe(time.Since(start).Seconds())
	metrics.RoutingOutcomesTotal.WithLabelValues(string(outcome.State), string(outcome.Provider)).Inc()
	r.zaplog.Info("delivery routed",
		zap.String("order", event.OrderID),
		zap.String("state", string(outcome.State)),
		zap.String("provider", string(outcome.Provider)),
		zap.String("key", outcome.Key),
		zap.String("reason", outcome.Reason),
		zap.Duration("duration", time.Since(start)))
	return outcome
}

func (r *Router) route(ctx context.Context, event model.DeliveryEvent) Outcome {
	if event.DeliveryMethodCode != model.DeliveryMethodDirectTopUp {
		return Outcome{State: StateIgnored, Reason: "delivery method " + event.DeliveryMethodCode}
	}

	if !r.acquire(event.OrderID) {
		return r.duplicate(ctx, event, "order is already being routed")
	}
	defer r.release(event.OrderID)

	if pending, err := r.store.PendingOrderByOrder(ctx, event.OrderID); err == nil {
		return r.duplicate(ctx, event, fmt.Sprintf("order is already tracked by %s as %s", pending.Provider, pending.Key))
	} else if !errors.Is(err, store.ErrNotFound) {
		// без хранилища дубликат не исключить
		rec := r.begin(ctx, event)
		return r.fail(ctx, rec, "", fmt.Sprintf("pending order lookup failed: %v", err))
	}

	rec := r.begin(ctx, event)
	rec.Notef(ctx, "Received delivery event for order id: %s, offer %s, quantity %d",
		event.OrderID, event.OfferID, event.PurchasedQty)
	if event.PurchasedQty <= 0 {
		return r.fail(ctx, rec, "", fmt.Sprintf("invalid purchased quantity %d", event.PurchasedQty))
	}

	// ReceivedEvent -> MappingResolved
	offer, err := r.g2g.GetOffer(ctx, event.OfferID)
	if err != nil {
		return r.fail(ctx, rec, "", fmt.Sprintf("get offer %s: %v", event.OfferID, err))
	}
	rec.Entry().ProductID = offer.ProductID

	tables, err := r.source.Load(ctx)
	if err != nil {
		return r.fail(ctx, rec, "", fmt.Sprintf("load mapping: %v", err))
	}
	res, err := tables.Resolve(offer.ProductID, offer.Attributes)
	if err != nil {
		return r.fail(ctx, rec, "", fmt.Sprintf("Product mapping not found: %v", err))
	}
	rec.Notef(ctx, "Mapping resolved by attribute %s/%s, mode %s", res.GroupID, res.AttributeID, res.Map.Mode)
	for _, attr := range res.Ignored {
		rec.Notef(ctx, "Ambiguous mapping: attribute %s/%s also matches and was ignored", attr.GroupID, attr.AttributeID)
	}
	rec.SetState(ctx, string(StateMappingResolved))

	// MappingResolved -> ProviderChosen
	chosen, err := r.choose(ctx, rec, tables, res.Map, event.PurchasedQty)
	if err != nil {
		return r.fail(ctx, rec, "", err.Error())
	}
	rec.Entry().Provider = string(chosen.provider)
	rec.Notef(ctx, "Provider chosen: %s", chosen.provider)
	rec.SetState(ctx, string(StateProviderChosen))

	fields, err := tables.DeliveryFields(chosen.provider, offer.ProductID, event.Attributes)
	if err != nil {
		return r.fail(ctx, rec, chosen.provider, fmt.Sprintf("Delivery mapping: %v", err))
	}

	// ProviderChosen -> OrderSubmitted
	pending := model.PendingOrder{
		Provider:   chosen.provider,
		OrderID:    event.OrderID,
		DeliveryID: event.DeliveryID,
		Quantity:   event.PurchasedQty,
		LogIndex:   rec.Index(),
	}
	switch chosen.provider {
	case model.ProviderLapak:
		tid, err := r.placeLapak(ctx, rec, chosen.lapakCode, fields, event.PurchasedQty)
		if err != nil {
			return r.fail(ctx, rec, chosen.provider,
				fmt.Sprintf("Create order failed for order id: %s: %v", event.OrderID, err))
		}
		pending.Key = tid
		rec.Entry().ProviderRefs = []string{tid}
	case model.ProviderElite:
		ids, err := r.placeElite(ctx, rec, *res.Map.Elite, fields, event.PurchasedQty)
		rec.Entry().ProviderRefs = ids
		if err != nil {
			return r.fail(ctx, rec, chosen.provider,
				fmt.Sprintf("Create order failed for order id: %s: %v", event.OrderID, err))
		}
		pending.Key = event.OrderID
		pending.ProviderOrderIDs = ids
	}
	rec.SetState(ctx, string(StateOrderSubmitted))

	// OrderSubmitted -> Tracked
	// точность TIMESTAMP в postgres - микросекунды
	pending.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := r.store.PendingOrderPost(ctx, pending); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			rec.Notef(ctx, "Order is already tracked, placed provider orders need manual review")
		}
		return r.fail(ctx, rec, chosen.provider, fmt.Sprintf("save pending order: %v", err))
	}
	if !r.tracker.Track(pending) {
		rec.Notef(ctx, "Tracker not started, order is left for reconciliation")
	}
	rec.Notef(ctx, "Order placed at %s, tracking %s", chosen.provider, pending.Key)
	rec.SetState(ctx, string(StateTracked))

	return Outcome{State: StateTracked, Provider: chosen.provider, Key: pending.Key}
}

func (r *Router) begin(ctx context.Context, event model.DeliveryEvent) *audit.Recorder {
	return audit.Begin(ctx, r.sink, audit.Entry{
		OrderID:  event.OrderID,
		OfferID:  event.OfferID,
		Quantity: event.PurchasedQty,
		State:    string(StateReceived),
	}, r.zaplog)
}

func (r *Router) fail(ctx context.Context, rec *audit.Recorder, provider model.Provider, reason string) Outcome {
	rec.Notef(ctx, "%s", reason)
	rec.SetState(ctx, string(StateFailed))
	return Outcome{State: StateFailed, Provider: provider, Reason: reason}
}

func (r *Router) duplicate(ctx context.Context, event model.DeliveryEvent, reason string) Outcome {
	rec := r.begin(ctx, event)
	rec.Notef(ctx, "Duplicate delivery event for order id: %s: %s", event.OrderID, reason)
	rec.SetState(ctx, string(StateDuplicate))
	return Outcome{State: StateDuplicate, Reason: reason}
}

func (r *Router) acquire(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[orderID]; ok {
		return false
	}
	r.inflight[orderID] = struct{}{}
	return true
}

func (r *Router) release(orderID string) {
	r.mu.Lock()
	delete(r.inflight, orderID)
	r.mu.Unlock()
}
