package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
)

var tracer = otel.Tracer("service/flow")

// FlowConfig holds the business settings of the conversation.
type FlowConfig struct {
	RatePerUnit float64
	Currency    string
	// BagHandle is the product seeded by the "Kraft Paper Bags" menu button.
	BagHandle string
}

// FlowDeps are the collaborators of a Flow. Payments and Orders may be nil.
type FlowDeps struct {
	Catalog   *CatalogService
	Matcher   port.Matcher
	Sessions  port.Store[domain.Session]
	Profiles  port.Store[domain.Profile]
	Locks     port.KeyLocker
	Messenger port.Messenger
	Payments  port.PaymentProvider
	Orders    port.OrderRecorder
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Flow is the conversation state machine. Each inbound event runs under a
// per-phone lock: load, dispatch, persist, deliver.
type Flow struct {
	catalog   *CatalogService
	matcher   port.Matcher
	sessions  port.Store[domain.Session]
	profiles  port.Store[domain.Profile]
	locks     port.KeyLocker
	messenger port.Messenger
	payments  port.PaymentProvider
	orders    port.OrderRecorder
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       FlowConfig

	now   func() time.Time
	newID func() string
}

// NewFlow creates the state machine.
func NewFlow(deps FlowDeps, cfg FlowConfig) *Flow {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Flow{
		catalog:   deps.Catalog,
		matcher:   deps.Matcher,
		sessions:  deps.Sessions,
		profiles:  deps.Profiles,
		locks:     deps.Locks,
		messenger: deps.Messenger,
		payments:  deps.Payments,
		orders:    deps.Orders,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// OnlinePayments reports whether a payment provider is configured.
func (f *Flow) OnlinePayments() bool {
	return f.payments != nil
}

// turn is the working state of one event.
type turn struct {
	ev      domain.Event
	session *domain.Session // nil while idle
	profile *domain.Profile // nil until an address was submitted

	out []domain.Directive

	sessionChanged bool
	clearSession   bool
	profileChanged bool
	order          *domain.Order
}

func (t *turn) step() domain.Step {
	if t.session == nil {
		return domain.StepIdle
	}
	return t.session.Step
}

func (t *turn) reply(d ...domain.Directive) {
	t.out = append(t.out, d...)
}

func (t *turn) seed(s *domain.Session) {
	t.session = s
	t.sessionChanged = true
	t.clearSession = false
}

func (t *turn) clear() {
	t.session = nil
	t.sessionChanged = false
	t.clearSession = true
}

func (t *turn) advance(step domain.Step) {
	t.session.Step = step
	t.sessionChanged = true
}

// Handle processes one inbound event. Delivery failures are logged and
// swallowed; store failures are returned.
func (f *Flow) Handle(ctx context.Context, ev domain.Event) error {
	start := time.Now()
	kind := ev.Kind().String()
	defer func() { f.metrics.RecordEventDuration(kind, time.Since(start)) }()

	ctx, span := tracer.Start(ctx, "Flow.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("event.kind", kind))

	if ev.From == "" {
		return &domain.ErrValidation{Field: "from", Message: "sender is required"}
	}

	unlock, err := f.locks.Lock(ctx, ev.From)
	if err != nil {
		span.RecordError(err)
		return deadline("waiting for conversation lock", fmt.Errorf("locking %s: %w", ev.From, err))
	}
	defer unlock()

	t, err := f.load(ctx, ev)
	if err != nil {
		span.RecordError(err)
		return err
	}

	name := f.dispatch(ctx, t)
	span.SetAttributes(
		attribute.String("flow.transition", name),
		attribute.String("flow.step", string(t.step())),
	)
	f.metrics.IncrTransition(name)

	if err := f.persist(ctx, t); err != nil {
		span.RecordError(err)
		f.logger.Error("persisting conversation failed",
			zap.String("transition", name),
			zap.Error(err),
		)
		return deadline("persisting conversation", err)
	}

	if t.order != nil {
		f.record(ctx, t.order)
	}

	f.deliver(ctx, ev.From, t.out)
	return nil
}

// deadline reports an expired event deadline as a domain timeout.
func deadline(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: op, Err: err}
	}
	return err
}

func (f *Flow) load(ctx context.Context, ev domain.Event) (*turn, error) {
	t := &turn{ev: ev}

	s, ok, err := f.sessions.Get(ctx, ev.From)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if ok {
		t.session = &s
	}

	p, ok, err := f.profiles.Get(ctx, ev.From)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if ok {
		t.profile = &p
	}
	return t, nil
}

// dispatch runs a global action when one applies, otherwise the table
// entry for (step, event kind). It returns the transition name.
func (f *Flow) dispatch(ctx context.Context, t *turn) string {
	if tr, ok := globalAction(t.ev); ok {
		tr.fn(f, ctx, t)
		return tr.name
	}

	tr, ok := transitions[transitionKey{step: t.step(), kind: t.ev.Kind()}]
	if !ok {
		tr = transition{name: "clarify", fn: (*Flow).clarify}
	}
	tr.fn(f, ctx, t)
	return tr.name
}

func (f *Flow) persist(ctx context.Context, t *turn) error {
	phone := t.ev.From
	now := f.now()

	switch {
	case t.clearSession:
		if err := f.sessions.Delete(ctx, phone); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	case t.sessionChanged && t.session != nil:
		t.session.UpdatedAt = now
		if err := f.sessions.Put(ctx, phone, *t.session); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}

	if t.profileChanged && t.profile != nil {
		t.profile.UpdatedAt = now
		if err := f.profiles.Put(ctx, phone, *t.profile); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
	}
	return nil
}

func (f *Flow) record(ctx context.Context, o *domain.Order) {
	f.metrics.IncrOrder(o.PaymentMethod)
	f.logger.Info("order confirmed",
		zap.String("order_id", o.ID),
		zap.String("product", o.ProductHandle),
		zap.Float64("quantity", o.Quantity),
		zap.String("payment", o.PaymentMethod),
	)

	if f.orders == nil {
		return
	}
	if err := f.orders.Record(ctx, o); err != nil {
		f.metrics.IncrExternalError("ledger")
		f.logger.Error("recording order failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// deliver sends directives in order. A failed send does not stop the rest.
func (f *Flow) deliver(ctx context.Context, to string, out []domain.Directive) {
	for _, d := range out {
		var err error
		switch d.Kind {
		case domain.DirectiveText:
			err = f.messenger.SendText(ctx, to, d.Body)
		case domain.DirectiveImage:
			err = f.messenger.SendImage(ctx, to, d.ImageURL, d.Body)
		case domain.DirectiveButtons:
			err = f.messenger.SendButtons(ctx, to, d.Body, d.Buttons)
		default:
			err = fmt.Errorf("unknown directive kind %q", d.Kind)
		}
		if err != nil {
			f.metrics.IncrExternalError("whatsapp")
			f.logger.Warn("message delivery failed",
				zap.String("kind", string(d.Kind)),
				zap.Error(err),
			)
		}
	}
}

// snapshot returns the catalog, or nil when it cannot be loaded.
func (f *Flow) snapshot(ctx context.Context) []domain.Product {
	products, err := f.catalog.Snapshot(ctx)
	if err != nil {
		f.logger.Warn("catalog unavailable", zap.Error(err))
		return nil
	}
	return products
}
