package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

type transitionKey struct {
	step domain.Step
	kind domain.EventKind
}

type transition struct {
	name string
	fn   func(f *Flow, ctx context.Context, t *turn)
}

// transitions is the (step, event kind) table. Pairs that are absent get
// a clarifying prompt and leave the session untouched.
var transitions = map[transitionKey]transition{
	{domain.StepIdle, domain.EventText}:                    {"search", (*Flow).search},
	{domain.StepAwaitingVariant, domain.EventButton}:       {"select_variant", (*Flow).selectVariant},
	{domain.StepAwaitingVariant, domain.EventText}:         {"variants_done", (*Flow).variantsDone},
	{domain.StepAwaitingQuantity, domain.EventText}:        {"quantity", (*Flow).quantity},
	{domain.StepConfirmSavedInfo, domain.EventButton}:      {"confirm_saved_info", (*Flow).confirmSavedInfo},
	{domain.StepAwaitingName, domain.EventText}:            {"name", (*Flow).name},
	{domain.StepAwaitingShop, domain.EventText}:            {"shop", (*Flow).shop},
	{domain.StepAwaitingAddress, domain.EventText}:         {"address", (*Flow).address},
	{domain.StepAwaitingPaymentMethod, domain.EventButton}: {"payment_method", (*Flow).paymentMethod},
}

func (f *Flow) search(ctx context.Context, t *turn) {
	query := strings.TrimSpace(t.ev.Text)
	if query == "" {
		f.clarify(ctx, t)
		return
	}
	f.showMatches(ctx, t, query, f.snapshot(ctx))
}

func (f *Flow) selectVariant(ctx context.Context, t *turn) {
	s := t.session
	idx, ok := variantIndex(t.ev.ButtonID, len(s.Variants))
	if !ok {
		f.clarify(ctx, t)
		return
	}

	s.SelectVariant(s.Variants[idx])
	t.sessionChanged = true

	if next := s.VariantOffset + VariantBatchSize; next < len(s.Variants) {
		s.VariantOffset = next
		t.reply(variantBatch(s, msgMoreVariants))
		return
	}
	t.reply(selectionSummary(s))
}

func variantIndex(id string, n int) (int, bool) {
	raw, ok := strings.CutPrefix(id, VariantPrefix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func (f *Flow) variantsDone(ctx context.Context, t *turn) {
	if t.ev.NormalizedText() != "done" {
		f.clarify(ctx, t)
		return
	}
	if len(t.session.SelectedVariants) == 0 {
		t.reply(domain.Text(msgSelectFirst), variantBatch(t.session, msgChooseVariants))
		return
	}
	t.advance(domain.StepAwaitingQuantity)
	t.reply(quantityPrompt(t.session))
}

func (f *Flow) quantity(ctx context.Context, t *turn) {
	s := t.session
	items, total, err := ParseQuantity(t.ev.Text, s.SelectedVariants)
	if err != nil {
		f.logger.Debug("quantity rejected", zap.Error(err))
		t.reply(domain.Text(msgBadQuantity), quantityPrompt(s))
		return
	}

	s.QuantityNote = strings.TrimSpace(t.ev.Text)
	s.Quantity = total
	s.QuantityItems = items

	if t.profile != nil && t.profile.Name != "" {
		t.advance(domain.StepConfirmSavedInfo)
		t.reply(savedInfoPrompt(t.profile))
		return
	}
	t.advance(domain.StepAwaitingName)
	t.reply(domain.Text(msgAskName))
}

func (f *Flow) confirmSavedInfo(ctx context.Context, t *turn) {
	switch t.ev.ButtonID {
	case ButtonUseSaved:
		if t.profile == nil {
			t.advance(domain.StepAwaitingName)
			t.reply(domain.Text(msgAskName))
			return
		}
		t.session.Name = t.profile.Name
		t.session.Shop = t.profile.Shop
		t.session.Address = t.profile.Address
		t.advance(domain.StepAwaitingPaymentMethod)
		t.reply(paymentPrompt(f.OnlinePayments()))
	case ButtonUpdateInfo:
		t.advance(domain.StepAwaitingName)
		t.reply(domain.Text(msgAskName))
	default:
		f.clarify(ctx, t)
	}
}

func (f *Flow) name(ctx context.Context, t *turn) {
	v := strings.TrimSpace(t.ev.Text)
	if v == "" {
		f.clarify(ctx, t)
		return
	}
	t.session.Name = v
	t.advance(domain.StepAwaitingShop)
	t.reply(domain.Text(msgAskShop))
}

func (f *Flow) shop(ctx context.Context, t *turn) {
	v := strings.TrimSpace(t.ev.Text)
	if v == "" {
		f.clarify(ctx, t)
		return
	}
	t.session.Shop = v
	t.advance(domain.StepAwaitingAddress)
	t.reply(domain.Text(msgAskAddress))
}

func (f *Flow) address(ctx context.Context, t *turn) {
	v := strings.TrimSpace(t.ev.Text)
	if v == "" {
		f.clarify(ctx, t)
		return
	}
	s := t.session
	s.Address = v

	t.profile = &domain.Profile{
		Name:              s.Name,
		Shop:              s.Shop,
		Address:           s.Address,
		LastProductHandle: s.ProductHandle,
		LastQuantity:      s.QuantityNote,
	}
	t.profileChanged = true

	t.advance(domain.StepAwaitingPaymentMethod)
	t.reply(paymentPrompt(f.OnlinePayments()))
}

func (f *Flow) paymentMethod(ctx context.Context, t *turn) {
	switch t.ev.ButtonID {
	case ButtonPayCOD:
		f.confirm(t, f.newOrder(t, domain.PaymentCashOnDelivery))
	case ButtonPayOnline:
		if f.payments == nil {
			f.clarify(ctx, t)
			return
		}
		f.payOnline(ctx, t)
	default:
		f.clarify(ctx, t)
	}
}

func (f *Flow) payOnline(ctx context.Context, t *turn) {
	o := f.newOrder(t, domain.PaymentOnline)
	o.AmountMinor = domain.ChargeAmount(o.Quantity, f.cfg.RatePerUnit)

	po, err := f.payments.CreateOrder(ctx, domain.PaymentOrderRequest{
		Amount:      o.AmountMinor,
		Currency:    o.Currency,
		Receipt:     o.ID,
		AutoCapture: true,
		Notes: map[string]string{
			"phone":   o.Phone,
			"product": o.ProductHandle,
		},
	})
	if err != nil {
		f.metrics.IncrExternalError("payment")
		f.logger.Error("payment order failed",
			zap.String("order_id", o.ID),
			zap.Int64("amount", o.AmountMinor),
			zap.Error(err),
		)
		t.reply(domain.Text(msgPaymentFailed), paymentPrompt(f.OnlinePayments()))
		return
	}

	o.PaymentOrderID = po.ID
	o.PaymentLink = po.Link
	if po.Amount == 0 {
		po.Amount = o.AmountMinor
	}
	t.reply(paymentLinkMessage(po, o.Currency))
	f.confirm(t, o)
}

func (f *Flow) newOrder(t *turn, method string) *domain.Order {
	s := t.session
	return &domain.Order{
		ID:            f.newID(),
		Phone:         t.ev.From,
		ProductHandle: s.ProductHandle,
		ProductTitle:  s.ProductTitle,
		Variants:      append([]string(nil), s.SelectedVariants...),
		QuantityNote:  s.QuantityNote,
		Quantity:      s.Quantity,
		Name:          s.Name,
		Shop:          s.Shop,
		Address:       s.Address,
		PaymentMethod: method,
		Currency:      f.cfg.Currency,
		CreatedAt:     f.now(),
	}
}

// confirm ends the conversation: the session is deleted and the order recorded.
func (f *Flow) confirm(t *turn, o *domain.Order) {
	if t.profile != nil {
		t.profile.LastProductHandle = o.ProductHandle
		t.profile.LastQuantity = o.QuantityNote
		t.profileChanged = true
	}
	t.order = o
	t.clear()
	t.reply(confirmation(o))
}

// clarify re-sends the prompt of the current step without changing it.
func (f *Flow) clarify(_ context.Context, t *turn) {
	t.sessionChanged = false
	t.reply(domain.Text(msgNotUnderstood))

	s := t.session
	switch t.step() {
	case domain.StepIdle:
		t.reply(welcomeMenu())
	case domain.StepAwaitingVariant:
		t.reply(variantBatch(s, msgChooseVariants))
	case domain.StepAwaitingQuantity:
		t.reply(quantityPrompt(s))
	case domain.StepConfirmSavedInfo:
		if t.profile != nil {
			t.reply(savedInfoPrompt(t.profile))
		}
	case domain.StepAwaitingName:
		t.reply(domain.Text(msgAskName))
	case domain.StepAwaitingShop:
		t.reply(domain.Text(msgAskShop))
	case domain.StepAwaitingAddress:
		t.reply(domain.Text(msgAskAddress))
	case domain.StepAwaitingPaymentMethod:
		t.reply(paymentPrompt(f.OnlinePayments()))
	}
}
