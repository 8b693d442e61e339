package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

var greetings = map[string]bool{
	"hi":      true,
	"hello":   true,
	"hey":     true,
	"namaste": true,
}

// globalAction returns the action that applies to ev at any step.
func globalAction(ev domain.Event) (transition, bool) {
	if ev.Kind() == domain.EventButton {
		id := ev.ButtonID
		switch {
		case id == ButtonSelectBags:
			return transition{name: "select_bags", fn: (*Flow).selectBags}, true
		case id == ButtonSelectCups:
			return transition{name: "select_cups", fn: (*Flow).selectCups}, true
		case id == ButtonSelectMore:
			return transition{name: "select_more", fn: (*Flow).selectMore}, true
		case strings.HasPrefix(id, OrderButtonPrefix):
			return transition{name: "order_product", fn: (*Flow).orderProduct}, true
		}
		return transition{}, false
	}

	text := ev.NormalizedText()
	if text == "cancel" {
		return transition{name: "cancel", fn: (*Flow).cancel}, true
	}
	if IsGreeting(text) {
		return transition{name: "greet", fn: (*Flow).greet}, true
	}
	return transition{}, false
}

// IsGreeting reports whether any whole word of text is a greeting.
func IsGreeting(text string) bool {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if greetings[strings.Trim(tok, ".,!?;:")] {
			return true
		}
	}
	return false
}

func (f *Flow) greet(_ context.Context, t *turn) {
	t.clear()
	t.reply(welcomeMenu())
}

func (f *Flow) cancel(_ context.Context, t *turn) {
	t.clear()
	t.reply(domain.Text(msgCancelled))
}

func (f *Flow) selectBags(ctx context.Context, t *turn) {
	products := f.snapshot(ctx)

	if p, ok := domain.FindProduct(products, f.cfg.BagHandle); ok {
		f.startOrder(t, p)
		return
	}
	for _, p := range products {
		if p.HasVariants() && strings.Contains(strings.ToLower(p.Title), "bag") {
			f.startOrder(t, p)
			return
		}
	}
	f.showMatches(ctx, t, "bag", products)
}

func (f *Flow) selectCups(ctx context.Context, t *turn) {
	f.showMatches(ctx, t, "cup", f.snapshot(ctx))
}

func (f *Flow) selectMore(ctx context.Context, t *turn) {
	products := f.snapshot(ctx)
	if len(products) == 0 {
		t.reply(domain.Text(msgNoMatch))
		return
	}
	for _, p := range products[:min(MoreProductsLimit, len(products))] {
		t.reply(productCard(p, f.cfg.Currency)...)
	}
}

func (f *Flow) orderProduct(ctx context.Context, t *turn) {
	handle := strings.TrimPrefix(t.ev.ButtonID, OrderButtonPrefix)
	p, ok := domain.FindProduct(f.snapshot(ctx), handle)
	if !ok {
		f.logger.Info("order for unknown product", zap.String("handle", handle))
		t.reply(domain.Text(msgUnavailable))
		return
	}
	f.startOrder(t, p)
}

// startOrder replaces any session with a fresh one for p.
func (f *Flow) startOrder(t *turn, p domain.Product) {
	s := &domain.Session{
		Phone:         t.ev.From,
		ProductHandle: p.Handle,
		ProductTitle:  p.Title,
	}

	if p.HasVariants() {
		s.Step = domain.StepAwaitingVariant
		s.Variants = append([]string(nil), p.Variants...)
		t.seed(s)
		if p.ImageURL != "" {
			t.reply(domain.Image(p.ImageURL, p.Title))
		}
		t.reply(variantBatch(s, msgChooseVariants))
		return
	}

	s.Step = domain.StepAwaitingQuantity
	t.seed(s)
	if p.ImageURL != "" {
		t.reply(domain.Image(p.ImageURL, p.Title))
	}
	t.reply(quantityPrompt(s))
}

// showMatches replies with a card per match, or a "couldn't find" text.
func (f *Flow) showMatches(ctx context.Context, t *turn, query string, products []domain.Product) {
	var matches []domain.Product
	if len(products) > 0 {
		var err error
		matches, err = f.matcher.Match(ctx, query, products)
		if err != nil {
			f.metrics.IncrExternalError("matcher")
			f.logger.Warn("product match failed", zap.String("query", query), zap.Error(err))
			matches = nil
		}
	}

	if len(matches) == 0 {
		t.reply(domain.Text(msgNoMatch))
		return
	}
	for _, p := range matches {
		t.reply(productCard(p, f.cfg.Currency)...)
	}
}
