package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

// Button identifiers understood by the flow.
const (
	ButtonSelectBags  = "select_bags"
	ButtonSelectCups  = "select_cups"
	ButtonSelectMore  = "select_more"
	ButtonUseSaved    = "use_saved"
	ButtonUpdateInfo  = "update_info"
	ButtonPayCOD      = "pay_cod"
	ButtonPayOnline   = "pay_online"
	OrderButtonPrefix = "order_"
	VariantPrefix     = "variant_"
)

// VariantBatchSize is how many variant buttons are offered per message.
const VariantBatchSize = 3

// MoreProductsLimit caps the "View More" listing.
const MoreProductsLimit = 5

const (
	msgWelcome         = "👋 Welcome to *Kosac* – your eco-friendly packaging partner!\n\nWhat are you looking for today?"
	msgCancelled       = "Your order has been cancelled. Say *hi* whenever you want to start again."
	msgNotUnderstood   = "Sorry, I didn't understand that."
	msgNoMatch         = "Sorry, we couldn't find a matching product. Try another name, or say *hi* to see our menu."
	msgUnavailable     = "Sorry, that product is no longer available. Say *hi* to see our menu."
	msgChooseVariants  = "Choose the sizes you want to order (tap multiple one by one):"
	msgMoreVariants    = "Select more or type 'done' when ready:"
	msgSelectFirst     = "Please select at least one size before typing 'done'."
	msgVariantQuantity = "Great. Now enter the quantity (e.g., \"3kg for 3x5, 5kg for 4x6\")"
	msgBadQuantity     = "Sorry, I couldn't read that quantity."
	msgAskName         = "Please enter your full name:"
	msgAskShop         = "Thanks. Now enter your shop name:"
	msgAskAddress      = "Almost done. Enter your delivery address:"
	msgChoosePayment   = "Choose payment method:"
	msgPaymentFailed   = "Sorry, we couldn't create your payment link right now. Please try again or choose Cash on Delivery."
)

func welcomeMenu() domain.Directive {
	return domain.Buttons(msgWelcome,
		domain.Button{ID: ButtonSelectBags, Title: "👜 Kraft Paper Bags"},
		domain.Button{ID: ButtonSelectCups, Title: "🥤 Paper Cups"},
		domain.Button{ID: ButtonSelectMore, Title: "➕ View More"},
	)
}

// productCard is the image plus "Order" button shown for a search result.
func productCard(p domain.Product, currency string) []domain.Directive {
	var out []domain.Directive
	if p.ImageURL != "" {
		out = append(out, domain.Image(p.ImageURL, p.Title))
	}

	body := "*" + p.Title + "*"
	if p.Price > 0 {
		body += "\n" + domain.FormatMinor(p.Price, currency) + " per " + unitLabel(p.Unit)
	}
	if p.Description != "" {
		body += "\n" + p.Description
	}
	return append(out, domain.Buttons(body, domain.Button{ID: OrderButtonPrefix + p.Handle, Title: "🛒 Order"}))
}

func unitLabel(u domain.Unit) string {
	if u == domain.UnitWeight {
		return "kg"
	}
	return "box"
}

// variantBatch offers the variants starting at the session's offset.
func variantBatch(s *domain.Session, body string) domain.Directive {
	end := min(s.VariantOffset+VariantBatchSize, len(s.Variants))
	buttons := make([]domain.Button, 0, VariantBatchSize)
	for i := s.VariantOffset; i < end; i++ {
		buttons = append(buttons, domain.Button{ID: VariantPrefix + strconv.Itoa(i), Title: s.Variants[i]})
	}
	return domain.Buttons(body, buttons...)
}

func selectionSummary(s *domain.Session) domain.Directive {
	return domain.Text("You've selected: " + strings.Join(s.SelectedVariants, ", ") + "\n\nPlease type 'done' to proceed.")
}

func quantityPrompt(s *domain.Session) domain.Directive {
	if len(s.SelectedVariants) > 0 {
		return domain.Text(msgVariantQuantity)
	}
	return domain.Text(fmt.Sprintf("How much *%s* would you like? (e.g., \"5kg\" or \"10 boxes\")", s.ProductTitle))
}

func savedInfoPrompt(p *domain.Profile) domain.Directive {
	body := fmt.Sprintf("We have your saved details:\n\nName: %s\nShop: %s\nAddress: %s\n\nUse these details?",
		p.Name, p.Shop, p.Address)
	return domain.Buttons(body,
		domain.Button{ID: ButtonUseSaved, Title: "✅ Use saved"},
		domain.Button{ID: ButtonUpdateInfo, Title: "✏️ Update info"},
	)
}

func paymentPrompt(online bool) domain.Directive {
	buttons := []domain.Button{{ID: ButtonPayCOD, Title: "💸 Cash on Delivery"}}
	if online {
		buttons = append(buttons, domain.Button{ID: ButtonPayOnline, Title: "💳 Pay Online"})
	}
	return domain.Buttons(msgChoosePayment, buttons...)
}

func paymentLinkMessage(po *domain.PaymentOrder, currency string) domain.Directive {
	return domain.Text(fmt.Sprintf("💳 Please complete your payment of %s here:\n%s",
		domain.FormatMinor(po.Amount, currency), po.Link))
}

func confirmation(o *domain.Order) domain.Directive {
	var b strings.Builder
	b.WriteString("✅ Order Confirmed!\n\n")
	fmt.Fprintf(&b, "Product: %s\n", o.ProductTitle)
	if len(o.Variants) > 0 {
		fmt.Fprintf(&b, "Variants: %s\n", strings.Join(o.Variants, ", "))
	}
	fmt.Fprintf(&b, "Quantity: %s\n", o.QuantityNote)
	fmt.Fprintf(&b, "Name: %s\n", o.Name)
	fmt.Fprintf(&b, "Shop: %s\n", o.Shop)
	fmt.Fprintf(&b, "Address: %s\n", o.Address)
	fmt.Fprintf(&b, "Payment: %s\n\n", o.PaymentMethod)
	b.WriteString("Thank you for ordering with Kosac! 🙏")
	return domain.Text(b.String())
}
