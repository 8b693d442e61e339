package domain

// ============================================================
// WhatsApp Cloud API webhook payload
// ============================================================
//
// Only the fields the bot reads are modelled:
//
//	entry[0].changes[0].value.messages[0].{from, text.body, interactive.button_reply.id}

// WebhookPayload is the body of POST /webhook.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
}

type InboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *InboundText        `json:"text,omitempty"`
	Interactive *InboundInteractive `json:"interactive,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundInteractive struct {
	Type        string         `json:"type"`
	ButtonReply *InboundButton `json:"button_reply,omitempty"`
}

type InboundButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FirstEvent extracts the first message of the payload as an Event.
// ok is false when the payload carries no message or no sender.
func (p *WebhookPayload) FirstEvent() (Event, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return Event{}, false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 || msgs[0].From == "" {
		return Event{}, false
	}

	m := msgs[0]
	ev := Event{From: m.From}
	if m.Text != nil {
		ev.Text = m.Text.Body
	}
	if m.Interactive != nil && m.Interactive.ButtonReply != nil {
		ev.ButtonID = m.Interactive.ButtonReply.ID
	}
	return ev, true
}
