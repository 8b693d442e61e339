package domain

import "strings"

// ============================================================
// Inbound events
// ============================================================

// EventKind is the shape of an inbound message.
type EventKind int

const (
	EventText EventKind = iota
	EventButton
)

func (k EventKind) String() string {
	if k == EventButton {
		return "button"
	}
	return "text"
}

// Event is one inbound WhatsApp message reduced to what the state machine needs.
type Event struct {
	From     string
	Text     string
	ButtonID string
}

// Kind reports whether the event is a button tap or free text.
func (e Event) Kind() EventKind {
	if e.ButtonID != "" {
		return EventButton
	}
	return EventText
}

// NormalizedText is the trimmed, lowercased free text.
func (e Event) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(e.Text))
}

// ============================================================
// Outbound directives
// ============================================================

// DirectiveKind selects the outbound message shape.
type DirectiveKind string

const (
	DirectiveText    DirectiveKind = "text"
	DirectiveImage   DirectiveKind = "image"
	DirectiveButtons DirectiveKind = "buttons"
)

// Button is a reply button of an interactive message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Directive is a single outbound message produced by a transition.
type Directive struct {
	Kind     DirectiveKind
	Body     string
	ImageURL string
	Buttons  []Button
}

// Text builds a plain text directive.
func Text(body string) Directive {
	return Directive{Kind: DirectiveText, Body: body}
}

// Image builds an image directive with an optional caption.
func Image(url, caption string) Directive {
	return Directive{Kind: DirectiveImage, ImageURL: url, Body: caption}
}

// Buttons builds an interactive reply-button directive.
func Buttons(body string, buttons ...Button) Directive {
	return Directive{Kind: DirectiveButtons, Body: body, Buttons: buttons}
}
